package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(_ *testing.T) {
	exitErrHandler(nil, nil)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"exit code 0 no message", cli.Exit("", 0), 0, ""},
		{"build failed", cli.Exit("build failed: RUN false", 1), 1, "build failed: RUN false"},
		{"transport", cli.Exit("transport error", 2), 2, "transport error"},
		{"invalid input", cli.Exit("invalid input", 3), 3, "invalid input"},
		{"unexpected", cli.Exit("unexpected response", 4), 4, "unexpected response"},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner", 42)), 42, "inner"},
		{"regular error", errors.New("boom"), 1, "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
