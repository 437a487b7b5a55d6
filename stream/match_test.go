package stream

import (
	"strings"
	"testing"

	"github.com/janstenpickle/docker-api/types"
)

func TestMatchIdentifier(t *testing.T) {
	digest := "sha256:" + strings.Repeat("9e", 32)
	long := strings.Repeat("a1", 32)

	tests := []struct {
		name     string
		ev       types.StatusEvent
		wantID   string
		wantSpec Specificity
	}{
		{"success line", types.StatusEvent{Stream: "Successfully built 1a2b3c4d5e6f\n"}, "1a2b3c4d5e6f", SpecificityShort},
		{"success line 64 hex", types.StatusEvent{Stream: "Successfully built " + long + "\n"}, long, SpecificityDigest},
		{"status digest", types.StatusEvent{Status: digest}, digest, SpecificityDigest},
		{"status short id", types.StatusEvent{Status: "0123456789ab"}, "0123456789ab", SpecificityShort},
		{"aux id", types.StatusEvent{Aux: []byte(`{"ID":"` + digest + `"}`)}, digest, SpecificityDigest},
		{"plain stream", types.StatusEvent{Stream: "Step 1/3 : FROM busybox\n"}, "", SpecificityNone},
		{"success mid-line", types.StatusEvent{Stream: "echo Successfully built 1a2b3c4d5e6f and more\n"}, "", SpecificityNone},
		{"too short", types.StatusEvent{Stream: "Successfully built 1a2b3c\n"}, "", SpecificityNone},
		{"uppercase hex", types.StatusEvent{Status: "0123456789AB"}, "", SpecificityNone},
		{"prose status", types.StatusEvent{Status: "Download complete"}, "", SpecificityNone},
		{"aux without id", types.StatusEvent{Aux: []byte(`{"Tag":"latest"}`)}, "", SpecificityNone},
		{"error event", types.StatusEvent{Stream: "Successfully built 1a2b3c4d5e6f\n", Error: "x"}, "", SpecificityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := MatchIdentifier(&tt.ev)
			if ok != (tt.wantID != "") {
				t.Fatalf("ok = %v, want %v", ok, tt.wantID != "")
			}
			if m.ID != tt.wantID || m.Specificity != tt.wantSpec {
				t.Errorf("match = %+v, want %q/%d", m, tt.wantID, tt.wantSpec)
			}
		})
	}
}
