package lode

import (
	"errors"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "operation failed" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"timeout interface", timeoutError{}, ErrTimeout},
		{"eacces", errors.New("open /data: permission denied"), ErrPermissionDenied},
		{"s3 access denied", errors.New("api error AccessDenied: Access Denied"), ErrAccessDenied},
		{"enoent", errors.New("open /data/x: no such file or directory"), ErrNotFound},
		{"no such key", errors.New("NoSuchKey: key does not exist"), ErrNotFound},
		{"disk full", errors.New("write: no space left on device"), ErrDiskFull},
		{"throttled", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"credentials", errors.New("failed to refresh cached credentials"), ErrAuth},
		{"network", errors.New("dial tcp 10.0.0.1:9000: connect: connection refused"), ErrNetwork},
		{"deadline", errors.New("context deadline exceeded"), ErrTimeout},
		{"other", errors.New("boom"), ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if WrapWriteError(nil, "p") != nil {
		t.Error("WrapWriteError(nil) should be nil")
	}

	orig := errors.New("no space left on device")
	err := WrapWriteError(orig, "builds/b-1")
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("expected ErrDiskFull, got %v", err)
	}
	if !errors.Is(err, orig) {
		t.Error("original error should stay in the chain")
	}
	if got := err.Error(); got != "write builds/b-1: no space left on device: no space left on device" {
		t.Errorf("Error() = %q", got)
	}

	// Already classified errors pass through unchanged.
	if again := WrapReadError(err, "other"); again != err {
		t.Errorf("rewrap = %v, want original", again)
	}

	initErr := WrapInitError(errors.New("bad layout"), "builds")
	var se *StorageError
	if !errors.As(initErr, &se) || se.Op != "init" || se.Path != "builds" {
		t.Errorf("init error = %#v", initErr)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/builds/2026", "bucket", "builds/2026"},
		{"s3://bucket/p", "bucket", "p"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q,%q; want %q,%q", tt.in, b, p, tt.bucket, tt.prefix)
		}
	}

	var cfg S3Config
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestHasPartition(t *testing.T) {
	path := "datasets/builds/day=2026-03-01/build_id=b-10/record_kind=result/part.jsonl"
	if hasPartition(path, KeyBuildID, "b-1") {
		t.Error("b-1 must not match b-10")
	}
	if !hasPartition(path, KeyBuildID, "b-10") {
		t.Error("b-10 should match")
	}
}
