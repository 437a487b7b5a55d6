// Package apierr defines the error taxonomy shared by every component that
// talks to the engine.
//
// Errors are classified by sentinel kind. Callers use errors.Is(err, ErrXxx)
// for typed assertions and errors.As to reach *Error or *BuildFailedError for
// status codes, bodies and stream transcripts.
package apierr

import (
	"errors"
	"fmt"

	"github.com/docker/docker/pkg/jsonmessage"
)

// Sentinel errors for failure classification.
var (
	// ErrInvalidInput indicates bad local input found before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransport indicates a connection-level failure.
	ErrTransport = errors.New("transport error")

	// ErrClient indicates a 4xx response.
	ErrClient = errors.New("client error")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")

	// ErrMalformedStream indicates response bytes that do not parse as a
	// sequence of JSON objects.
	ErrMalformedStream = errors.New("malformed stream")

	// ErrUnexpectedResponse indicates a response that parsed cleanly but did
	// not carry what the operation needed.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrBuildFailed indicates an explicit error event in a build stream.
	ErrBuildFailed = errors.New("build failed")

	// ErrCanceled indicates the caller canceled the operation.
	ErrCanceled = errors.New("canceled")
)

// MaxBodySize bounds the response body kept on an *Error.
const MaxBodySize = 64 * 1024

// Error is a classified failure.
// The underlying error stays in the chain for errors.Is/As.
type Error struct {
	// Kind is the sentinel for classification (e.g., ErrClient).
	Kind error
	// Op is the operation that failed (e.g., "build", "image json").
	Op string
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Body is the (bounded) response body of a failed request.
	Body string
	// Transcript is the stream text seen before the failure, if any.
	Transcript string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// BuildFailedError reports an error event found in a build stream.
type BuildFailedError struct {
	// Message is the error text of the last error event.
	Message string
	// Detail is the structured errorDetail of that event, if present.
	Detail *jsonmessage.JSONError
	// Transcript is the stream text seen before and after the failure.
	Transcript string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrBuildFailed, e.Message)
}

// Is reports whether target is ErrBuildFailed.
func (e *BuildFailedError) Is(target error) bool {
	return target == ErrBuildFailed
}

// New creates a classified error.
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap classifies err as kind unless it already carries a classification.
// Returns nil if err is nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return New(kind, op, err)
}

// FromStatus maps an HTTP status code to a classified error carrying body.
// 4xx maps to ErrClient, 5xx to ErrServer, anything else to
// ErrUnexpectedResponse.
func FromStatus(op string, code int, body []byte) *Error {
	kind := ErrUnexpectedResponse
	switch {
	case code >= 400 && code < 500:
		kind = ErrClient
	case code >= 500:
		kind = ErrServer
	}
	if len(body) > MaxBodySize {
		body = body[:MaxBodySize]
	}
	return &Error{Kind: kind, Op: op, StatusCode: code, Body: string(body)}
}

// Rekind returns a copy of err with its kind replaced by to when err is an
// *Error of kind from. Any other error is returned unchanged.
func Rekind(err error, from, to error) error {
	var e *Error
	if !errors.As(err, &e) || !errors.Is(e.Kind, from) {
		return err
	}
	cp := *e
	cp.Kind = to
	return &cp
}

// KindOf returns the sentinel classifying err, or nil if err is unclassified.
func KindOf(err error) error {
	var bf *BuildFailedError
	if errors.As(err, &bf) {
		return ErrBuildFailed
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// TranscriptOf returns the stream transcript attached to err, if any.
func TranscriptOf(err error) string {
	var bf *BuildFailedError
	if errors.As(err, &bf) {
		return bf.Transcript
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Transcript
	}
	return ""
}

// IsRetryable reports whether a retry could plausibly succeed.
// Only transport and server failures qualify; the caller decides.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrServer)
}
