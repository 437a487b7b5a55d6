// Package types defines core domain types for the build pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"encoding/json"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"
)

// EventKind classifies a status event by the field that carries its payload.
type EventKind string

// Event kind constants.
const (
	EventKindStream  EventKind = "stream"
	EventKindStatus  EventKind = "status"
	EventKindError   EventKind = "error"
	EventKindAux     EventKind = "aux"
	EventKindUnknown EventKind = "unknown"
)

// StatusEvent is one JSON object of an engine status stream.
// Objects arrive back-to-back on /build, /images/create and similar endpoints.
type StatusEvent struct {
	// Stream is progress text, usually newline terminated.
	Stream string `json:"stream,omitempty"`
	// Status is short-form status used by create/import/pull flows.
	Status string `json:"status,omitempty"`
	// ID is the layer or resource the status refers to.
	ID string `json:"id,omitempty"`
	// Progress is the rendered progress bar, if any.
	Progress string `json:"progress,omitempty"`
	// ProgressDetail carries the raw progress counters.
	ProgressDetail *jsonmessage.JSONProgress `json:"progressDetail,omitempty"`
	// Error is the failure text of an error event.
	Error string `json:"error,omitempty"`
	// ErrorDetail is the structured failure of an error event.
	ErrorDetail *jsonmessage.JSONError `json:"errorDetail,omitempty"`
	// Aux is an auxiliary payload, e.g. {"ID":"sha256:..."}.
	Aux json.RawMessage `json:"aux,omitempty"`
}

// IsError reports whether the event marks a build failure.
func (e *StatusEvent) IsError() bool {
	return e.Error != "" || e.ErrorDetail != nil
}

// Kind returns the discriminator for the event.
// Error wins over every other field.
func (e *StatusEvent) Kind() EventKind {
	switch {
	case e.IsError():
		return EventKindError
	case e.Stream != "":
		return EventKindStream
	case e.Status != "":
		return EventKindStatus
	case len(e.Aux) > 0:
		return EventKindAux
	default:
		return EventKindUnknown
	}
}

// ErrorMessage returns the error text, falling back to the detail message.
func (e *StatusEvent) ErrorMessage() string {
	if e.Error != "" {
		return e.Error
	}
	if e.ErrorDetail != nil {
		return e.ErrorDetail.Message
	}
	return ""
}

// Text returns the human-readable text of the event as a progress display
// would print it. Stream text is returned verbatim; status and error lines
// gain a trailing newline.
func (e *StatusEvent) Text() string {
	switch e.Kind() {
	case EventKindStream:
		return e.Stream
	case EventKindStatus:
		var b strings.Builder
		if e.ID != "" {
			b.WriteString(e.ID)
			b.WriteString(": ")
		}
		b.WriteString(e.Status)
		if e.Progress != "" {
			b.WriteString(" ")
			b.WriteString(e.Progress)
		}
		b.WriteString("\n")
		return b.String()
	case EventKindError:
		return e.ErrorMessage() + "\n"
	default:
		return ""
	}
}
