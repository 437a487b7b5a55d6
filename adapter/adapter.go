// Package adapter defines the build notification boundary.
//
// Adapters publish a BuildCompletedEvent to a downstream system once a build
// call returns. Publishing is best-effort: the builder logs failures and
// never changes the build result because of them.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/janstenpickle/docker-api/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventTypeBuildCompleted is the only event type published.
const EventTypeBuildCompleted = "build_completed"

// BuildCompletedEvent is the payload published when a build call finishes.
type BuildCompletedEvent struct {
	EventType     string `json:"event_type" msgpack:"event_type"`
	BuildID       string `json:"build_id" msgpack:"build_id"`
	Tag           string `json:"tag,omitempty" msgpack:"tag,omitempty"`
	ImageID       string `json:"image_id,omitempty" msgpack:"image_id,omitempty"`
	Outcome       string `json:"outcome" msgpack:"outcome"`
	Error         string `json:"error,omitempty" msgpack:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty" msgpack:"error_kind,omitempty"`
	Timestamp     string `json:"timestamp" msgpack:"timestamp"` // RFC 3339, completion time
	DurationMs    int64  `json:"duration_ms" msgpack:"duration_ms"`
	EventCount    int64  `json:"event_count" msgpack:"event_count"`
	BytesUploaded int64  `json:"bytes_uploaded" msgpack:"bytes_uploaded"`
}

// NewBuildCompletedEvent builds the published payload from a summary.
// The transcript text is not included.
func NewBuildCompletedEvent(s *types.BuildSummary) *BuildCompletedEvent {
	return &BuildCompletedEvent{
		EventType:     EventTypeBuildCompleted,
		BuildID:       s.BuildID,
		Tag:           s.Tag,
		ImageID:       s.ImageID,
		Outcome:       string(s.Outcome),
		Error:         s.Error,
		ErrorKind:     s.ErrorKind,
		Timestamp:     s.CompletedAt.UTC().Format(time.RFC3339),
		DurationMs:    s.Duration().Milliseconds(),
		EventCount:    s.EventCount,
		BytesUploaded: s.BytesUploaded,
	}
}

// Adapter publishes build completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *BuildCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Encoding selects the wire format of published events.
type Encoding string

// Supported encodings.
const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding validates an encoding name. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	default:
		return "", fmt.Errorf("unknown encoding %q (want json or msgpack)", s)
	}
}

// ContentType returns the MIME type for the encoding.
func (e Encoding) ContentType() string {
	if e == EncodingMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Marshal encodes the event in the given encoding.
func Marshal(event *BuildCompletedEvent, enc Encoding) ([]byte, error) {
	switch enc {
	case "", EncodingJSON:
		return json.Marshal(event)
	case EncodingMsgpack:
		return msgpack.Marshal(event)
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

// Unmarshal decodes an event produced by Marshal.
func Unmarshal(data []byte, enc Encoding, event *BuildCompletedEvent) error {
	switch enc {
	case "", EncodingJSON:
		return json.Unmarshal(data, event)
	case EncodingMsgpack:
		return msgpack.Unmarshal(data, event)
	default:
		return fmt.Errorf("unknown encoding %q", enc)
	}
}

// ErrPermanent marks a publish failure that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Retry runs attempt up to 1+retries times with exponential backoff
// (500ms, 1s, 2s, ...) between attempts. Errors matching ErrPermanent stop
// the loop immediately.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
