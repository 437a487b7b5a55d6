package lode

import (
	"time"

	"github.com/janstenpickle/docker-api/types"
)

// RecordKind discriminator values.
const (
	RecordKindEvent  = "event"
	RecordKindResult = "result"
)

// EventRecord is the storage format of one status event.
type EventRecord struct {
	RecordKind string `json:"record_kind"`
	BuildID    string `json:"build_id"`
	Seq        int64  `json:"seq"`
	Kind       string `json:"kind"`
	Stream     string `json:"stream,omitempty"`
	Status     string `json:"status,omitempty"`
	ID         string `json:"id,omitempty"`
	Progress   string `json:"progress,omitempty"`
	Error      string `json:"error,omitempty"`
	Aux        string `json:"aux,omitempty"`
	Ts         string `json:"ts"`
	Day        string `json:"day"`
}

// ResultRecord is the storage format of a build summary.
type ResultRecord struct {
	RecordKind     string `json:"record_kind"`
	BuildID        string `json:"build_id"`
	Tag            string `json:"tag,omitempty"`
	ImageID        string `json:"image_id,omitempty"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
	ErrorKind      string `json:"error_kind,omitempty"`
	EventCount     int64  `json:"event_count"`
	DroppedEvents  int64  `json:"dropped_events"`
	BlocksUploaded int64  `json:"blocks_uploaded"`
	BytesUploaded  int64  `json:"bytes_uploaded"`
	DurationMs     int64  `json:"duration_ms"`
	StartedAt      string `json:"started_at"`
	CompletedAt    string `json:"completed_at"`
	Day            string `json:"day"`
}

// toEventRecordMap converts a status event to a map for storage.
// Lode HiveLayout requires records as map[string]any.
func toEventRecordMap(buildID, day string, seq int64, at time.Time, ev *types.StatusEvent) map[string]any {
	m := map[string]any{
		"record_kind": RecordKindEvent,
		"build_id":    buildID,
		"seq":         seq,
		"kind":        string(ev.Kind()),
		"ts":          at.UTC().Format(time.RFC3339Nano),
		"day":         day,
	}
	setNonEmpty(m, "stream", ev.Stream)
	setNonEmpty(m, "status", ev.Status)
	setNonEmpty(m, "id", ev.ID)
	setNonEmpty(m, "progress", ev.Progress)
	setNonEmpty(m, "error", ev.ErrorMessage())
	if len(ev.Aux) > 0 {
		m["aux"] = string(ev.Aux)
	}
	return m
}

func toResultRecordMap(s *types.BuildSummary, day string, dropped int64) map[string]any {
	m := map[string]any{
		"record_kind":     RecordKindResult,
		"build_id":        s.BuildID,
		"outcome":         string(s.Outcome),
		"event_count":     s.EventCount,
		"dropped_events":  dropped,
		"blocks_uploaded": s.BlocksUploaded,
		"bytes_uploaded":  s.BytesUploaded,
		"duration_ms":     s.Duration().Milliseconds(),
		"started_at":      s.StartedAt.UTC().Format(time.RFC3339Nano),
		"completed_at":    s.CompletedAt.UTC().Format(time.RFC3339Nano),
		"day":             day,
	}
	setNonEmpty(m, "tag", s.Tag)
	setNonEmpty(m, "image_id", s.ImageID)
	setNonEmpty(m, "error", s.Error)
	setNonEmpty(m, "error_kind", s.ErrorKind)
	return m
}

func setNonEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// Event rebuilds the status event a record was stored from. Structured
// error and progress details are not stored.
func (r EventRecord) Event() *types.StatusEvent {
	ev := &types.StatusEvent{
		Stream:   r.Stream,
		Status:   r.Status,
		ID:       r.ID,
		Progress: r.Progress,
		Error:    r.Error,
	}
	if r.Aux != "" {
		ev.Aux = []byte(r.Aux)
	}
	return ev
}

// eventRecordFrom decodes a stored map. Numbers come back as float64 from
// the JSONL codec.
func eventRecordFrom(m map[string]any) EventRecord {
	return EventRecord{
		RecordKind: toString(m["record_kind"]),
		BuildID:    toString(m["build_id"]),
		Seq:        toInt64(m["seq"]),
		Kind:       toString(m["kind"]),
		Stream:     toString(m["stream"]),
		Status:     toString(m["status"]),
		ID:         toString(m["id"]),
		Progress:   toString(m["progress"]),
		Error:      toString(m["error"]),
		Aux:        toString(m["aux"]),
		Ts:         toString(m["ts"]),
		Day:        toString(m["day"]),
	}
}

func resultRecordFrom(m map[string]any) ResultRecord {
	return ResultRecord{
		RecordKind:     toString(m["record_kind"]),
		BuildID:        toString(m["build_id"]),
		Tag:            toString(m["tag"]),
		ImageID:        toString(m["image_id"]),
		Outcome:        toString(m["outcome"]),
		Error:          toString(m["error"]),
		ErrorKind:      toString(m["error_kind"]),
		EventCount:     toInt64(m["event_count"]),
		DroppedEvents:  toInt64(m["dropped_events"]),
		BlocksUploaded: toInt64(m["blocks_uploaded"]),
		BytesUploaded:  toInt64(m["bytes_uploaded"]),
		DurationMs:     toInt64(m["duration_ms"]),
		StartedAt:      toString(m["started_at"]),
		CompletedAt:    toString(m["completed_at"]),
		Day:            toString(m["day"]),
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
