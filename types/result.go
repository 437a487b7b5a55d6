package types

import "time"

// BuildResult is the outcome of parsing one status stream.
// Exactly one of ID and Failure is meaningful.
type BuildResult struct {
	// ID is the extracted resource identifier on success.
	ID string `json:"id,omitempty"`
	// Failure is the last error event seen, nil on success.
	Failure *StatusEvent `json:"failure,omitempty"`
	// Transcript is the trailing stream text kept for diagnosis.
	Transcript string `json:"transcript,omitempty"`
	// EventCount is the number of events emitted to the sink.
	EventCount int64 `json:"event_count"`
}

// Succeeded reports whether the stream produced an identifier and no error.
func (r *BuildResult) Succeeded() bool {
	return r != nil && r.Failure == nil && r.ID != ""
}

// Outcome is the terminal state of a build call.
type Outcome string

// Outcome constants.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeError     Outcome = "error"
)

// IsSuccess returns true for a succeeded outcome.
func (o Outcome) IsSuccess() bool {
	return o == OutcomeSucceeded
}

// BuildSummary describes one finished build call. It is what gets persisted
// as the result record of a transcript and what notification adapters publish.
type BuildSummary struct {
	BuildID        string    `json:"build_id"`
	Tag            string    `json:"tag,omitempty"`
	ImageID        string    `json:"image_id,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	EventCount     int64     `json:"event_count"`
	BlocksUploaded int64     `json:"blocks_uploaded"`
	BytesUploaded  int64     `json:"bytes_uploaded"`
	Transcript     string    `json:"transcript,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Duration is the wall time between start and completion.
func (s *BuildSummary) Duration() time.Duration {
	if s.CompletedAt.Before(s.StartedAt) {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}
