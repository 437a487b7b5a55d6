// Package metrics provides build metrics collection.
//
// The Collector accumulates counters across the builds of one Builder. It is
// a leaf package with no internal dependencies; error kinds are recorded as
// strings to keep it free of the apierr package.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Build lifecycle
	BuildsStarted   int64
	BuildsSucceeded int64
	BuildsFailed    int64 // error event in the stream
	BuildsCanceled  int64
	BuildsErrored   int64 // any other classified error
	ErrorsByKind    map[string]int64

	// Upload
	BlocksUploaded int64
	BytesUploaded  int64

	// Stream
	EventsEmitted      int64
	StreamDecodeErrors int64

	// Transcript storage
	TranscriptWriteSuccess int64
	TranscriptWriteFailure int64

	// Notifications
	NotifySuccess int64
	NotifyFailure int64

	// Dimensions (informational, set at construction)
	StorageBackend string
	Adapter        string
}

// Collector accumulates build metrics.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	buildsStarted   int64
	buildsSucceeded int64
	buildsFailed    int64
	buildsCanceled  int64
	buildsErrored   int64
	errorsByKind    map[string]int64

	blocksUploaded int64
	bytesUploaded  int64

	eventsEmitted      int64
	streamDecodeErrors int64

	transcriptWriteSuccess int64
	transcriptWriteFailure int64

	notifySuccess int64
	notifyFailure int64

	storageBackend string
	adapter        string
}

// NewCollector creates a Collector with dimension labels.
// Empty labels mean the component is not configured.
func NewCollector(storageBackend, adapter string) *Collector {
	return &Collector{
		errorsByKind:   make(map[string]int64),
		storageBackend: storageBackend,
		adapter:        adapter,
	}
}

// inc increments field under the lock. Callers check for a nil receiver.
func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Build lifecycle ---

// IncBuildStarted records a build start.
func (c *Collector) IncBuildStarted() {
	if c == nil {
		return
	}
	c.inc(&c.buildsStarted)
}

// IncBuildSucceeded records a build that produced an image.
func (c *Collector) IncBuildSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.buildsSucceeded)
}

// IncBuildFailed records a build whose stream carried an error event.
func (c *Collector) IncBuildFailed() {
	if c == nil {
		return
	}
	c.inc(&c.buildsFailed)
}

// IncBuildCanceled records a build canceled by the caller.
func (c *Collector) IncBuildCanceled() {
	if c == nil {
		return
	}
	c.inc(&c.buildsCanceled)
}

// IncBuildErrored records a build that ended with any other error, keyed by
// its error kind (e.g. "transport error").
func (c *Collector) IncBuildErrored(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.buildsErrored++
	c.errorsByKind[kind]++
	c.mu.Unlock()
}

// --- Upload ---

// AddBlockUploaded records one archive block of n bytes handed to the transport.
func (c *Collector) AddBlockUploaded(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.blocksUploaded++
	c.bytesUploaded += int64(n)
	c.mu.Unlock()
}

// --- Stream ---

// IncEventsEmitted records one status event delivered to a sink.
func (c *Collector) IncEventsEmitted() {
	if c == nil {
		return
	}
	c.inc(&c.eventsEmitted)
}

// IncStreamDecodeErrors records an object that failed to decode.
func (c *Collector) IncStreamDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.streamDecodeErrors)
}

// --- Transcript storage ---
// Counters are per-call, not per-record.

// IncTranscriptWriteSuccess records a successful transcript write.
func (c *Collector) IncTranscriptWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.transcriptWriteSuccess)
}

// IncTranscriptWriteFailure records a failed transcript write.
func (c *Collector) IncTranscriptWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.transcriptWriteFailure)
}

// --- Notifications ---

// IncNotifySuccess records a delivered build notification.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.inc(&c.notifySuccess)
}

// IncNotifyFailure records a notification that could not be delivered.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.inc(&c.notifyFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.errorsByKind))
	for k, v := range c.errorsByKind {
		byKind[k] = v
	}

	return Snapshot{
		BuildsStarted:   c.buildsStarted,
		BuildsSucceeded: c.buildsSucceeded,
		BuildsFailed:    c.buildsFailed,
		BuildsCanceled:  c.buildsCanceled,
		BuildsErrored:   c.buildsErrored,
		ErrorsByKind:    byKind,

		BlocksUploaded: c.blocksUploaded,
		BytesUploaded:  c.bytesUploaded,

		EventsEmitted:      c.eventsEmitted,
		StreamDecodeErrors: c.streamDecodeErrors,

		TranscriptWriteSuccess: c.transcriptWriteSuccess,
		TranscriptWriteFailure: c.transcriptWriteFailure,

		NotifySuccess: c.notifySuccess,
		NotifyFailure: c.notifyFailure,

		StorageBackend: c.storageBackend,
		Adapter:        c.adapter,
	}
}
