package stream

import (
	"io"
	"strings"
	"sync"

	"github.com/janstenpickle/docker-api/types"
)

// Sink receives every parsed status event, in stream order, exactly once.
// Events must not be mutated; a sink may retain them.
type Sink interface {
	Emit(ev *types.StatusEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev *types.StatusEvent)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev *types.StatusEvent) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(*types.StatusEvent) {})

// WriterSink writes the human-readable text of every event to w.
type WriterSink struct {
	w   io.Writer
	err error
}

// NewWriterSink creates a WriterSink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Emit writes ev.Text(). After the first write error, events are dropped.
func (s *WriterSink) Emit(ev *types.StatusEvent) {
	if s.err != nil {
		return
	}
	if text := ev.Text(); text != "" {
		_, s.err = io.WriteString(s.w, text)
	}
}

// Err returns the first write error, if any.
func (s *WriterSink) Err() error {
	return s.err
}

// MultiSink fans every event out to each sink in order.
func MultiSink(sinks ...Sink) Sink {
	flat := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			flat = append(flat, s)
		}
	}
	return multiSink(flat)
}

type multiSink []Sink

func (m multiSink) Emit(ev *types.StatusEvent) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []*types.StatusEvent
}

// Emit records ev.
func (r *Recorder) Emit(ev *types.StatusEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []*types.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.StatusEvent(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Text returns the concatenated text of the recorded events.
func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, ev := range r.events {
		b.WriteString(ev.Text())
	}
	return b.String()
}
