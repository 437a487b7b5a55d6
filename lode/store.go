package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/janstenpickle/docker-api/metrics"
	"github.com/janstenpickle/docker-api/stream"
	"github.com/janstenpickle/docker-api/types"
)

// DefaultMaxEvents bounds the events buffered for one build.
// Older events are dropped first; the result record counts them.
const DefaultMaxEvents = 10000

// ErrAlreadyCommitted is returned by a second Commit on the same transcript.
var ErrAlreadyCommitted = errors.New("transcript already committed")

// Store writes build transcripts to a dataset.
// A Store is safe for concurrent use; each build gets its own Transcript.
type Store struct {
	ds        lode.Dataset
	collector *metrics.Collector
	maxEvents int
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCollector records transcript write outcomes on c.
func WithCollector(c *metrics.Collector) StoreOption {
	return func(s *Store) { s.collector = c }
}

// WithMaxEvents overrides DefaultMaxEvents. Values < 1 are ignored.
func WithMaxEvents(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// NewStore creates a transcript store over ds.
func NewStore(ds lode.Dataset, opts ...StoreOption) *Store {
	s := &Store{
		ds:        ds,
		maxEvents: DefaultMaxEvents,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dataset returns the underlying dataset for queries.
func (s *Store) Dataset() lode.Dataset { return s.ds }

// Begin starts a transcript for one build. The returned Transcript is a
// stream.Sink; events are buffered until Commit.
func (s *Store) Begin(buildID string, startedAt time.Time) *Transcript {
	return &Transcript{
		store:   s,
		buildID: buildID,
		day:     DeriveDay(startedAt),
	}
}

// Transcript buffers the events of one build and writes them, together with
// the build summary, as a single snapshot.
type Transcript struct {
	store   *Store
	buildID string
	day     string

	mu        sync.Mutex
	records   []any
	seq       int64
	dropped   int64
	committed bool
}

// Emit buffers ev. Events arriving after Commit are ignored.
func (t *Transcript) Emit(ev *types.StatusEvent) {
	if ev == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return
	}
	t.seq++
	if len(t.records) >= t.store.maxEvents {
		t.records = t.records[1:]
		t.dropped++
	}
	t.records = append(t.records, toEventRecordMap(t.buildID, t.day, t.seq, t.store.now(), ev))
}

// Len returns the number of buffered events.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Dropped returns how many events were evicted from the buffer.
func (t *Transcript) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Commit writes the buffered events and the result record. The summary's
// BuildID is forced to the transcript's so the partition stays consistent.
// A transcript can be committed once, even if the write fails.
func (t *Transcript) Commit(ctx context.Context, summary *types.BuildSummary) error {
	t.mu.Lock()
	if t.committed {
		t.mu.Unlock()
		return ErrAlreadyCommitted
	}
	t.committed = true
	records := t.records
	dropped := t.dropped
	t.records = nil
	t.mu.Unlock()

	s := *summary
	s.BuildID = t.buildID
	records = append(records, toResultRecordMap(&s, t.day, dropped))

	if _, err := t.store.ds.Write(ctx, records, lode.Metadata{}); err != nil {
		t.store.collector.IncTranscriptWriteFailure()
		return WrapWriteError(err, string(t.store.ds.ID())+"/"+t.buildID)
	}
	t.store.collector.IncTranscriptWriteSuccess()
	return nil
}

var _ stream.Sink = (*Transcript)(nil)
