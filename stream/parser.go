// Package stream parses the concatenated-JSON status streams returned by
// the engine's build, import and pull endpoints.
//
// Objects arrive back-to-back, not newline delimited, and chunk boundaries
// never align with object boundaries. The Parser keeps only the unconsumed
// tail since the last complete object and emits each event to its sink the
// moment the closing brace arrives.
package stream

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/metrics"
	"github.com/janstenpickle/docker-api/types"
)

const (
	// MaxObjectSize is the largest single object the parser will buffer (16 MiB).
	MaxObjectSize = 16 * 1024 * 1024
	// MaxTranscriptSize bounds the stream text kept for diagnosis (64 KiB).
	MaxTranscriptSize = 64 * 1024
	// maxExcerpt bounds the tail excerpt quoted in malformed-stream errors.
	maxExcerpt = 256
)

// ErrFinished is returned by Feed once Finish or Discard has been called.
var ErrFinished = errors.New("stream: parser already finished")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithOp sets the operation name used in returned errors (default "build").
func WithOp(op string) ParserOption {
	return func(p *Parser) { p.op = op }
}

// WithCollector records emitted events and decode errors.
func WithCollector(c *metrics.Collector) ParserOption {
	return func(p *Parser) { p.collector = c }
}

// WithTranscriptLimit overrides MaxTranscriptSize.
func WithTranscriptLimit(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.transcript.limit = n
		}
	}
}

// Parser incrementally decodes one status stream.
// Feed and Finish must be called from one goroutine at a time, in stream order.
type Parser struct {
	sink      Sink
	op        string
	collector *metrics.Collector

	buf  []byte
	scan scanner

	failed     error // sticky malformed-stream error
	failure    *types.StatusEvent
	match      Match
	events     int64
	transcript transcript

	finished  bool
	result    *types.BuildResult
	finishErr error
}

// NewParser creates a parser emitting to sink. A nil sink discards events.
func NewParser(sink Sink, opts ...ParserOption) *Parser {
	if sink == nil {
		sink = Discard
	}
	p := &Parser{
		sink:       sink,
		op:         "build",
		transcript: transcript{limit: MaxTranscriptSize},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed appends chunk to the tail and emits every complete object it now
// holds. Once the stream is found malformed, every call returns the same
// error.
func (p *Parser) Feed(chunk []byte) error {
	if p.finished {
		return ErrFinished
	}
	if p.failed != nil {
		return p.failed
	}

	p.buf = append(p.buf, chunk...)

	consumed := 0
	for {
		tail := p.buf[consumed:]
		if p.scan.pos == 0 {
			ws := skipSpace(tail)
			consumed += ws
			tail = tail[ws:]
		}
		if len(tail) == 0 {
			break
		}
		if tail[0] != '{' {
			p.fail(fmt.Errorf("unexpected byte %q between objects", tail[0]), tail)
			return p.failed
		}

		n, ok := p.scan.advance(tail)
		if !ok {
			if len(tail) > MaxObjectSize {
				p.fail(fmt.Errorf("object exceeds %d bytes", MaxObjectSize), tail)
				return p.failed
			}
			break
		}

		ev := new(types.StatusEvent)
		if err := json.Unmarshal(tail[:n], ev); err != nil {
			p.collector.IncStreamDecodeErrors()
			p.fail(fmt.Errorf("decode object: %w", err), tail[:n])
			return p.failed
		}
		p.scan.reset()
		consumed += n
		p.emit(ev)
	}

	// Keep only the unconsumed tail.
	p.buf = append(p.buf[:0], p.buf[consumed:]...)
	return nil
}

func (p *Parser) emit(ev *types.StatusEvent) {
	p.events++
	if ev.Stream != "" {
		p.transcript.write(ev.Stream)
	}
	if ev.IsError() {
		p.failure = ev
	}
	if m, ok := MatchIdentifier(ev); ok && m.Specificity >= p.match.Specificity {
		p.match = m
	}
	p.collector.IncEventsEmitted()
	p.sink.Emit(ev)
}

func (p *Parser) fail(err error, data []byte) {
	p.failed = &apierr.Error{
		Kind:       apierr.ErrMalformedStream,
		Op:         p.op,
		Body:       excerpt(data),
		Transcript: p.transcript.String(),
		Err:        err,
	}
	p.buf = nil
}

// Finish ends the stream and returns its result. It is idempotent.
//
// A malformed or truncated stream yields ErrMalformedStream. An error event
// yields a result with Failure set together with *apierr.BuildFailedError.
// A clean stream without an identifier yields ErrUnexpectedResponse.
func (p *Parser) Finish() (*types.BuildResult, error) {
	if p.finished {
		return p.result, p.finishErr
	}
	p.finished = true
	p.result, p.finishErr = p.finish()
	p.buf = nil
	return p.result, p.finishErr
}

func (p *Parser) finish() (*types.BuildResult, error) {
	if p.failed != nil {
		return nil, p.failed
	}

	if rest := p.buf[skipSpace(p.buf):]; len(rest) > 0 {
		return nil, &apierr.Error{
			Kind:       apierr.ErrMalformedStream,
			Op:         p.op,
			Body:       excerpt(rest),
			Transcript: p.transcript.String(),
			Err:        fmt.Errorf("stream ended inside an object (%d trailing bytes)", len(rest)),
		}
	}

	transcript := p.transcript.String()

	if p.failure != nil {
		return &types.BuildResult{
				Failure:    p.failure,
				Transcript: transcript,
				EventCount: p.events,
			}, &apierr.BuildFailedError{
				Message:    p.failure.ErrorMessage(),
				Detail:     p.failure.ErrorDetail,
				Transcript: transcript,
			}
	}

	if p.match.ID == "" {
		return nil, &apierr.Error{
			Kind:       apierr.ErrUnexpectedResponse,
			Op:         p.op,
			Transcript: transcript,
			Err:        fmt.Errorf("no identifier in %d events", p.events),
		}
	}

	return &types.BuildResult{
		ID:         p.match.ID,
		Transcript: transcript,
		EventCount: p.events,
	}, nil
}

// Discard abandons the stream without producing a result, as on
// cancellation. The partial tail is dropped and later Feed calls fail.
func (p *Parser) Discard() {
	if p.finished {
		return
	}
	p.finished = true
	p.buf = nil
	p.finishErr = apierr.New(apierr.ErrCanceled, p.op, context.Canceled)
}

// EventCount returns the number of events emitted so far.
func (p *Parser) EventCount() int64 {
	return p.events
}

// Transcript returns the stream text kept so far.
func (p *Parser) Transcript() string {
	return p.transcript.String()
}

// transcript keeps the last limit bytes of stream text.
type transcript struct {
	limit int
	buf   []byte
}

func (t *transcript) write(s string) {
	t.buf = append(t.buf, s...)
	if len(t.buf) <= t.limit {
		return
	}
	cut := len(t.buf) - t.limit
	for cut < len(t.buf) && !utf8.RuneStart(t.buf[cut]) {
		cut++
	}
	t.buf = append(t.buf[:0], t.buf[cut:]...)
}

func (t *transcript) String() string {
	return string(t.buf)
}

func excerpt(data []byte) string {
	if len(data) > maxExcerpt {
		return string(data[:maxExcerpt]) + "..."
	}
	return string(data)
}
