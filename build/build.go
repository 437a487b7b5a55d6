// Package build runs image builds against the engine.
//
// A build is a pipeline: the context is archived lazily, streamed to
// POST /build with chunked transfer encoding, and the concatenated JSON
// status stream is parsed as it arrives. Every event reaches the caller's
// sink in order; the final image identifier comes from the parser.
//
// Each Build call owns its archive, response stream and parser. The Builder
// holds only read-only configuration, the shared transport and a
// concurrency-safe collector, so builds may run concurrently.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"

	"github.com/janstenpickle/docker-api/adapter"
	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/archive"
	"github.com/janstenpickle/docker-api/log"
	"github.com/janstenpickle/docker-api/metrics"
	"github.com/janstenpickle/docker-api/resource"
	"github.com/janstenpickle/docker-api/stream"
	"github.com/janstenpickle/docker-api/transport"
	"github.com/janstenpickle/docker-api/types"
	"github.com/janstenpickle/docker-api/upload"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const op = "build"

// DefaultReportTimeout bounds transcript writes and notifications after a build.
const DefaultReportTimeout = 10 * time.Second

// Transcript receives the events of one build and persists them with the
// build summary. *lode.Transcript satisfies it.
type Transcript interface {
	stream.Sink
	Commit(ctx context.Context, summary *types.BuildSummary) error
}

// TranscriptFactory starts a transcript for a build.
type TranscriptFactory func(buildID string, startedAt time.Time) Transcript

// Config configures a Builder. Only Transport is required.
type Config struct {
	Transport transport.Transport
	Logger    *log.Logger
	Collector *metrics.Collector
	// BlockSize is the archive block size (default archive.DefaultBlockSize).
	BlockSize int
	// Notifier, if set, receives a BuildCompletedEvent after every build.
	Notifier adapter.Adapter
	// Transcripts, if set, persists every build's events and summary.
	Transcripts TranscriptFactory
	// ReportTimeout bounds post-build reporting (default 10s).
	ReportTimeout time.Duration
}

// Builder runs builds over a transport.
type Builder struct {
	transport     transport.Transport
	uploader      *upload.Uploader
	logger        *log.Logger
	collector     *metrics.Collector
	blockSize     int
	notifier      adapter.Adapter
	transcripts   TranscriptFactory
	reportTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

// New creates a Builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Transport == nil {
		return nil, errors.New("build: transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = archive.DefaultBlockSize
	}
	if blockSize > archive.MaxBlockSize {
		return nil, fmt.Errorf("build: block size %d exceeds %d", blockSize, archive.MaxBlockSize)
	}
	reportTimeout := cfg.ReportTimeout
	if reportTimeout <= 0 {
		reportTimeout = DefaultReportTimeout
	}

	return &Builder{
		transport: cfg.Transport,
		uploader: upload.New(cfg.Transport,
			upload.WithLogger(logger),
			upload.WithCollector(cfg.Collector),
		),
		logger:        logger,
		collector:     cfg.Collector,
		blockSize:     blockSize,
		notifier:      cfg.Notifier,
		transcripts:   cfg.Transcripts,
		reportTimeout: reportTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// Build builds src and returns a handle to the new image.
//
// Every status event is passed to sink (which may be nil) as soon as it is
// decoded. Errors are *apierr.Error or *apierr.BuildFailedError:
//   - invalid context paths or unreadable files: apierr.ErrInvalidInput,
//     before any request is made
//   - connection failures and body read errors: apierr.ErrTransport
//   - 4xx: apierr.ErrClient; 5xx: apierr.ErrUnexpectedResponse, since the
//     engine answers a bad Dockerfile with 500
//   - an error event in the stream: *apierr.BuildFailedError
//   - cancellation: apierr.ErrCanceled, with a nil image
func (b *Builder) Build(ctx context.Context, src Source, opts Options, sink stream.Sink) (*resource.Image, error) {
	summary := &types.BuildSummary{
		BuildID:   b.newID(),
		Tag:       opts.Tag,
		StartedAt: b.now(),
	}
	logger := b.logger.With(map[string]any{"build_id": summary.BuildID, "tag": opts.Tag})

	var tr Transcript
	if b.transcripts != nil {
		tr = b.transcripts(summary.BuildID, summary.StartedAt)
	}

	b.collector.IncBuildStarted()
	logger.Info("build starting", map[string]any{"context": src.String()})

	img, err := b.run(ctx, src, opts, stream.MultiSink(sink, tr), summary, logger)

	summary.CompletedAt = b.now()
	b.report(ctx, summary, tr, img, err, logger)
	return img, err
}

// run executes the pipeline and fills the counters of summary.
func (b *Builder) run(ctx context.Context, src Source, opts Options, sink stream.Sink, summary *types.BuildSummary, logger *log.Logger) (img *resource.Image, err error) {
	query, err := opts.query()
	if err != nil {
		return nil, apierr.New(apierr.ErrInvalidInput, op, err)
	}

	ar, err := src.open(opts.archiveOptions(b.blockSize))
	if err != nil {
		return nil, apierr.Wrap(apierr.ErrInvalidInput, op, err)
	}

	var rs *upload.ResponseStream
	defer func() {
		stats := ar.Stats()
		summary.BlocksUploaded = stats.Blocks
		summary.BytesUploaded = stats.Bytes

		var closeErr *multierror.Error
		if rs != nil {
			closeErr = multierror.Append(closeErr, rs.Close())
		}
		closeErr = multierror.Append(closeErr, ar.Close())
		if cerr := closeErr.ErrorOrNil(); cerr != nil {
			logger.Warn("build cleanup failed", map[string]any{"error": cerr.Error()})
		}
	}()

	rs, err = b.uploader.Upload(ctx, ar, upload.Request{
		Op:     op,
		Path:   "/build",
		Query:  query,
		Header: opts.header(),
	})
	if err != nil {
		return nil, apierr.Rekind(err, apierr.ErrServer, apierr.ErrUnexpectedResponse)
	}

	parser := stream.NewParser(sink, stream.WithOp(op), stream.WithCollector(b.collector))
	defer func() { summary.EventCount = parser.EventCount() }()

	for {
		chunk, err := rs.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The partial buffer is dropped without a result.
			parser.Discard()
			return nil, err
		}
		if err := parser.Feed(chunk); err != nil {
			return nil, err
		}
	}

	res, err := parser.Finish()
	if err != nil {
		return nil, err
	}
	logger.Debug("build stream finished", map[string]any{
		"events": res.EventCount,
		"blocks": rs.BlocksUploaded(),
	})
	return resource.NewImage(b.transport, res.ID), nil
}

// report records the outcome and runs the best-effort transcript and
// notification steps. Neither can change the build result.
func (b *Builder) report(ctx context.Context, summary *types.BuildSummary, tr Transcript, img *resource.Image, err error, logger *log.Logger) {
	fields := map[string]any{"duration_ms": summary.Duration().Milliseconds()}

	switch {
	case err == nil:
		summary.Outcome = types.OutcomeSucceeded
		summary.ImageID = img.ID()
		b.collector.IncBuildSucceeded()
		fields["image_id"] = summary.ImageID
		logger.Info("build succeeded", fields)
	case errors.Is(err, apierr.ErrCanceled):
		summary.Outcome = types.OutcomeCanceled
		b.collector.IncBuildCanceled()
		logger.Info("build canceled", fields)
	case errors.Is(err, apierr.ErrBuildFailed):
		summary.Outcome = types.OutcomeFailed
		b.collector.IncBuildFailed()
		fields["error"] = err.Error()
		logger.Warn("build failed", fields)
	default:
		summary.Outcome = types.OutcomeError
		kind := "unclassified"
		if k := apierr.KindOf(err); k != nil {
			kind = k.Error()
		}
		b.collector.IncBuildErrored(kind)
		fields["error"] = err.Error()
		fields["kind"] = kind
		logger.Error("build error", fields)
	}
	if err != nil {
		summary.Error = err.Error()
		if k := apierr.KindOf(err); k != nil {
			summary.ErrorKind = k.Error()
		}
		summary.Transcript = apierr.TranscriptOf(err)
	}

	if tr == nil && b.notifier == nil {
		return
	}

	// Reporting outlives a canceled build context.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.reportTimeout)
	defer cancel()

	if tr != nil {
		if err := tr.Commit(rctx, summary); err != nil {
			logger.Warn("transcript write failed", map[string]any{"error": err.Error()})
		}
	}
	if b.notifier != nil {
		if err := b.notifier.Publish(rctx, adapter.NewBuildCompletedEvent(summary)); err != nil {
			b.collector.IncNotifyFailure()
			logger.Warn("build notification failed", map[string]any{"error": err.Error()})
		} else {
			b.collector.IncNotifySuccess()
		}
	}
}
