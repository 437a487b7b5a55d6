// Package upload streams an archive to the engine in one chunked POST and
// hands the response back as raw chunks.
//
// Blocks are pulled from the archive only when the transport asks for more
// request bytes, so the archive is never buffered whole. The response is not
// buffered either: chunks are returned exactly as the transport delivers
// them, with no assumption about JSON object boundaries.
package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
	"github.com/janstenpickle/docker-api/log"
	"github.com/janstenpickle/docker-api/metrics"
	"github.com/janstenpickle/docker-api/transport"
)

// ContentType is the request content type of every upload.
const ContentType = "application/tar"

// ResponseBufferSize is the read size used for response chunks.
const ResponseBufferSize = 32 * 1024

// BlockSource yields fixed-size blocks until io.EOF.
// *archive.Archive satisfies it.
type BlockSource interface {
	NextBlock() ([]byte, error)
}

// Request describes the upload endpoint.
type Request struct {
	// Op names the operation in returned errors (default "upload").
	Op string
	// Path is the endpoint path, e.g. "/build".
	Path string
	// Query is encoded into the URL.
	Query url.Values
	// Header is sent with the request. Content-Type is always ContentType.
	Header http.Header
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithObserver is called after each block is pulled with its 1-based index
// and size.
func WithObserver(fn func(block, n int)) Option {
	return func(u *Uploader) { u.observer = fn }
}

// WithLogger sets the logger (default: discard).
func WithLogger(l *log.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithCollector records uploaded blocks and bytes.
func WithCollector(c *metrics.Collector) Option {
	return func(u *Uploader) { u.collector = c }
}

// Uploader issues chunked uploads through a transport.
// It holds no per-upload state and is safe for concurrent use.
type Uploader struct {
	transport transport.Transport
	observer  func(block, n int)
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates an Uploader over t.
func New(t transport.Transport, opts ...Option) *Uploader {
	u := &Uploader{transport: t, logger: log.Nop()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload POSTs the blocks of src to req.Path with chunked transfer encoding
// and returns the streamed response.
//
// Errors:
//   - an archive failure seen while pulling blocks is returned as-is and wins
//     over any transport error it caused
//   - context cancellation: apierr.ErrCanceled
//   - connection failure: apierr.ErrTransport
//   - 4xx: apierr.ErrClient carrying the body; 5xx: apierr.ErrServer
func (u *Uploader) Upload(ctx context.Context, src BlockSource, req Request) (*ResponseStream, error) {
	op := req.Op
	if op == "" {
		op = "upload"
	}

	body := &blockReader{
		ctx:       ctx,
		src:       src,
		observer:  u.observer,
		collector: u.collector,
		logger:    u.logger,
	}

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Type", ContentType)
	header.Del("Content-Length")

	u.logger.Debug("upload starting", map[string]any{"path": req.Path})

	resp, err := u.transport.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    req.Path,
		Query:   req.Query,
		Header:  header,
		Body:    body,
		Chunked: true,
	})
	if archiveErr := body.archiveErr(); archiveErr != nil {
		if resp != nil {
			iox.DiscardClose(resp.Body)
		}
		return nil, archiveErr
	}
	if err != nil {
		return nil, classify(ctx, op, err)
	}

	if err := transport.CheckStatus(op, resp); err != nil {
		return nil, err
	}

	return &ResponseStream{
		ctx:  ctx,
		op:   op,
		resp: resp,
		body: body,
		buf:  make([]byte, ResponseBufferSize),
	}, nil
}

// classify maps a failure to the taxonomy, preferring cancellation.
func classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, apierr.ErrCanceled) {
		return apierr.New(apierr.ErrCanceled, op, ctxErr)
	}
	return apierr.Wrap(apierr.ErrTransport, op, err)
}

// blockReader is the request body. Read runs on the transport's writer
// goroutine; the recorded archive error is read from the caller's.
type blockReader struct {
	ctx       context.Context
	src       BlockSource
	observer  func(block, n int)
	collector *metrics.Collector
	logger    *log.Logger

	pending []byte
	done    bool

	mu     sync.Mutex
	blocks int
	bytes  int64
	err    error // first archive error
}

func (r *blockReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}

		block, err := r.src.NextBlock()
		if errors.Is(err, io.EOF) {
			r.done = true
			r.logger.Debug("upload body complete", map[string]any{"blocks": r.Blocks()})
			return 0, io.EOF
		}
		if err != nil {
			r.mu.Lock()
			if r.err == nil {
				r.err = err
			}
			r.mu.Unlock()
			return 0, err
		}

		r.mu.Lock()
		r.blocks++
		r.bytes += int64(len(block))
		n := r.blocks
		r.mu.Unlock()

		r.collector.AddBlockUploaded(len(block))
		if r.observer != nil {
			r.observer(n, len(block))
		}
		r.pending = block
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *blockReader) archiveErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Blocks returns the number of blocks pulled so far.
func (r *blockReader) Blocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks
}

func (r *blockReader) Bytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytes
}

// ResponseStream is the raw response of an upload.
// Next and Close may be called from different goroutines.
type ResponseStream struct {
	ctx  context.Context
	op   string
	resp *transport.Response
	body *blockReader

	buf     []byte
	pending error // error returned together with the last data

	closeOnce sync.Once
	closeErr  error
}

// StatusCode returns the response status.
func (s *ResponseStream) StatusCode() int {
	return s.resp.StatusCode
}

// Header returns the response headers.
func (s *ResponseStream) Header() http.Header {
	return s.resp.Header
}

// BlocksUploaded returns the number of archive blocks pulled so far.
func (s *ResponseStream) BlocksUploaded() int {
	return s.body.Blocks()
}

// BytesUploaded returns the number of archive bytes pulled so far.
func (s *ResponseStream) BytesUploaded() int64 {
	return s.body.Bytes()
}

// Next returns the next raw chunk of the response body, or io.EOF at its
// end. The slice is only valid until the next call.
func (s *ResponseStream) Next() ([]byte, error) {
	for {
		if s.pending != nil {
			return nil, s.pending
		}
		if err := s.ctx.Err(); err != nil {
			s.pending = apierr.New(apierr.ErrCanceled, s.op, err)
			continue
		}

		n, err := s.resp.Body.Read(s.buf)
		if err != nil {
			s.pending = s.readErr(err)
		}
		if n > 0 {
			return s.buf[:n], nil
		}
	}
}

func (s *ResponseStream) readErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if archiveErr := s.body.archiveErr(); archiveErr != nil {
		return archiveErr
	}
	return classify(s.ctx, s.op, err)
}

// Close closes the response body, and with it the connection if the body
// was not fully read. Safe to call more than once.
func (s *ResponseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.resp.Body.Close()
	})
	return s.closeErr
}
