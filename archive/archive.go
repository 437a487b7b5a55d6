// Package archive builds tar build contexts and hands them out as a lazily
// produced stream of fixed-size blocks.
//
// An Archive is read exactly once, sequentially. Content is produced by a
// goroutine writing into an io.Pipe, so memory stays bounded by the block
// size regardless of the size of the tree being archived.
//
// Directory policy: symlinks are stored verbatim as symlink entries and are
// never followed. Sockets, devices and named pipes are rejected.
package archive

import (
	"archive/tar"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/janstenpickle/docker-api/apierr"
)

// DefaultBlockSize is the block size used when none is configured.
const DefaultBlockSize = 32 * 1024

// MaxBlockSize bounds the block buffer allocated per archive.
const MaxBlockSize = 16 * 1024 * 1024

// FileMode is the mode of every in-memory file entry.
const FileMode = 0o644

// FixedModTime is the modification time of every in-memory file entry.
var FixedModTime = time.Unix(0, 0).UTC()

// errArchiveClosed is handed to the producer when the reader closes early.
var errArchiveClosed = errors.New("archive closed")

// Stats reports how much of an archive has been read.
type Stats struct {
	Bytes  int64
	Blocks int64
}

// Archive is a single-use, sequential tar stream.
type Archive struct {
	r         *io.PipeReader
	buf       []byte
	blockSize int

	done      chan struct{}
	closeOnce sync.Once
	err       error // sticky read error

	bytes  atomic.Int64
	blocks atomic.Int64
}

// produceFunc writes tar entries. It runs on the producer goroutine.
type produceFunc func(tw *tar.Writer) error

// newArchive starts the producer goroutine and returns the read side.
func newArchive(o options, produce produceFunc) *Archive {
	pr, pw := io.Pipe()
	a := &Archive{
		r:         pr,
		buf:       make([]byte, o.blockSize),
		blockSize: o.blockSize,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(a.done)
		_ = pw.CloseWithError(writeTar(pw, o.gzip, produce))
	}()

	return a
}

// writeTar runs produce against a tar writer on top of w, compressing when
// gz is set. A nil return closes the pipe with io.EOF.
func writeTar(w io.Writer, gz bool, produce produceFunc) error {
	var zw *pgzip.Writer
	if gz {
		zw = pgzip.NewWriter(w)
		w = zw
	}

	tw := tar.NewWriter(w)
	if err := produce(tw); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return apierr.New(apierr.ErrInvalidInput, "archive", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return apierr.New(apierr.ErrInvalidInput, "archive", err)
		}
	}
	return nil
}

// BlockSize returns the fixed block size of NextBlock.
func (a *Archive) BlockSize() int {
	return a.blockSize
}

// Stats returns the bytes and blocks read so far. Safe for concurrent use.
func (a *Archive) Stats() Stats {
	return Stats{Bytes: a.bytes.Load(), Blocks: a.blocks.Load()}
}

// NextBlock returns the next block of exactly BlockSize bytes; only the last
// block may be shorter. After the final block it returns io.EOF.
// The returned slice is only valid until the next call.
func (a *Archive) NextBlock() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}

	n, err := io.ReadFull(a.r, a.buf)
	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF) && n > 0:
		a.bytes.Add(int64(n))
		a.blocks.Add(1)
		return a.buf[:n], nil
	case errors.Is(err, io.EOF):
		a.err = io.EOF
	default:
		a.err = err
	}
	return nil, a.err
}

// Read implements io.Reader over the same stream as NextBlock.
func (a *Archive) Read(p []byte) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	n, err := a.r.Read(p)
	a.bytes.Add(int64(n))
	if err != nil {
		a.err = err
	}
	return n, err
}

// Close stops the producer, releases every open file and waits for the
// producer goroutine to exit. Safe to call more than once.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		_ = a.r.CloseWithError(errArchiveClosed)
		<-a.done
	})
	return nil
}
