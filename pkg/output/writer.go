package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// GroupWriter persists allele groups. Append must not return before the
// group is durable, and must only advance c once it is.
type GroupWriter interface {
	Append(ctx context.Context, g Group, c *Counter) error
	Offset() int64
	Close() error
}

// syncFile is the part of *os.File the writer needs.
type syncFile interface {
	io.Writer
	Sync() error
	Close() error
}

// Writer appends groups to a single file. Each group is issued as one
// write followed by an fsync, so after a crash the file ends either on a
// group boundary or with one torn group that Recover removes.
//
// A Writer is not safe for concurrent use. After the first I/O failure it
// refuses further appends.
type Writer struct {
	f      syncFile
	path   string
	offset int64
	buf    []byte
	err    error
	closed bool
}

// Create opens path for appending, creating it and its directory if needed.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, vrserrors.IoFailure("create output directory", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, vrserrors.IoFailure("open output file", err).WithContext("path", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, vrserrors.IoFailure("stat output file", err).WithContext("path", path)
	}

	w := newWriter(f, info.Size())
	w.path = path
	return w, nil
}

func newWriter(f syncFile, offset int64) *Writer {
	return &Writer{
		f:      f,
		offset: offset,
		buf:    make([]byte, 0, 256),
	}
}

// Append writes g keyed by c.Peek(), syncs, and then advances c.
// Cancellation is checked before any byte is written.
func (w *Writer) Append(ctx context.Context, g Group, c *Counter) error {
	if w.closed {
		return vrserrors.IoFailure("append", os.ErrClosed)
	}
	if w.err != nil {
		return w.err
	}
	if err := ctx.Err(); err != nil {
		return vrserrors.Canceled("append group", err)
	}

	w.buf = Encode(w.buf[:0], g, c.Peek())
	n, err := w.f.Write(w.buf)
	w.offset += int64(n)
	if err == nil && n != len(w.buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.err = vrserrors.IoFailure("write output group", err).
			WithContext("counter", c.Peek()).
			WithContext("written", fmt.Sprintf("%d/%d", n, len(w.buf)))
		return w.err
	}
	if err := w.f.Sync(); err != nil {
		w.err = vrserrors.IoFailure("sync output group", err).
			WithContext("path", w.path).
			WithContext("counter", c.Peek())
		return w.err
	}

	c.Advance()
	return nil
}

// Offset returns the file size as of the last successful append.
func (w *Writer) Offset() int64 { return w.offset }

// Close syncs and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	syncErr := w.f.Sync()
	closeErr := w.f.Close()
	if syncErr != nil {
		return vrserrors.IoFailure("sync output on close", syncErr)
	}
	if closeErr != nil {
		return vrserrors.IoFailure("close output", closeErr)
	}
	return nil
}
