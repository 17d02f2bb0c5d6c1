package vcf

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/vertgenlab/gonomics/fileio"
	gvcf "github.com/vertgenlab/gonomics/vcf"
)

// Reader streams records from a VCF. The header is read by NewReader.
//
// Line framing and the header are handled by gonomics, which reports bad
// input by panicking; Reader recovers those panics into errors.
type Reader struct {
	er      *fileio.EasyReader
	src     *trackingReader
	header  *Header
	line    int64
	closers []io.Closer
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	progress io.Writer
}

// WithProgress copies every raw (still compressed) byte read from the file
// to w, typically a progress bar.
func WithProgress(w io.Writer) Option {
	return func(o *openOptions) { o.progress = w }
}

// Open opens a plain or gzip/BGZF compressed VCF. "-" reads stdin.
// Compression is detected by the gzip magic number, not the file name.
func Open(path string, opts ...Option) (*Reader, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		raw     io.Reader
		closers []io.Closer
	)
	if path == "-" {
		raw = os.Stdin
	} else {
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		raw = fh
		closers = append(closers, fh)
	}
	if o.progress != nil {
		raw = io.TeeReader(raw, o.progress)
	}

	br := bufio.NewReaderSize(raw, 256*1024)
	sig, _ := br.Peek(2)
	var src io.Reader = br
	if len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		// gzip.Reader is multistream by default, which covers BGZF blocks.
		gr, err := gzip.NewReader(br)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("vcf: open gzip stream: %w", err)
		}
		src = gr
		closers = append([]io.Closer{gr}, closers...)
	}

	r, err := NewReader(src)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	r.closers = closers
	return r, nil
}

// NewReader reads the header from r and returns a Reader positioned at the
// first data line.
func NewReader(r io.Reader) (*Reader, error) {
	src := &trackingReader{r: r}
	rd := &Reader{
		er:  &fileio.EasyReader{BuffReader: bufio.NewReaderSize(src, 256*1024)},
		src: src,
	}

	var gh gvcf.Header
	if err := rd.guard(func() { gh = gvcf.ReadHeader(rd.er) }); err != nil {
		return nil, fmt.Errorf("vcf: read header: %w", err)
	}
	h, err := headerFrom(gh)
	if err != nil {
		return nil, err
	}
	rd.header = h
	rd.line = int64(len(gh.Text))
	return rd, nil
}

// Header returns the parsed header.
func (r *Reader) Header() *Header { return r.header }

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int64 { return r.line }

// Next returns the next record, or io.EOF when the stream is exhausted.
// ctx is checked before each line is read.
func (r *Reader) Next(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		v    gvcf.Vcf
		done bool
	)
	line := r.line + 1
	if err := r.guard(func() { v, done = gvcf.NextVcf(r.er) }); err != nil {
		if r.src.err != nil {
			return nil, err
		}
		return nil, &SyntaxError{Line: line, Err: fmt.Errorf("vcf: line %d: %w", line, err)}
	}
	if done {
		if r.src.err != nil {
			return nil, r.src.err
		}
		return nil, io.EOF
	}
	r.line = line

	rec, err := recordFrom(v, line)
	if err != nil {
		return nil, &SyntaxError{Line: line, Err: err}
	}
	return rec, nil
}

// guard runs fn and turns a panic into an error. A read failure of the
// underlying stream takes precedence over whatever the parser panicked with.
func (r *Reader) guard(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if r.src.err != nil {
				err = r.src.err
				return
			}
			if perr, ok := p.(error); ok {
				err = perr
				return
			}
			err = fmt.Errorf("%v", p)
		}
	}()
	fn()
	return nil
}

// SyntaxError reports a data line that is not a well-formed VCF record.
type SyntaxError struct {
	Line int64
	Err  error
}

func (e *SyntaxError) Error() string { return e.Err.Error() }

func (e *SyntaxError) Unwrap() error { return e.Err }

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	err := closeAll(r.closers)
	r.closers = nil
	return err
}

// trackingReader remembers the first read failure other than io.EOF, so
// I/O errors can be told apart from malformed text.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
