package lines

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

const (
	defaultBufSize = 64 * 1024

	// Assembly buffers above this size are released after their line.
	maxKeptLineSize = 1024 * 1024

	// How often, in lines, the context is checked while scanning.
	ctxCheckEvery = 4096
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrStop can be returned by a line callback to end iteration early without
// reporting an error.
var ErrStop = errors.New("stop iteration")

// IOError reports that the source file could not be opened or read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("unable to read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Source reads a text file line by line. Every call to Each starts again from
// the beginning of the file.
type Source struct {
	path    string
	bufSize int
	logger  *zap.Logger
}

type Option func(*Source)

func WithBufferSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(path string, opts ...Option) *Source {
	s := &Source{
		path:    path,
		bufSize: defaultBufSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Each calls fn for every line of the file with its 1-based line number. Line
// terminators (\n or \r\n) are stripped, and a final line without one is
// still delivered. Lines longer than the buffer are assembled whole. The file
// is closed before Each returns.
func (s *Source) Each(ctx context.Context, fn func(n int, line string) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return &IOError{Path: s.path, Err: err}
	}
	defer f.Close()

	s.logger.Debug("scanning source", zap.String("path", s.path), zap.Int("bufSize", s.bufSize))

	r := bufio.NewReaderSize(f, s.bufSize)
	var long []byte

	n := 0
	for {
		chunk, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			long = append(long, chunk...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return &IOError{Path: s.path, Err: err}
		}
		eof := err != nil

		line := chunk
		if len(long) > 0 {
			long = append(long, chunk...)
			line = long
		}
		if eof && len(line) == 0 {
			break
		}

		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if n == 1 {
			line = bytes.TrimPrefix(line, utf8BOM)
		}
		if len(long) > maxKeptLineSize {
			s.logger.Debug("read oversized line", zap.Int("line", n), zap.Int("size", len(long)))
		}

		err = fn(n, string(line))
		long = long[:0]
		if cap(long) > maxKeptLineSize {
			long = nil
		}
		if err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
		if eof {
			break
		}
	}

	s.logger.Debug("finished scanning source", zap.String("path", s.path), zap.Int("lines", n))
	return nil
}
