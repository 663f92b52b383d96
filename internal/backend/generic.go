package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/yourusername/deserialize-bench/internal/location"
	"github.com/yourusername/deserialize-bench/internal/logger"
)

// FileBackend reads locations backed by the local filesystem. The file
// scheme is always readable; other schemes are readable only when listed at
// construction, in which case their paths are local files too.
type FileBackend struct {
	chunkSize int
	method    atomic.Int32
	schemes   map[string]struct{}

	reads     atomic.Int64
	failures  atomic.Int64
	bytesRead atomic.Int64
	chunks    atomic.Int64
}

// NewFileBackend creates a filesystem backend using MethodChunked.
// localSchemes name the schemes besides file whose paths are read from disk,
// typically the fast-path schemes. Names are matched case-insensitively.
func NewFileBackend(chunkSize int, localSchemes ...string) *FileBackend {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	b := &FileBackend{
		chunkSize: chunkSize,
		schemes:   map[string]struct{}{location.SchemeFile: {}},
	}
	for _, s := range localSchemes {
		if s = location.NormalizeScheme(s); s != "" {
			b.schemes[s] = struct{}{}
		}
	}
	return b
}

// Readable reports whether the backend reads locations with scheme.
func (b *FileBackend) Readable(scheme string) bool {
	_, ok := b.schemes[location.NormalizeScheme(scheme)]
	return ok
}

// SetReadMethod implements StatsBackend.
func (b *FileBackend) SetReadMethod(method ReadMethod) {
	b.method.Store(int32(method))
}

// Method returns the currently configured read method.
func (b *FileBackend) Method() ReadMethod {
	return ReadMethod(b.method.Load())
}

// GetReadStats implements StatsBackend.
func (b *FileBackend) GetReadStats() *ReadStats {
	return &ReadStats{
		Reads:     b.reads.Load(),
		Failures:  b.failures.Load(),
		BytesRead: b.bytesRead.Load(),
		Chunks:    b.chunks.Load(),
	}
}

// Read implements Backend.
func (b *FileBackend) Read(ctx context.Context, loc location.Location) ([]byte, error) {
	b.reads.Add(1)

	data, err := b.read(ctx, loc)
	if err != nil {
		b.failures.Add(1)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Debug("Read failed for %s (error: %v)", loc, err)
		return nil, &ReadError{Location: loc, Err: err}
	}

	b.bytesRead.Add(int64(len(data)))
	return data, nil
}

func (b *FileBackend) read(ctx context.Context, loc location.Location) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !b.Readable(loc.Scheme) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme)
	}

	switch b.Method() {
	case MethodWhole:
		b.chunks.Add(1)
		return os.ReadFile(loc.Path)
	case MethodBuffered:
		return b.readBuffered(ctx, loc.Path)
	default:
		return b.readChunked(ctx, loc.Path)
	}
}

// readChunked streams the file in chunkSize pieces, checking ctx between
// chunks.
func (b *FileBackend) readChunked(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	size := 0
	if info, err := f.Stat(); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		size = int(info.Size())
	}

	// One extra byte so a file that grew since Stat doesn't force a
	// reallocation before EOF is observed.
	out := make([]byte, 0, size+1)
	chunk := make([]byte, b.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := f.Read(chunk)
		if n > 0 {
			b.chunks.Add(1)
			out = append(out, chunk[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// readBuffered copies the file through a bufio.Reader sized to chunkSize.
func (b *FileBackend) readBuffered(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	r := bufio.NewReaderSize(f, b.chunkSize)
	if _, err := io.Copy(&buf, &ctxReader{ctx: ctx, r: r, chunks: &b.chunks}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ctxReader fails with ctx.Err() once ctx is done.
type ctxReader struct {
	ctx    context.Context
	r      io.Reader
	chunks *atomic.Int64
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if n > 0 {
		c.chunks.Add(1)
	}
	return n, err
}
