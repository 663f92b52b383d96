// Package backend reads the raw bytes of enumerated locations.
// It defines the Backend interface, the available read methods, and a
// factory that builds the backend for a configured method.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/deserialize-bench/internal/location"
)

// DefaultChunkSize is the read size used by MethodChunked when none is set.
const DefaultChunkSize = 64 * 1024

// ErrUnsupportedScheme is returned (wrapped in a *ReadError) for locations
// whose scheme has no byte source.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

// Backend reads the complete contents of a location.
// Implementations must be safe for concurrent use and should stop early
// with ctx.Err() once ctx is done.
type Backend interface {
	Read(ctx context.Context, loc location.Location) ([]byte, error)
}

// ReadMethod selects how file contents are pulled into memory.
// Every method returns identical bytes; they differ in syscall pattern and
// allocation behavior, which is what the read-bench command compares.
type ReadMethod int

const (
	// MethodChunked streams the file in fixed-size chunks into a buffer
	// pre-sized from the file's stat size. Cancellation is checked between
	// chunks. This is the default.
	MethodChunked ReadMethod = iota

	// MethodWhole reads the file in one call to os.ReadFile.
	MethodWhole

	// MethodBuffered copies through a bufio.Reader into a growing buffer
	// without consulting the file size.
	MethodBuffered
)

// String returns the string representation of the read method.
func (m ReadMethod) String() string {
	switch m {
	case MethodChunked:
		return "chunked"
	case MethodWhole:
		return "whole"
	case MethodBuffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// AllMethods lists every read method in declaration order.
func AllMethods() []ReadMethod {
	return []ReadMethod{MethodChunked, MethodWhole, MethodBuffered}
}

// ParseReadMethod converts a method name as produced by String.
func ParseReadMethod(s string) (ReadMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chunked":
		return MethodChunked, nil
	case "whole":
		return MethodWhole, nil
	case "buffered":
		return MethodBuffered, nil
	default:
		return MethodChunked, fmt.Errorf("unknown read method %q (want chunked, whole or buffered)", s)
	}
}

// ReadError reports a location whose bytes could not be obtained.
type ReadError struct {
	Location location.Location
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Location, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadStats tracks how many reads a backend performed and how they went.
type ReadStats struct {
	Reads     int64
	Failures  int64
	BytesRead int64
	Chunks    int64
}

// StatsBackend extends Backend with method selection and usage statistics.
type StatsBackend interface {
	Backend

	// SetReadMethod configures which read method subsequent reads use.
	SetReadMethod(method ReadMethod)

	// GetReadStats returns a snapshot of the accumulated statistics.
	GetReadStats() *ReadStats
}

// NewBackend creates the local-filesystem backend for method.
// A chunkSize <= 0 selects DefaultChunkSize. localSchemes are passed to
// NewFileBackend.
func NewBackend(method ReadMethod, chunkSize int, localSchemes ...string) StatsBackend {
	b := NewFileBackend(chunkSize, localSchemes...)
	b.SetReadMethod(method)
	return b
}
