package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/deserialize-bench/internal/backend"
	"github.com/yourusername/deserialize-bench/internal/location"
	"github.com/yourusername/deserialize-bench/internal/provider"
)

// ErrFileTimeout is wrapped by the error of a file that exceeded the
// per-file timeout.
var ErrFileTimeout = errors.New("file deserialization timed out")

// FailureKind classifies why a single file did not contribute to a run.
type FailureKind string

const (
	FailureRead        FailureKind = "read"
	FailureResolve     FailureKind = "resolve"
	FailureUnsupported FailureKind = "unsupported"
	FailureParse       FailureKind = "parse"
	FailureTimeout     FailureKind = "timeout"
	FailureCancelled   FailureKind = "cancelled"
)

// classify maps a per-file error to its kind. stage is the step that
// produced err and is used when the error carries no more specific type.
func classify(stage FailureKind, err error) FailureKind {
	switch {
	case errors.Is(err, ErrFileTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, provider.ErrUnknownProvider):
		return FailureResolve
	case errors.Is(err, provider.ErrUnsupported):
		return FailureUnsupported
	case errors.Is(err, provider.ErrMalformed):
		return FailureParse
	}
	var readErr *backend.ReadError
	if errors.As(err, &readErr) {
		return FailureRead
	}
	return stage
}

// FileResult is the outcome of processing one file. Err is nil on success;
// on failure Bytes and SubUnits are zero so the file contributes nothing to
// the aggregates.
type FileResult struct {
	Index    int
	Location location.Location
	Bytes    int64
	SubUnits int
	FastPath bool
	Kind     FailureKind
	Err      error
	Duration time.Duration

	// Interrupted is set when the run was cancelled while the file was in
	// flight. Such a file is neither a success nor a failure.
	Interrupted bool
}

// Succeeded reports whether the file contributed to the run.
func (r FileResult) Succeeded() bool {
	return r.Err == nil
}

// FileError records a failed file in the run result.
type FileError struct {
	Location location.Location
	Kind     FailureKind
	Error    string
}

// RunResult is the summary report of one benchmark run.
type RunResult struct {
	RunID string

	FilesAttempted    int
	FilesSucceeded    int
	FilesFailed       int
	// FilesInterrupted counts files in flight when the run was cancelled.
	// They are attempted but excluded from both succeeded and failed.
	FilesInterrupted  int
	FastPathFiles     int
	BytesProcessed    int64
	SubUnitsProcessed int

	// Errors lists failed files in enumeration order.
	Errors []FileError

	// Cancelled is set when the run stopped before attempting every
	// enumerated file.
	Cancelled bool

	StartTime time.Time
	Duration  time.Duration

	MegabytesPerSecond float64
	FilesPerSecond     float64
	PeakFilesPerSecond float64
}

// Megabytes returns BytesProcessed in MiB.
func (r *RunResult) Megabytes() float64 {
	return float64(r.BytesProcessed) / 1024 / 1024
}

// ElapsedMillis returns the run duration in whole milliseconds.
func (r *RunResult) ElapsedMillis() int64 {
	return r.Duration.Milliseconds()
}

// SummaryLine formats the single END line emitted when a run finishes.
//
// Example:
//
//	deserialize END | 1234ms | 12.50MB | Number of Files: 40 | Number of Cells: 812 | Failed: 2
func (r *RunResult) SummaryLine() string {
	return fmt.Sprintf("deserialize END | %dms | %.2fMB | Number of Files: %d | Number of Cells: %d | Failed: %d",
		r.ElapsedMillis(), r.Megabytes(), r.FilesSucceeded, r.SubUnitsProcessed, r.FilesFailed)
}

// FailuresByKind counts failed files per kind.
func (r *RunResult) FailuresByKind() map[FailureKind]int {
	counts := make(map[FailureKind]int)
	for _, e := range r.Errors {
		counts[e.Kind]++
	}
	return counts
}

// finalize derives rates from the aggregates and duration.
func (r *RunResult) finalize() {
	seconds := r.Duration.Seconds()
	if seconds <= 0 {
		return
	}
	r.MegabytesPerSecond = r.Megabytes() / seconds
	r.FilesPerSecond = float64(r.FilesAttempted) / seconds
}
