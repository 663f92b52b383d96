// Package progress provides live progress reporting during a benchmark run
// and the completion report printed when it finishes.
package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/yourusername/deserialize-bench/internal/engine"
)

// minRedrawInterval limits how often the live line is redrawn.
const minRedrawInterval = 100 * time.Millisecond

// maxListedErrors caps the failed files listed in the completion report.
const maxListedErrors = 10

// Reporter handles progress reporting for one run. It tracks how many files
// have been attempted and calculates rate, throughput and ETA.
//
// The live line is only drawn when the output is a terminal; the completion
// report is always written.
type Reporter struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	totalFiles  int
	totalBytes  int64
	startTime   time.Time
	lastDraw    time.Time
}

// NewReporter creates a Reporter writing to out.
//
// Parameters:
//   - out: Destination for the live line and completion report
//   - totalFiles: Number of files the run will attempt
//   - totalBytes: Size of the corpus at scan time (in bytes)
func NewReporter(out io.Writer, totalFiles int, totalBytes int64) *Reporter {
	return &Reporter{
		out:         out,
		interactive: IsTerminal(out),
		totalFiles:  totalFiles,
		totalBytes:  totalBytes,
		startTime:   time.Now(),
	}
}

// IsTerminal reports whether w is a terminal (including Cygwin/MSYS ptys).
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetInteractive forces the live line on or off.
func (r *Reporter) SetInteractive(interactive bool) {
	r.mu.Lock()
	r.interactive = interactive
	r.mu.Unlock()
}

// Update redraws the live progress line in place using \r. It is safe to
// call from concurrent workers; redraws are throttled except for the final
// file.
//
// The display includes:
//   - Files attempted / total files (percentage)
//   - Bytes deserialized / corpus size at scan time
//   - Current rate (files/second) and throughput (MB/s)
//   - Elapsed time
//   - Estimated time remaining (ETA)
func (r *Reporter) Update(attempted int, bytesProcessed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.interactive || r.totalFiles == 0 {
		return
	}

	now := time.Now()
	if attempted < r.totalFiles && now.Sub(r.lastDraw) < minRedrawInterval {
		return
	}
	r.lastDraw = now

	elapsed := now.Sub(r.startTime)
	rate := r.calculateRate(attempted, elapsed)
	eta := r.calculateETA(attempted, rate)

	fmt.Fprintf(r.out, "\rDeserializing: %s / %s files (%.1f%%) | Data: %s / %s | Rate: %s files/sec | %s/s | Elapsed: %s | ETA: %s",
		FormatNumber(attempted),
		FormatNumber(r.totalFiles),
		r.calculatePercentage(attempted),
		FormatMegabytes(float64(bytesProcessed)/1024/1024),
		FormatMegabytes(float64(r.totalBytes)/1024/1024),
		FormatNumber(int(rate)),
		FormatMegabytes(r.calculateThroughput(bytesProcessed, elapsed)),
		FormatDuration(elapsed),
		FormatDuration(eta),
	)
}

// calculateRate calculates the rate in files per second.
// Returns 0 if no time has elapsed to avoid division by zero.
func (r *Reporter) calculateRate(attempted int, elapsed time.Duration) float64 {
	if elapsed.Seconds() == 0 {
		return 0
	}
	return float64(attempted) / elapsed.Seconds()
}

// calculateThroughput returns MB/s.
func (r *Reporter) calculateThroughput(bytesProcessed int64, elapsed time.Duration) float64 {
	if elapsed.Seconds() == 0 {
		return 0
	}
	return float64(bytesProcessed) / 1024 / 1024 / elapsed.Seconds()
}

// calculateETA calculates the estimated time remaining.
// Returns a very large duration if no files have been attempted yet or rate
// is zero, and 0 once every file has been attempted.
func (r *Reporter) calculateETA(attempted int, rate float64) time.Duration {
	if attempted == 0 || rate == 0 {
		return time.Duration(math.MaxInt64)
	}

	remaining := r.totalFiles - attempted
	if remaining <= 0 {
		return 0
	}

	secondsRemaining := float64(remaining) / rate
	return time.Duration(secondsRemaining) * time.Second
}

// calculatePercentage calculates the completion percentage.
// Returns 0 if totalFiles is 0 to avoid division by zero.
func (r *Reporter) calculatePercentage(attempted int) float64 {
	if r.totalFiles == 0 {
		return 0
	}
	return (float64(attempted) / float64(r.totalFiles)) * 100
}

// Finish writes the completion report for a run.
//
// The report includes:
//   - Total time, average rate and throughput
//   - Succeeded, failed and fast-path file counts
//   - Bytes and sub-units processed
//   - Failures grouped by kind, and the first failed files
func (r *Reporter) Finish(result *engine.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interactive {
		fmt.Fprintln(r.out)
	}

	title := "=== Benchmark Complete ==="
	if result.Cancelled {
		title = "=== Benchmark Interrupted ==="
	}

	fmt.Fprintf(r.out, "\n%s\n", title)
	fmt.Fprintf(r.out, "Run ID: %s\n", result.RunID)
	fmt.Fprintf(r.out, "Total time: %s (%dms)\n", FormatDuration(result.Duration), result.ElapsedMillis())
	fmt.Fprintf(r.out, "Average rate: %s files/sec, %s/s\n",
		FormatNumber(int(result.FilesPerSecond)), FormatMegabytes(result.MegabytesPerSecond))
	fmt.Fprintf(r.out, "Files deserialized: %s of %s attempted\n",
		FormatNumber(result.FilesSucceeded), FormatNumber(result.FilesAttempted))
	if result.FastPathFiles > 0 {
		fmt.Fprintf(r.out, "Fast-path files (not parsed): %s\n", FormatNumber(result.FastPathFiles))
	}
	if result.FilesInterrupted > 0 {
		fmt.Fprintf(r.out, "Interrupted in flight (not counted): %s\n", FormatNumber(result.FilesInterrupted))
	}
	fmt.Fprintf(r.out, "Data processed: %s\n", FormatMegabytes(result.Megabytes()))
	fmt.Fprintf(r.out, "Cells: %s\n", FormatNumber(result.SubUnitsProcessed))

	if result.FilesFailed > 0 {
		fmt.Fprintf(r.out, "Failed: %s files\n", FormatNumber(result.FilesFailed))

		byKind := result.FailuresByKind()
		kinds := make([]string, 0, len(byKind))
		for k := range byKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(r.out, "  %s: %s\n", k, FormatNumber(byKind[engine.FailureKind(k)]))
		}

		for i, e := range result.Errors {
			if i == maxListedErrors {
				fmt.Fprintf(r.out, "  ... and %s more\n", FormatNumber(len(result.Errors)-maxListedErrors))
				break
			}
			fmt.Fprintf(r.out, "  [%s] %s: %s\n", e.Kind, e.Location, e.Error)
		}
	}

	fmt.Fprintln(r.out)
}

// FormatNumber formats a number with thousands separators (commas).
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}

	result := make([]byte, 0, len(str)+len(str)/3)
	for i := 0; i < len(str); i++ {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, str[i])
	}
	return string(result)
}

// FormatMegabytes formats a MiB quantity with two decimals, as in the
// summary line.
func FormatMegabytes(mb float64) string {
	return fmt.Sprintf("%.2fMB", mb)
}

// FormatDuration formats a duration in a human-readable format.
// Formats as "Xh Ym Zs" for durations with hours, "Ym Zs" for minutes, or "Zs" for seconds.
// Returns "unknown" for very large durations and "0s" for negative durations.
func FormatDuration(d time.Duration) string {
	if d >= time.Duration(math.MaxInt64) {
		return "unknown"
	}

	if d < 0 {
		return "0s"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
