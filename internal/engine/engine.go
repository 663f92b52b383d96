// Package engine provides the benchmark runner: it enumerates a corpus once,
// reads and parses every file, isolates per-file failures and folds the
// outcomes into a single summary report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/deserialize-bench/internal/document"
	"github.com/yourusername/deserialize-bench/internal/location"
	"github.com/yourusername/deserialize-bench/internal/logger"
	"github.com/yourusername/deserialize-bench/internal/provider"
	"github.com/yourusername/deserialize-bench/internal/telemetry"
)

// Configuration constants for the benchmark engine.
const (
	// MaxAutoBufferSize is the maximum auto-detected buffer size for the work channel.
	MaxAutoBufferSize = 10000

	// DefaultRateInterval is how often the rate monitor logs throughput.
	DefaultRateInterval = 5 * time.Second

	tracerName = "github.com/yourusername/deserialize-bench/internal/engine"
)

// Enumerator lists the files of a corpus. It is called once per run.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]location.Location, error)
}

// Reader retrieves the full raw content of one file.
type Reader interface {
	Read(ctx context.Context, loc location.Location) ([]byte, error)
}

// Resolver looks up a format provider by key.
type Resolver interface {
	Resolve(key string) (provider.Provider, error)
}

// State is the lifecycle phase of a run.
type State int32

const (
	StateIdle State = iota
	StateEnumerating
	StateIterating
	StateReporting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnumerating:
		return "enumerating"
	case StateIterating:
		return "iterating"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures an Engine. The zero value runs sequentially with the
// jupyter-notebook provider, no fast-path schemes and no per-file timeout.
type Options struct {
	// ProviderKey selects the provider used for every non-fast-path file.
	ProviderKey string

	// FastPath lists schemes whose files are read but not parsed.
	FastPath FastPathPolicy

	// Workers is the number of files processed concurrently. Values below 2
	// process files strictly in enumeration order on the calling goroutine.
	Workers int

	// BufferSize is the work queue size when Workers > 1 (0 = auto-detect).
	BufferSize int

	// FileTimeout bounds the read plus parse of a single file (0 = no limit).
	FileTimeout time.Duration

	// RateInterval is the throughput logging period (0 = DefaultRateInterval).
	RateInterval time.Duration

	// Metrics receives per-file and per-run observations. May be nil.
	Metrics *telemetry.Metrics

	// Tracer creates the run and per-file spans. Defaults to the global
	// provider's tracer.
	Tracer trace.Tracer

	// ProgressCallback is called after each file with the number of files
	// attempted so far. With Workers > 1 it may be called concurrently.
	ProgressCallback func(attempted int)
}

// Engine drives benchmark runs.
// Enumerator, Reader and Resolver are injected so tests can substitute them.
type Engine struct {
	enumerator Enumerator
	reader     Reader
	resolver   Resolver

	providerKey      string
	fastPath         FastPathPolicy
	workers          int
	bufferSize       int
	fileTimeout      time.Duration
	rateInterval     time.Duration
	metrics          *telemetry.Metrics
	tracer           trace.Tracer
	progressCallback func(int)

	state atomic.Int32

	// Live counters accessible during a run for external monitoring.
	liveCounters atomicCounters
	startTime    atomic.Value // stores time.Time
}

// atomicCounters provides lock-free aggregates for the files of a run.
// attempted is incremented before a file is processed, so
// succeeded <= attempted holds at every instant.
type atomicCounters struct {
	attempted   atomic.Int64
	succeeded   atomic.Int64
	failed      atomic.Int64
	interrupted atomic.Int64
	fastPath    atomic.Int64
	bytes       atomic.Int64
	subUnits    atomic.Int64
}

func (c *atomicCounters) reset() {
	c.attempted.Store(0)
	c.succeeded.Store(0)
	c.failed.Store(0)
	c.interrupted.Store(0)
	c.fastPath.Store(0)
	c.bytes.Store(0)
	c.subUnits.Store(0)
}

// failureList collects failed files from concurrent workers.
type failureList struct {
	mu      sync.Mutex
	results []FileResult
}

func (l *failureList) add(r FileResult) {
	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
}

// sorted returns the failures in enumeration order.
func (l *failureList) sorted() []FileError {
	l.mu.Lock()
	defer l.mu.Unlock()

	sort.Slice(l.results, func(i, j int) bool { return l.results[i].Index < l.results[j].Index })
	out := make([]FileError, 0, len(l.results))
	for _, r := range l.results {
		out = append(out, FileError{Location: r.Location, Kind: r.Kind, Error: r.Err.Error()})
	}
	return out
}

// binding is the provider resolved once at the start of iteration.
type binding struct {
	provider provider.Provider
	err      error
}

// NewEngine creates a benchmark engine over the given collaborators.
func NewEngine(enumerator Enumerator, reader Reader, resolver Resolver, opts Options) *Engine {
	if opts.ProviderKey == "" {
		opts.ProviderKey = provider.KeyJupyter
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.RateInterval <= 0 {
		opts.RateInterval = DefaultRateInterval
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer(tracerName)
	}

	return &Engine{
		enumerator:       enumerator,
		reader:           reader,
		resolver:         resolver,
		providerKey:      opts.ProviderKey,
		fastPath:         opts.FastPath,
		workers:          opts.Workers,
		bufferSize:       opts.BufferSize,
		fileTimeout:      opts.FileTimeout,
		rateInterval:     opts.RateInterval,
		metrics:          opts.Metrics,
		tracer:           opts.Tracer,
		progressCallback: opts.ProgressCallback,
	}
}

// State returns the current lifecycle phase. Safe to call during a run.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	logger.Debug("Benchmark state: %s", s)
}

// Workers returns the configured worker count.
func (e *Engine) Workers() int {
	return e.workers
}

// FilesProcessed returns the number of files attempted so far in the
// current run. Safe to call concurrently during a run.
func (e *Engine) FilesProcessed() int {
	return int(e.liveCounters.attempted.Load())
}

// BytesProcessed returns the bytes of successfully processed files so far.
func (e *Engine) BytesProcessed() int64 {
	return e.liveCounters.bytes.Load()
}

// Throughput returns the current rate in MB/s of successfully processed
// bytes. Returns 0 if no run has started.
func (e *Engine) Throughput() float64 {
	v := e.startTime.Load()
	if v == nil {
		return 0
	}
	elapsed := time.Since(v.(time.Time)).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(e.liveCounters.bytes.Load()) / 1024 / 1024 / elapsed
}

// Run performs one benchmark run.
//
// The corpus is enumerated once. An enumeration failure is fatal: the run
// ends in StateFailed, no summary is emitted and the error is returned.
// Every other failure is confined to its file: it is logged, recorded in
// RunResult.Errors, and contributes nothing but an attempt to the
// aggregates.
//
// Cancelling ctx stops the run at the next file boundary. The partial
// result is still reported and returned with Cancelled set and a nil error.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	e.liveCounters.reset()
	start := time.Now()
	e.startTime.Store(start)

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartTime: start,
	}

	ctx, span := e.tracer.Start(ctx, "deserialize.run", trace.WithAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("provider.key", e.providerKey),
		attribute.Int("run.workers", e.workers),
	))
	defer span.End()

	logger.Info("deserialize START")
	logger.Debug("Run %s: provider=%s workers=%d fast-path schemes=%v file timeout=%s",
		result.RunID, e.providerKey, e.workers, e.fastPath.Schemes(), e.fileTimeout)

	e.setState(StateEnumerating)
	files, err := e.enumerator.Enumerate(ctx)
	if err != nil && ctx.Err() == nil {
		e.setState(StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "enumeration failed")
		logger.Error("Benchmark aborted: %v", err)
		return nil, fmt.Errorf("enumerate corpus: %w", err)
	}
	span.SetAttributes(attribute.Int("files.enumerated", len(files)))
	logger.Info("Found %d files to deserialize", len(files))

	e.setState(StateIterating)
	failures := &failureList{}
	if len(files) > 0 {
		b := e.bind()
		done := make(chan struct{})
		peakChan := make(chan float64, 1)
		go e.monitorRate(done, peakChan)

		if e.workers > 1 {
			e.runParallel(ctx, files, b, failures)
		} else {
			e.runSequential(ctx, files, b, failures)
		}

		close(done)
		result.PeakFilesPerSecond = <-peakChan
	}

	e.setState(StateReporting)
	result.Duration = time.Since(start)
	result.FilesAttempted = int(e.liveCounters.attempted.Load())
	result.FilesSucceeded = int(e.liveCounters.succeeded.Load())
	result.FilesFailed = int(e.liveCounters.failed.Load())
	result.FilesInterrupted = int(e.liveCounters.interrupted.Load())
	result.FastPathFiles = int(e.liveCounters.fastPath.Load())
	result.BytesProcessed = e.liveCounters.bytes.Load()
	result.SubUnitsProcessed = int(e.liveCounters.subUnits.Load())
	result.Errors = failures.sorted()
	result.Cancelled = ctx.Err() != nil &&
		(result.FilesAttempted < len(files) || result.FilesInterrupted > 0 || len(files) == 0)
	result.finalize()

	if result.Cancelled {
		logger.Warning("Benchmark interrupted after %d of %d files", result.FilesAttempted, len(files))
	}
	logger.Info("%s", result.SummaryLine())

	e.metrics.ObserveRun(result.Duration, result.Cancelled)
	span.SetAttributes(
		attribute.Int("files.attempted", result.FilesAttempted),
		attribute.Int("files.succeeded", result.FilesSucceeded),
		attribute.Int("files.failed", result.FilesFailed),
		attribute.Int64("bytes.processed", result.BytesProcessed),
		attribute.Int("subunits.processed", result.SubUnitsProcessed),
		attribute.Bool("run.cancelled", result.Cancelled),
	)

	e.setState(StateDone)
	return result, nil
}

// bind resolves the configured provider once for the whole run. A failed
// lookup is not fatal: it becomes the failure of every file that needs the
// provider.
func (e *Engine) bind() binding {
	p, err := e.resolver.Resolve(e.providerKey)
	if err != nil {
		logger.Warning("Provider %q unavailable, non-fast-path files will fail: %v", e.providerKey, err)
	}
	return binding{provider: p, err: err}
}

// runSequential processes files strictly in enumeration order.
func (e *Engine) runSequential(ctx context.Context, files []location.Location, b binding, failures *failureList) {
	for i, loc := range files {
		if ctx.Err() != nil {
			return
		}
		e.record(e.processFile(ctx, i, loc, b), failures)
	}
}

// runParallel distributes files over a pool of workers. Aggregates are
// updated atomically and failures are sorted back into enumeration order
// when the run is reported.
func (e *Engine) runParallel(ctx context.Context, files []location.Location, b binding, failures *failureList) {
	workChan := make(chan int, calculateBufferSize(e.bufferSize, len(files)))

	var g errgroup.Group
	g.Go(func() error {
		defer close(workChan)
		for i := range files {
			select {
			case <-ctx.Done():
				return nil
			case workChan <- i:
			}
		}
		return nil
	})

	for w := 0; w < e.workers; w++ {
		g.Go(func() error {
			for i := range workChan {
				// Drain without processing once cancelled.
				if ctx.Err() != nil {
					continue
				}
				e.record(e.processFile(ctx, i, files[i], b), failures)
			}
			return nil
		})
	}

	_ = g.Wait()
}

// calculateBufferSize returns the work channel size: the configured size if
// positive, otherwise min(fileCount, MaxAutoBufferSize).
func calculateBufferSize(configured, fileCount int) int {
	if configured > 0 {
		return configured
	}
	if fileCount < MaxAutoBufferSize {
		return fileCount
	}
	return MaxAutoBufferSize
}

// processFile runs one file through read, resolve and parse under its own
// span and optional timeout.
func (e *Engine) processFile(ctx context.Context, index int, loc location.Location, b binding) FileResult {
	e.liveCounters.attempted.Add(1)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "deserialize.file", trace.WithAttributes(
		attribute.String("file.location", loc.String()),
		attribute.Int("file.index", index),
	))
	defer span.End()

	r := e.attemptWithTimeout(ctx, loc, b)
	r.Index = index
	r.Location = loc
	r.Duration = time.Since(start)
	r.Interrupted = r.Err != nil && ctx.Err() != nil &&
		(errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded))

	if r.Interrupted {
		r.Kind = FailureCancelled
		span.SetAttributes(attribute.Bool("file.interrupted", true))
	} else if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, string(r.Kind))
		span.SetAttributes(attribute.String("failure.kind", string(r.Kind)))
	} else {
		span.SetAttributes(
			attribute.Int64("file.bytes", r.Bytes),
			attribute.Int("file.subunits", r.SubUnits),
			attribute.Bool("file.fast_path", r.FastPath),
		)
	}
	return r
}

// attemptWithTimeout bounds attempt by the per-file timeout. The attempt runs
// on its own goroutine so a provider that ignores its context cannot stall
// the run; its late result is discarded.
func (e *Engine) attemptWithTimeout(ctx context.Context, loc location.Location, b binding) FileResult {
	if e.fileTimeout <= 0 {
		return e.attempt(ctx, loc, b)
	}

	fileCtx, cancel := context.WithTimeout(ctx, e.fileTimeout)
	defer cancel()

	done := make(chan FileResult, 1)
	go func() {
		done <- e.attempt(fileCtx, loc, b)
	}()

	var r FileResult
	select {
	case r = <-done:
	case <-fileCtx.Done():
		r = failed(FailureRead, fileCtx.Err())
	}

	// Only our own deadline is a timeout; a cancelled run stays cancelled.
	if r.Err != nil && ctx.Err() == nil && errors.Is(fileCtx.Err(), context.DeadlineExceeded) {
		r.Err = fmt.Errorf("%w after %s: %w", ErrFileTimeout, e.fileTimeout, r.Err)
		r.Kind = FailureTimeout
	}
	return r
}

// attempt reads loc and parses it, or takes the fast path for exempted
// schemes. Bytes and SubUnits are only set on success.
func (e *Engine) attempt(ctx context.Context, loc location.Location, b binding) FileResult {
	content, err := e.reader.Read(ctx, loc)
	if err != nil {
		return failed(FailureRead, err)
	}

	var doc *document.Document
	fastPath := e.fastPath.Applies(loc)
	if fastPath {
		doc = document.Empty()
	} else {
		if b.err != nil {
			return failed(FailureResolve, b.err)
		}
		doc, err = b.provider.Parse(ctx, content)
		if err != nil {
			return failed(FailureParse, err)
		}
	}

	return FileResult{
		Bytes:    int64(len(content)),
		SubUnits: doc.Len(),
		FastPath: fastPath,
	}
}

func failed(stage FailureKind, err error) FileResult {
	return FileResult{Kind: classify(stage, err), Err: err}
}

// record folds one file result into the live aggregates.
func (e *Engine) record(r FileResult, failures *failureList) {
	if r.Interrupted {
		e.liveCounters.interrupted.Add(1)
		logger.Warning("Run cancelled while deserializing %s; not counted as a failure", r.Location)
	} else if r.Err == nil {
		e.liveCounters.bytes.Add(r.Bytes)
		e.liveCounters.subUnits.Add(int64(r.SubUnits))
		if r.FastPath {
			e.liveCounters.fastPath.Add(1)
		}
		e.liveCounters.succeeded.Add(1)
		e.metrics.ObserveSuccess(r.FastPath, r.Bytes, r.SubUnits, r.Duration)
		logger.Debug("Deserialized %s: %d bytes, %d sub-units", r.Location, r.Bytes, r.SubUnits)
	} else {
		e.liveCounters.failed.Add(1)
		e.metrics.ObserveFailure(string(r.Kind), r.Duration)
		logger.LogFileError(r.Location.String(), string(r.Kind), r.Err)
		failures.add(r)
	}

	if e.progressCallback != nil {
		e.progressCallback(int(e.liveCounters.attempted.Load()))
	}
}

// SetupInterruptHandler sets up a signal handler for graceful interruption (Ctrl+C).
// It creates a context that will be cancelled when an interrupt signal (SIGINT or SIGTERM)
// is received. This allows the engine to stop at the next file boundary and report partial
// progress instead of terminating abruptly.
//
// Usage:
//
//	ctx, cancel := engine.SetupInterruptHandler()
//	defer cancel()
//	result, err := eng.Run(ctx)
func SetupInterruptHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			logger.Warning("Interrupt received, finishing current file")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// monitorRate logs throughput every rateInterval until done is closed, then
// sends the peak files/sec rate on peakChan.
func (e *Engine) monitorRate(done <-chan struct{}, peakChan chan<- float64) {
	ticker := time.NewTicker(e.rateInterval)
	defer ticker.Stop()

	lastFiles := int64(0)
	lastBytes := int64(0)
	lastTime := time.Now()
	lastRate := 0.0
	peakRate := 0.0
	measurementCount := 0

	for {
		select {
		case <-done:
			if peakRate > 0 {
				logger.Info("Peak rate: %.1f files/sec with %d workers", peakRate, e.workers)
			}
			peakChan <- peakRate
			return
		case <-ticker.C:
			currentFiles := e.liveCounters.attempted.Load()
			currentBytes := e.liveCounters.bytes.Load()
			currentTime := time.Now()

			elapsed := currentTime.Sub(lastTime).Seconds()
			filesProcessed := currentFiles - lastFiles
			rate := float64(filesProcessed) / elapsed
			mbPerSec := float64(currentBytes-lastBytes) / 1024 / 1024 / elapsed

			if filesProcessed > 0 {
				logger.Info("Current rate: %.1f files/sec, %.2f MB/s (processed %d files in last %.1fs)",
					rate, mbPerSec, filesProcessed, elapsed)
			}

			if rate > peakRate {
				peakRate = rate
			}

			measurementCount++
			if measurementCount > 3 && lastRate > 0 {
				if change := ((rate - lastRate) / lastRate) * 100; change < -20 {
					logger.Warning("Rate declining (%.1f%% decrease). A slow file or provider may be stalling the run.", change)
				}
			}

			lastFiles = currentFiles
			lastBytes = currentBytes
			lastTime = currentTime
			lastRate = rate
		}
	}
}
