package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yourusername/deserialize-bench/internal/backend"
	"github.com/yourusername/deserialize-bench/internal/config"
	"github.com/yourusername/deserialize-bench/internal/engine"
	"github.com/yourusername/deserialize-bench/internal/location"
	"github.com/yourusername/deserialize-bench/internal/logger"
	"github.com/yourusername/deserialize-bench/internal/monitor"
	"github.com/yourusername/deserialize-bench/internal/progress"
	"github.com/yourusername/deserialize-bench/internal/provider"
	"github.com/yourusername/deserialize-bench/internal/scanner"
	"github.com/yourusername/deserialize-bench/internal/telemetry"
)

// monitorInterval is how often the resource monitor samples.
const monitorInterval = time.Second

// scanEnumerator adapts the scanner to the engine and hands the scan
// statistics to onScan before the engine starts iterating.
type scanEnumerator struct {
	scanner *scanner.Scanner
	onScan  func(*scanner.ScanResult)
}

func (s *scanEnumerator) Enumerate(ctx context.Context) ([]location.Location, error) {
	result, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if s.onScan != nil {
		s.onScan(result)
	}
	return result.Files, nil
}

// lazyReporter forwards progress to a Reporter that only exists once the
// scan has counted the corpus. The scan finishes before any worker starts,
// so r needs no lock.
type lazyReporter struct {
	out io.Writer
	r   *progress.Reporter
}

func (l *lazyReporter) start(result *scanner.ScanResult) {
	fmt.Fprintf(l.out, "Found %s files (%s)\n",
		progress.FormatNumber(result.TotalMatched),
		progress.FormatMegabytes(float64(result.TotalSizeBytes)/1024/1024))
	l.r = progress.NewReporter(l.out, result.TotalMatched, result.TotalSizeBytes)
}

func (l *lazyReporter) update(attempted int, bytesProcessed int64) {
	if l.r != nil {
		l.r.Update(attempted, bytesProcessed)
	}
}

func (l *lazyReporter) finish(result *engine.RunResult) {
	if l.r == nil {
		// Enumeration was interrupted before the corpus was counted.
		l.r = progress.NewReporter(l.out, result.FilesAttempted, result.BytesProcessed)
	}
	l.r.Finish(result)
}

// runBenchmark executes one benchmark run with the given configuration.
// Returns an exit code: 0 for success, 1 for per-file failures or
// interruption, 2 for a fatal error.
func runBenchmark(cfg *config.Config, stdout, stderr io.Writer) int {
	if err := setupLogging(cfg); err != nil {
		fmt.Fprintf(stderr, "Warning: Failed to setup logging: %v\n", err)
	}
	defer logger.Close()

	// Set up interrupt handler for graceful cancellation
	ctx, cancel := engine.SetupInterruptHandler()
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TraceConfig{
		Exporter: cfg.Trace,
		Writer:   stderr,
		Version:  version,
	})
	if err != nil {
		fmt.Fprintf(stderr, "\n❌ Error: %v\n\n", err)
		logger.Error("Tracing setup failed: %v", err)
		return exitFatal
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warning("Failed to flush spans: %v", err)
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.MetricsTextfile != "" {
		metrics = telemetry.NewMetrics()
	}

	eng, reporter := createEngine(cfg, stdout, metrics)

	mon, stopMonitor := startMonitor(ctx, cfg, eng, stdout)
	result, err := eng.Run(ctx)
	stopMonitor()

	if err != nil {
		fmt.Fprintf(stderr, "\n❌ Error: %v\n\n", err)
		return exitFatal
	}

	return displayResults(cfg, result, reporter, mon, metrics, stdout)
}

// setupLogging initializes logging and records the effective configuration.
func setupLogging(cfg *config.Config) error {
	err := logger.SetupLogging(cfg.Verbose, cfg.LogFile)
	if err != nil {
		return err
	}

	logger.Info("deserialize-bench v%s", version)
	logger.Info("Workspace root: %s (pattern %s, provider %s)", cfg.Root, cfg.Pattern, cfg.Provider)
	logger.Debug("Configuration: workers=%d, buffer_size=%d, read_method=%s, chunk_size=%d, file_timeout=%s, fast_path=%v",
		cfg.Workers, cfg.BufferSize, cfg.ReadMethod, cfg.ChunkSize, cfg.FileTimeout, cfg.FastPathSchemes)
	return nil
}

// createEngine wires the scanner, backend, provider registry and progress
// reporter into an engine.
func createEngine(cfg *config.Config, stdout io.Writer, metrics *telemetry.Metrics) (*engine.Engine, *lazyReporter) {
	var eng *engine.Engine
	reporter := &lazyReporter{out: stdout}

	enumerator := &scanEnumerator{
		scanner: scanner.NewScanner(cfg.Root, cfg.Pattern, cfg.SchemeRules),
		onScan:  reporter.start,
	}

	eng = engine.NewEngine(
		enumerator,
		backend.NewBackend(cfg.Method(), cfg.ChunkSize, cfg.FastPathSchemes...),
		provider.NewDefaultRegistry(),
		engine.Options{
			ProviderKey: cfg.Provider,
			FastPath:    engine.NewFastPathPolicy(cfg.FastPathSchemes...),
			Workers:     cfg.Workers,
			BufferSize:  cfg.BufferSize,
			FileTimeout: cfg.FileTimeout,
			Metrics:     metrics,
			ProgressCallback: func(attempted int) {
				reporter.update(attempted, eng.BytesProcessed())
			},
		},
	)

	logger.Info("Initializing benchmark engine with %d workers", eng.Workers())
	return eng, reporter
}

// startMonitor starts resource sampling if enabled. The returned stop
// function ends sampling and is always safe to call.
func startMonitor(ctx context.Context, cfg *config.Config, eng *engine.Engine, stdout io.Writer) (*monitor.Monitor, func()) {
	if !cfg.Monitor {
		return nil, func() {}
	}

	monCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	mon := monitor.NewMonitor()
	go func() {
		defer close(done)
		mon.Start(monCtx, monitorInterval, eng.FilesProcessed, eng.Throughput)
	}()

	logger.Info("System resource monitoring enabled")
	fmt.Fprintln(stdout, "📊 System resource monitoring enabled - bottleneck analysis will be shown at completion")

	return mon, func() {
		stop()
		<-done
	}
}

// displayResults prints the completion report, the bottleneck analysis and
// exports metrics, then maps the result to an exit code.
func displayResults(cfg *config.Config, result *engine.RunResult, reporter *lazyReporter, mon *monitor.Monitor, metrics *telemetry.Metrics, stdout io.Writer) int {
	reporter.finish(result)

	if mon != nil {
		fmt.Fprintln(stdout, mon.GenerateReport())
	}

	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warning("Failed to write metrics to %s: %v", cfg.MetricsTextfile, err)
		} else {
			logger.Info("Metrics written to %s", cfg.MetricsTextfile)
		}
	}

	code := exitCodeFor(result)
	switch {
	case result.Cancelled:
		fmt.Fprintln(stdout, "⚠️  Benchmark interrupted; the report covers the files attempted so far.")
	case result.FilesFailed > 0:
		fmt.Fprintf(stdout, "⚠️  Warning: %s files could not be deserialized\n", progress.FormatNumber(result.FilesFailed))
		if cfg.LogFile != "" {
			fmt.Fprintf(stdout, "   See log file for details: %s\n", cfg.LogFile)
		}
	case result.FilesAttempted == 0:
		fmt.Fprintln(stdout, "✓ No files matched; nothing to deserialize.")
	default:
		fmt.Fprintln(stdout, "✓ Benchmark completed successfully.")
	}
	return code
}

// exitCodeFor maps a finished run to the process exit code.
func exitCodeFor(result *engine.RunResult) int {
	if result.Cancelled || result.FilesFailed > 0 {
		return exitFailed
	}
	return exitOK
}
