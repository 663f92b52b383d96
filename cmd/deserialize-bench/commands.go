package main

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/deserialize-bench/internal/backend"
	"github.com/yourusername/deserialize-bench/internal/engine"
	"github.com/yourusername/deserialize-bench/internal/logger"
	"github.com/yourusername/deserialize-bench/internal/progress"
	"github.com/yourusername/deserialize-bench/internal/provider"
	"github.com/yourusername/deserialize-bench/internal/scanner"
)

// newProvidersCommand lists the registered format providers.
func newProvidersCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the registered format providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range provider.NewDefaultRegistry().Keys() {
				if key == provider.KeyJupyter {
					fmt.Fprintf(stdout, "%s (default)\n", key)
					continue
				}
				fmt.Fprintln(stdout, key)
			}
			return nil
		},
	}
}

// readBenchOptions are the flags specific to read-bench.
type readBenchOptions struct {
	methods  []string
	readers  int
	minFiles int
}

// newReadBenchCommand compares the read methods over the enumerated corpus
// without parsing anything.
func newReadBenchCommand(flags *runFlags, stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	opts := &readBenchOptions{}

	cmd := &cobra.Command{
		Use:   "read-bench [workspace-root]",
		Short: "Compare read methods over the corpus without parsing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd, args)
			if err != nil {
				return err
			}

			methods := make([]backend.ReadMethod, 0, len(opts.methods))
			for _, name := range opts.methods {
				m, err := backend.ParseReadMethod(name)
				if err != nil {
					return fmt.Errorf("invalid --methods value: %w", err)
				}
				methods = append(methods, m)
			}
			if opts.readers < 0 {
				return fmt.Errorf("invalid --readers value: must be >= 0 (got %d)", opts.readers)
			}

			if err := logger.SetupLogging(cfg.Verbose, cfg.LogFile); err != nil {
				fmt.Fprintf(stderr, "Warning: Failed to setup logging: %v\n", err)
			}
			defer logger.Close()

			*exitCode = runReadBench(scanner.NewScanner(cfg.Root, cfg.Pattern, cfg.SchemeRules), backend.BenchmarkConfig{
				Methods:      methods,
				Workers:      opts.readers,
				BufferSize:   cfg.BufferSize,
				ChunkSize:    cfg.ChunkSize,
				LocalSchemes: cfg.FastPathSchemes,
			}, opts.minFiles, stdout, stderr)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.methods, "methods", nil, "Read methods to compare (default: all)")
	cmd.Flags().IntVar(&opts.readers, "readers", 0, "Concurrent readers (default: NumCPU)")
	cmd.Flags().IntVar(&opts.minFiles, "min-files", 100, "Refuse to benchmark fewer files than this")
	return cmd
}

// runReadBench scans the corpus and runs the read-method comparison.
// Returns an exit code: 0 for success, 1 if interrupted, 2 for failure.
func runReadBench(s *scanner.Scanner, benchConfig backend.BenchmarkConfig, minFiles int, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "\n═══════════════════════════════════════════════════════════════════════════")
	fmt.Fprintln(stdout, "                    READ BENCHMARK - READ METHODS")
	fmt.Fprintln(stdout, "═══════════════════════════════════════════════════════════════════════════")
	fmt.Fprintln(stdout)

	ctx, cancel := engine.SetupInterruptHandler()
	defer cancel()

	logger.Info("Scanning directory to determine benchmark size...")
	scanResult, err := s.Scan(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "\n❌ Error: Failed to scan directory: %v\n\n", err)
		logger.Error("Directory scan failed: %v", err)
		return exitFatal
	}

	fmt.Fprintf(stdout, "Found %s files to use for benchmarking (%s)\n",
		progress.FormatNumber(scanResult.TotalMatched),
		progress.FormatMegabytes(float64(scanResult.TotalSizeBytes)/1024/1024))

	if scanResult.TotalMatched < minFiles || scanResult.TotalMatched == 0 {
		fmt.Fprintf(stderr, "\n⚠️  Warning: Only %d files found. Benchmarking requires at least %d files for meaningful results.\n",
			scanResult.TotalMatched, minFiles)
		fmt.Fprintf(stderr, "   Consider a larger corpus or lower --min-files.\n\n")
		logger.Warning("Insufficient files for benchmarking: %d (minimum %d)", scanResult.TotalMatched, minFiles)
		return exitFatal
	}

	benchConfig.Files = scanResult.Files
	readers := benchConfig.Workers
	if readers == 0 {
		readers = runtime.NumCPU()
	}
	logger.Info("Benchmark configuration: methods=%d, files=%d, readers=%d, chunk_size=%d",
		len(benchConfig.Methods), len(benchConfig.Files), readers, benchConfig.ChunkSize)

	fmt.Fprintln(stdout, "\nRunning benchmarks...")

	results, err := backend.RunBenchmark(ctx, benchConfig)
	if len(results) > 0 {
		displayBenchmarkResults(stdout, results, len(benchConfig.Files))
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(stdout, "⚠️  Benchmark interrupted; results above are partial.")
			return exitFailed
		}
		fmt.Fprintf(stderr, "\n❌ Error: Benchmark failed: %v\n\n", err)
		logger.Error("Benchmark failed: %v", err)
		return exitFatal
	}

	logger.Info("Benchmark completed successfully")
	return exitOK
}

// displayBenchmarkResults prints the results table, per-method details and
// a recommendation. Percentages are relative to the whole-file read, which
// is the simplest method.
func displayBenchmarkResults(out io.Writer, results []backend.BenchmarkResult, fileCount int) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════════════════")
	fmt.Fprintln(out, "                         BENCHMARK RESULTS")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	var baseline *backend.BenchmarkResult
	for i := range results {
		if results[i].Method == backend.MethodWhole {
			baseline = &results[i]
			break
		}
	}

	fmt.Fprintf(out, "%-12s %12s %10s %12s %10s %12s\n",
		"Method", "Files/sec", "MB/s", "Total Time", "Error Rate", "vs Baseline")
	fmt.Fprintln(out, "───────────────────────────────────────────────────────────────────────────")

	for _, result := range results {
		improvement := ""
		if result.Method == backend.MethodWhole {
			improvement = "(baseline)"
		} else if baseline != nil {
			improvement = fmt.Sprintf("%+.1f%%", result.PercentageImprovement(baseline))
		}

		status := ""
		if !result.IsSuccessful() {
			status = " ⚠️"
		}

		fmt.Fprintf(out, "%-12s %12.2f %10.2f %12s %9.2f%% %12s%s\n",
			result.Method, result.FilesPerSecond, result.BytesPerSecond/1024/1024,
			formatDuration(result.TotalTime), result.ErrorRate, improvement, status)
	}

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════════════════")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "DETAILED RESULTS:")
	fmt.Fprintln(out)

	for i, result := range results {
		fmt.Fprintf(out, "%d. %s\n", i+1, result.Method)
		fmt.Fprintf(out, "   Files read:       %d / %d\n", result.FilesRead, fileCount)
		fmt.Fprintf(out, "   Files failed:     %d\n", result.FilesFailed)
		fmt.Fprintf(out, "   Data read:        %s\n", progress.FormatMegabytes(float64(result.BytesRead)/1024/1024))
		fmt.Fprintf(out, "   Total time:       %v\n", result.TotalTime)
		if result.TotalTime > 0 {
			fmt.Fprintf(out, "     - Queue time:   %v (%.1f%%)\n", result.QueueTime,
				float64(result.QueueTime)/float64(result.TotalTime)*100)
			fmt.Fprintf(out, "     - Read time:    %v (%.1f%%)\n", result.ReadTime,
				float64(result.ReadTime)/float64(result.TotalTime)*100)
		}
		if result.Stats != nil && result.Stats.Chunks > 0 {
			fmt.Fprintf(out, "   Chunks:           %d\n", result.Stats.Chunks)
		}
		fmt.Fprintf(out, "   Memory allocated: %.2f MB\n", float64(result.MemoryUsedBytes)/(1024*1024))

		if result.IsSuccessful() {
			fmt.Fprintf(out, "   ✓ Status:         SUCCESS\n")
		} else {
			fmt.Fprintf(out, "   ⚠️  Status:        FAILED (high error rate or nothing read)\n")
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "RECOMMENDATIONS:")
	fmt.Fprintln(out)

	var fastest *backend.BenchmarkResult
	for i := range results {
		if results[i].IsSuccessful() && (fastest == nil || results[i].BytesPerSecond > fastest.BytesPerSecond) {
			fastest = &results[i]
		}
	}

	if fastest != nil {
		fmt.Fprintf(out, "• Fastest method: %s (%.2f MB/s)\n", fastest.Method, fastest.BytesPerSecond/1024/1024)
		fmt.Fprintf(out, "• To use this method: --read-method %s\n", fastest.Method)
	} else {
		fmt.Fprintln(out, "• No successful benchmark results to recommend")
	}
	fmt.Fprintln(out)
}

// formatDuration formats a duration for the results table.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
