package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/yourusername/deserialize-bench/internal/location"
)

func makeCorpus(t testing.TB, n int, size int) []location.Location {
	t.Helper()
	dir := t.TempDir()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte('a' + i%26)
	}
	locs := make([]location.Location, 0, n)
	for i := 0; i < n; i++ {
		locs = append(locs, location.File(writeFile(t, dir, fmt.Sprintf("nb_%03d.ipynb", i), content)))
	}
	return locs
}

func TestRunBenchmark(t *testing.T) {
	files := makeCorpus(t, 25, 100)

	results, err := RunBenchmark(context.Background(), BenchmarkConfig{
		Files:   files,
		Workers: 4,
	})
	if err != nil {
		t.Fatalf("RunBenchmark failed: %v", err)
	}

	if len(results) != len(AllMethods()) {
		t.Fatalf("Expected %d results, got %d", len(AllMethods()), len(results))
	}

	for i, result := range results {
		if result.Method != AllMethods()[i] {
			t.Errorf("Result %d: expected method %s, got %s", i, AllMethods()[i], result.Method)
		}
		if result.FilesRead != 25 || result.FilesFailed != 0 {
			t.Errorf("%s: expected 25 read and 0 failed, got %d/%d", result.Method, result.FilesRead, result.FilesFailed)
		}
		if result.BytesRead != 2500 {
			t.Errorf("%s: expected 2500 bytes, got %d", result.Method, result.BytesRead)
		}
		if !result.IsSuccessful() {
			t.Errorf("%s: expected successful result, got %+v", result.Method, result)
		}
		if result.Stats == nil || result.Stats.Reads != 25 {
			t.Errorf("%s: stats should be isolated per method, got %+v", result.Method, result.Stats)
		}
	}
}

func TestRunBenchmarkCountsFailures(t *testing.T) {
	files := makeCorpus(t, 3, 10)
	files = append(files, location.File(filepath.Join(t.TempDir(), "missing.ipynb")))

	results, err := RunBenchmark(context.Background(), BenchmarkConfig{
		Methods: []ReadMethod{MethodWhole},
		Files:   files,
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("RunBenchmark failed: %v", err)
	}

	r := results[0]
	if r.FilesRead != 3 || r.FilesFailed != 1 {
		t.Errorf("Expected 3 read and 1 failed, got %d/%d", r.FilesRead, r.FilesFailed)
	}
	if r.ErrorRate != 25.0 {
		t.Errorf("Expected 25%% error rate, got %.2f", r.ErrorRate)
	}
	if r.IsSuccessful() {
		t.Error("A 25% error rate should not count as successful")
	}
}

func TestRunBenchmarkInvalidConfig(t *testing.T) {
	if _, err := RunBenchmark(context.Background(), BenchmarkConfig{}); err == nil {
		t.Error("Expected error for empty corpus")
	}
}

func TestRunBenchmarkCancelled(t *testing.T) {
	files := makeCorpus(t, 10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RunBenchmark(ctx, BenchmarkConfig{Files: files})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected the interrupted method's partial result only, got %d results", len(results))
	}
}

func TestBenchmarkResultPercentageImprovement(t *testing.T) {
	baseline := &BenchmarkResult{FilesPerSecond: 700}

	tests := []struct {
		current float64
		want    float64
	}{
		{1400, 100},
		{700, 0},
		{350, -50},
	}
	for _, tt := range tests {
		r := &BenchmarkResult{FilesPerSecond: tt.current}
		if got := r.PercentageImprovement(baseline); got != tt.want {
			t.Errorf("PercentageImprovement(%v vs 700) = %v, want %v", tt.current, got, tt.want)
		}
	}

	r := &BenchmarkResult{FilesPerSecond: 10}
	if got := r.PercentageImprovement(nil); got != 0 {
		t.Errorf("Nil baseline should yield 0, got %v", got)
	}
	if got := r.PercentageImprovement(&BenchmarkResult{}); got != 0 {
		t.Errorf("Zero baseline should yield 0, got %v", got)
	}
}

func TestBenchmarkResultIsSuccessful(t *testing.T) {
	tests := []struct {
		name   string
		result BenchmarkResult
		want   bool
	}{
		{"healthy", BenchmarkResult{FilesRead: 10, TotalTime: time.Millisecond}, true},
		{"nothing read", BenchmarkResult{TotalTime: time.Millisecond}, false},
		{"high error rate", BenchmarkResult{FilesRead: 10, ErrorRate: 5, TotalTime: time.Millisecond}, false},
		{"no time", BenchmarkResult{FilesRead: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsSuccessful(); got != tt.want {
				t.Errorf("IsSuccessful() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Property: each method reads the whole corpus independently, whatever the
// worker count, buffer size and method subset.
func TestPropertyBenchmarkIsolation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "files")
		workers := rapid.IntRange(1, 8).Draw(rt, "workers")
		bufferSize := rapid.IntRange(1, 50).Draw(rt, "bufferSize")
		methods := rapid.Permutation(AllMethods()).Draw(rt, "methods")
		methods = methods[:rapid.IntRange(1, len(methods)).Draw(rt, "numMethods")]

		files := makeCorpus(t, n, 32)

		results, err := RunBenchmark(context.Background(), BenchmarkConfig{
			Methods:    methods,
			Files:      files,
			Workers:    workers,
			BufferSize: bufferSize,
		})
		if err != nil {
			rt.Fatalf("RunBenchmark failed: %v", err)
		}
		if len(results) != len(methods) {
			rt.Fatalf("Expected %d results, got %d", len(methods), len(results))
		}

		for i, r := range results {
			if r.Method != methods[i] {
				rt.Fatalf("Result order mismatch at %d", i)
			}
			if r.FilesRead != n {
				rt.Fatalf("%s: expected %d files read, got %d", r.Method, n, r.FilesRead)
			}
			if r.BytesRead != int64(n*32) {
				rt.Fatalf("%s: expected %d bytes, got %d", r.Method, n*32, r.BytesRead)
			}
			if r.Stats.Reads != int64(n) {
				rt.Fatalf("%s: backend stats leaked between methods (%d reads)", r.Method, r.Stats.Reads)
			}
		}
	})
}
