package backend

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/deserialize-bench/internal/location"
)

// BenchmarkConfig specifies a read-method comparison over a fixed corpus.
type BenchmarkConfig struct {
	// Methods specifies which read methods to benchmark.
	// If empty, all methods are tested.
	Methods []ReadMethod

	// Files is the corpus every method reads, typically the output of a scan.
	Files []location.Location

	// Workers specifies the number of concurrent readers.
	// If 0, defaults to NumCPU.
	Workers int

	// BufferSize specifies the work queue buffer size.
	// If 0, defaults to min(len(Files), 10000).
	BufferSize int

	// ChunkSize is passed to the backend; 0 selects DefaultChunkSize.
	ChunkSize int

	// LocalSchemes are the non-file schemes the backend may read.
	LocalSchemes []string
}

// BenchmarkResult contains the timing and throughput of one read method over
// the whole corpus.
type BenchmarkResult struct {
	Method ReadMethod

	// FilesPerSecond and BytesPerSecond are measured over TotalTime.
	FilesPerSecond float64
	BytesPerSecond float64

	// TotalTime is QueueTime + ReadTime.
	TotalTime time.Duration

	// QueueTime is the time spent handing locations to workers.
	QueueTime time.Duration

	// ReadTime is the time from the end of queuing until all workers finished.
	ReadTime time.Duration

	// MemoryUsedBytes is the total allocation during the run.
	MemoryUsedBytes int64

	FilesRead   int
	FilesFailed int
	BytesRead   int64

	// ErrorRate is FilesFailed / (FilesRead + FilesFailed) * 100.
	ErrorRate float64

	Stats *ReadStats
}

// PercentageImprovement calculates the percentage improvement of this result
// compared to a baseline result, based on FilesPerSecond:
//
//	improvement = ((current - baseline) / baseline) * 100
//
// Positive values indicate this result is faster than the baseline.
func (r *BenchmarkResult) PercentageImprovement(baseline *BenchmarkResult) float64 {
	if baseline == nil || baseline.FilesPerSecond == 0 {
		return 0.0
	}

	return ((r.FilesPerSecond - baseline.FilesPerSecond) / baseline.FilesPerSecond) * 100.0
}

// IsSuccessful returns true if the benchmark read something, failed on less
// than 5% of the corpus, and took measurable time.
func (r *BenchmarkResult) IsSuccessful() bool {
	return r.FilesRead > 0 && r.ErrorRate < 5.0 && r.TotalTime > 0
}

// RunBenchmark reads the configured corpus once per read method, each with a
// fresh backend so statistics never mix, and returns one result per method
// in the order given.
//
// A method whose run is interrupted by ctx yields a partial result; ctx.Err()
// is returned alongside the results gathered so far.
func RunBenchmark(ctx context.Context, config BenchmarkConfig) ([]BenchmarkResult, error) {
	if len(config.Files) == 0 {
		return nil, fmt.Errorf("benchmark corpus is empty")
	}

	methods := config.Methods
	if len(methods) == 0 {
		methods = AllMethods()
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = min(len(config.Files), 10000)
	}

	results := make([]BenchmarkResult, 0, len(methods))
	for _, method := range methods {
		result := runSingleMethodBenchmark(ctx, method, config, workers, bufferSize)
		results = append(results, result)
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, nil
}

func runSingleMethodBenchmark(ctx context.Context, method ReadMethod, config BenchmarkConfig, workers int, bufferSize int) BenchmarkResult {
	var memStatsBefore runtime.MemStats
	runtime.ReadMemStats(&memStatsBefore)

	backend := NewBackend(method, config.ChunkSize, config.LocalSchemes...)

	workChan := make(chan location.Location, bufferSize)

	var readCount atomic.Int64
	var failedCount atomic.Int64
	var bytesRead atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case loc, ok := <-workChan:
					if !ok {
						return
					}

					data, err := backend.Read(ctx, loc)
					if err != nil {
						failedCount.Add(1)
					} else {
						readCount.Add(1)
						bytesRead.Add(int64(len(data)))
					}
				}
			}
		}()
	}

	queueStartTime := time.Now()
queue:
	for _, loc := range config.Files {
		select {
		case <-ctx.Done():
			break queue
		case workChan <- loc:
		}
	}
	close(workChan)
	queueTime := time.Since(queueStartTime)

	readStartTime := time.Now()
	wg.Wait()
	readTime := time.Since(readStartTime)

	totalTime := queueTime + readTime

	var memStatsAfter runtime.MemStats
	runtime.ReadMemStats(&memStatsAfter)

	read := int(readCount.Load())
	failed := int(failedCount.Load())

	result := BenchmarkResult{
		Method:          method,
		TotalTime:       totalTime,
		QueueTime:       queueTime,
		ReadTime:        readTime,
		MemoryUsedBytes: int64(memStatsAfter.TotalAlloc - memStatsBefore.TotalAlloc),
		FilesRead:       read,
		FilesFailed:     failed,
		BytesRead:       bytesRead.Load(),
		Stats:           backend.GetReadStats(),
	}
	if secs := totalTime.Seconds(); secs > 0 {
		result.FilesPerSecond = float64(read) / secs
		result.BytesPerSecond = float64(result.BytesRead) / secs
	}
	if read+failed > 0 {
		result.ErrorRate = (float64(failed) / float64(read+failed)) * 100.0
	}

	return result
}
