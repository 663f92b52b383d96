// Package monitor samples process resource usage while a benchmark runs.
// It tracks CPU time, heap and GC activity, and block reads to point at
// whatever is holding deserialization throughput back.
package monitor

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/deserialize-bench/internal/logger"
)

// Bottleneck detection thresholds.
const (
	// MemoryPressureThreshold is the fraction of Sys memory that triggers a warning.
	MemoryPressureThreshold = 0.95
	// GCPressureThreshold is the GC cycles/sec rate that triggers a warning.
	GCPressureThreshold = 2.0
	// CPUSaturationThreshold is the CPU usage percentage that triggers a warning.
	CPUSaturationThreshold = 90.0
)

// Share of samples a condition must hold in before the report calls it the
// primary bottleneck.
const (
	memoryVerdictPct = 50.0
	gcVerdictPct     = 30.0
	cpuVerdictPct    = 70.0
)

const bytesPerMB = 1024 * 1024

// Sample is one snapshot of resource usage taken during a run.
type Sample struct {
	Timestamp time.Time

	Goroutines int
	NumCPU     int
	CPUPercent float64 // across all cores, 0-100
	// CPUMeasured is false when CPUPercent is a goroutine count heuristic.
	CPUMeasured bool

	HeapMB       float64
	TotalAllocMB float64
	SysMB        float64
	NumGC        uint32
	GCPauseMs    float64 // since the previous sample

	BlockReads int64 // since the previous sample

	// Fed by the runner.
	FilesProcessed int
	ThroughputMBps float64

	MemoryPressure bool
	GCPressure     bool
	CPUSaturated   bool
}

// counters holds the cumulative values the next sample is diffed against.
type counters struct {
	at         time.Time
	numGC      uint32
	gcPauseNs  uint64
	cpuTime    time.Duration
	blockReads int64
}

// Monitor tracks resource usage during a benchmark run.
type Monitor struct {
	mu        sync.RWMutex
	samples   []Sample
	startTime time.Time
	prev      counters
}

// NewMonitor creates a monitor whose first sample is measured from now.
func NewMonitor() *Monitor {
	m := &Monitor{
		samples:   make([]Sample, 0, 256),
		startTime: time.Now(),
	}
	m.prev = snapshot()
	return m
}

func snapshot() counters {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c := counters{at: time.Now(), numGC: ms.NumGC, gcPauseNs: ms.PauseTotalNs}
	if usage, ok := readProcessUsage(); ok {
		c.cpuTime = usage.cpuTime
		c.blockReads = usage.blockReads
	}
	return c
}

// Start samples resource usage every interval until ctx is cancelled.
// It blocks, so callers run it in its own goroutine.
//
// Parameters:
//   - ctx: Context for cancellation
//   - interval: Time between samples
//   - filesProcessed: Returns the number of files attempted so far
//   - throughput: Returns the current throughput in MB/s
func (m *Monitor) Start(ctx context.Context, interval time.Duration, filesProcessed func() int, throughput func() float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.sample(filesProcessed(), throughput())
			m.mu.Lock()
			m.samples = append(m.samples, s)
			m.mu.Unlock()
			m.warn(s)
		}
	}
}

// sample measures usage since the previous call.
func (m *Monitor) sample(filesProcessed int, throughput float64) Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := time.Now()
	window := now.Sub(m.prev.at)

	s := Sample{
		Timestamp:      now,
		Goroutines:     runtime.NumGoroutine(),
		NumCPU:         runtime.NumCPU(),
		HeapMB:         float64(ms.Alloc) / bytesPerMB,
		TotalAllocMB:   float64(ms.TotalAlloc) / bytesPerMB,
		SysMB:          float64(ms.Sys) / bytesPerMB,
		NumGC:          ms.NumGC,
		GCPauseMs:      float64(ms.PauseTotalNs-m.prev.gcPauseNs) / 1e6,
		FilesProcessed: filesProcessed,
		ThroughputMBps: throughput,
	}

	next := counters{at: now, numGC: ms.NumGC, gcPauseNs: ms.PauseTotalNs}
	if usage, ok := readProcessUsage(); ok {
		s.CPUMeasured = true
		s.CPUPercent = cpuUsagePercent(usage.cpuTime-m.prev.cpuTime, window, s.NumCPU)
		s.BlockReads = usage.blockReads - m.prev.blockReads
		next.cpuTime = usage.cpuTime
		next.blockReads = usage.blockReads
	} else {
		s.CPUPercent = min(float64(s.Goroutines)/float64(s.NumCPU)*10, 100)
	}

	s.MemoryPressure = s.HeapMB > s.SysMB*MemoryPressureThreshold
	s.GCPressure = window > 0 && float64(ms.NumGC-m.prev.numGC)/window.Seconds() > GCPressureThreshold
	s.CPUSaturated = s.CPUPercent > CPUSaturationThreshold

	m.prev = next
	return s
}

// cpuUsagePercent converts CPU time consumed over a wall-clock window into
// a percentage of every core, clamped to [0, 100].
func cpuUsagePercent(cpuDelta, wall time.Duration, numCPU int) float64 {
	if wall <= 0 || numCPU <= 0 || cpuDelta <= 0 {
		return 0
	}
	return min(cpuDelta.Seconds()/(wall.Seconds()*float64(numCPU))*100, 100)
}

// warn logs one warning per bottleneck seen in s.
func (m *Monitor) warn(s Sample) {
	if s.MemoryPressure {
		logger.Warning("BOTTLENECK: Heap at %.1f MB of %.1f MB obtained from the OS (%.1f%%)",
			s.HeapMB, s.SysMB, s.HeapMB/s.SysMB*100)
	}
	if s.GCPressure {
		logger.Warning("BOTTLENECK: GC pressure while parsing (%.1f ms paused since last sample)", s.GCPauseMs)
	}
	if s.CPUSaturated {
		logger.Warning("BOTTLENECK: CPU saturated (%.1f%% of %d CPUs, %d goroutines)",
			s.CPUPercent, s.NumCPU, s.Goroutines)
	}

	if logger.Enabled(logger.DEBUG) && int(time.Since(m.startTime).Seconds())%10 == 0 {
		logger.Debug("Resources: goroutines=%d heap=%.1fMB gc=%d files=%d throughput=%.2fMB/s block reads=%d",
			s.Goroutines, s.HeapMB, s.NumGC, s.FilesProcessed, s.ThroughputMBps, s.BlockReads)
	}
}

// Samples returns a copy of every sample taken so far.
func (m *Monitor) Samples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Verdict names the resource that most likely limits throughput.
type Verdict string

const (
	VerdictMemory Verdict = "MEMORY PRESSURE"
	VerdictGC     Verdict = "GARBAGE COLLECTION PRESSURE"
	VerdictCPU    Verdict = "CPU SATURATION"
	VerdictIO     Verdict = "I/O BOUND"
)

// Summary aggregates the samples of one run.
type Summary struct {
	Samples        int
	MemoryPressure int
	GCPressure     int
	CPUSaturated   int

	PeakHeapMB         float64
	PeakGoroutines     int
	PeakThroughputMBps float64
	GCPauseMs          float64
	BlockReads         int64
}

// Summarize folds the collected samples into a Summary.
func (m *Monitor) Summarize() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := Summary{Samples: len(m.samples)}
	for _, s := range m.samples {
		if s.MemoryPressure {
			sum.MemoryPressure++
		}
		if s.GCPressure {
			sum.GCPressure++
		}
		if s.CPUSaturated {
			sum.CPUSaturated++
		}
		sum.PeakHeapMB = max(sum.PeakHeapMB, s.HeapMB)
		sum.PeakGoroutines = max(sum.PeakGoroutines, s.Goroutines)
		sum.PeakThroughputMBps = max(sum.PeakThroughputMBps, s.ThroughputMBps)
		sum.GCPauseMs += s.GCPauseMs
		sum.BlockReads += s.BlockReads
	}
	return sum
}

func (s Summary) pct(n int) float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(n) / float64(s.Samples) * 100
}

// Verdict picks the primary bottleneck. Memory wins over GC, GC over CPU;
// with none of them prevalent the run is assumed to be waiting on reads.
func (s Summary) Verdict() Verdict {
	switch {
	case s.pct(s.MemoryPressure) > memoryVerdictPct:
		return VerdictMemory
	case s.pct(s.GCPressure) > gcVerdictPct:
		return VerdictGC
	case s.pct(s.CPUSaturated) > cpuVerdictPct:
		return VerdictCPU
	default:
		return VerdictIO
	}
}

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════"
	lightRule = "───────────────────────────────────────────────────────────────────────────"
)

// GenerateReport renders the resource profile of the run with a primary
// bottleneck and what to try next.
func (m *Monitor) GenerateReport() string {
	sum := m.Summarize()
	if sum.Samples == 0 {
		return "No metrics collected"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n\n", heavyRule, "                    DESERIALIZATION RESOURCE PROFILE", heavyRule)

	fmt.Fprintf(&b, "Resource Pressure Summary:\n%s\n", lightRule)
	fmt.Fprintf(&b, "Memory Pressure:  %d/%d samples (%.1f%%) - Peak heap: %.1f MB\n",
		sum.MemoryPressure, sum.Samples, sum.pct(sum.MemoryPressure), sum.PeakHeapMB)
	fmt.Fprintf(&b, "GC Pressure:      %d/%d samples (%.1f%%) - Total pause: %.1f ms\n",
		sum.GCPressure, sum.Samples, sum.pct(sum.GCPressure), sum.GCPauseMs)
	fmt.Fprintf(&b, "CPU Saturation:   %d/%d samples (%.1f%%) - Peak goroutines: %d\n",
		sum.CPUSaturated, sum.Samples, sum.pct(sum.CPUSaturated), sum.PeakGoroutines)
	fmt.Fprintf(&b, "Block Reads:      %d - Peak throughput: %.2f MB/s\n\n",
		sum.BlockReads, sum.PeakThroughputMBps)

	fmt.Fprintf(&b, "Primary Bottleneck:\n%s\n", lightRule)
	switch v := sum.Verdict(); v {
	case VerdictMemory:
		fmt.Fprintf(&b, "⚠️  %s (detected in >%.0f%% of samples)\n", v, memoryVerdictPct)
		b.WriteString("   - Recommendation: Reduce --workers or --chunk-size\n")
		b.WriteString("   - Consider: Large documents are held as bytes and as a parsed tree at once\n")
	case VerdictGC:
		fmt.Fprintf(&b, "⚠️  %s (detected in >%.0f%% of samples)\n", v, gcVerdictPct)
		b.WriteString("   - Recommendation: The format provider allocates heavily per sub-unit\n")
		b.WriteString("   - Consider: Raise GOGC or GOMEMLIMIT for the benchmark process\n")
	case VerdictCPU:
		fmt.Fprintf(&b, "⚠️  %s (detected in >%.0f%% of samples)\n", v, cpuVerdictPct)
		b.WriteString("   - Parsing dominates; the numbers measure the provider, not the disk\n")
		b.WriteString("   - Consider: Compare providers or corpora rather than read methods\n")
	default:
		fmt.Fprintf(&b, "✓  %s (likely)\n", v)
		b.WriteString("   - No significant CPU, memory, or GC pressure detected\n")
		b.WriteString("   - Recommendation: Raise --workers to overlap reads\n")
		b.WriteString("   - Consider: Compare read methods with the read-bench command\n")
	}

	fmt.Fprintf(&b, "\n%s\n", heavyRule)
	return b.String()
}
