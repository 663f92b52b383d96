package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

// Memory limit bounds.
const (
	memoryLimitFraction = 0.25
	maxMemoryLimit      = 6 * 1024 * 1024 * 1024 // 6GB
	minMemoryLimit      = 512 * 1024 * 1024      // 512MB
)

// initializeMemoryLimit sets Go's soft memory limit based on system RAM.
// Uses the lower of: 25% of system RAM OR 6GB, with a 512MB floor.
// A GOMEMLIMIT in the environment always wins.
//
// Examples:
//   - 32GB system: min(8GB, 6GB) = 6GB
//   - 16GB system: min(4GB, 6GB) = 4GB
//   - 1GB system:  max(256MB, 512MB) = 512MB
func initializeMemoryLimit() {
	if os.Getenv("GOMEMLIMIT") != "" {
		fmt.Fprintf(os.Stderr, "Using GOMEMLIMIT from environment (user override)\n")
		return
	}

	totalRAM := getTotalSystemMemory()
	if totalRAM <= 0 {
		fmt.Fprintf(os.Stderr, "Warning: Could not detect system memory, using Go defaults\n")
		return
	}

	memLimit, note := computeMemoryLimit(totalRAM)
	debug.SetMemoryLimit(memLimit)
	fmt.Fprintf(os.Stderr, "Go memory limit: %d MB (%s)\n", memLimit/(1024*1024), note)
}

// computeMemoryLimit returns the limit for a machine with totalRAM bytes
// and a short note on how it was chosen.
func computeMemoryLimit(totalRAM int64) (int64, string) {
	percentLimit := int64(float64(totalRAM) * memoryLimitFraction)
	totalRAMMB := totalRAM / (1024 * 1024)
	percentLimitMB := percentLimit / (1024 * 1024)

	switch {
	case percentLimit > maxMemoryLimit:
		return maxMemoryLimit, fmt.Sprintf("capped at 6GB, 25%% of %d MB would be %d MB", totalRAMMB, percentLimitMB)
	case percentLimit < minMemoryLimit:
		return minMemoryLimit, fmt.Sprintf("minimum floor, 25%% of %d MB would be %d MB", totalRAMMB, percentLimitMB)
	default:
		return percentLimit, fmt.Sprintf("25%% of %d MB system RAM", totalRAMMB)
	}
}
