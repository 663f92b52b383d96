//go:build unix

package monitor

import (
	"time"

	"golang.org/x/sys/unix"
)

type processUsage struct {
	cpuTime    time.Duration
	blockReads int64
}

// readProcessUsage reads user+system CPU time and block input operations
// for the current process from getrusage(2).
func readProcessUsage() (processUsage, bool) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return processUsage{}, false
	}
	cpu := time.Duration(ru.Utime.Nano()) + time.Duration(ru.Stime.Nano())
	return processUsage{cpuTime: cpu, blockReads: int64(ru.Inblock)}, true
}
