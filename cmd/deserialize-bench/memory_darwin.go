//go:build darwin

package main

import "golang.org/x/sys/unix"

// getTotalSystemMemory returns the total physical memory in bytes on macOS.
func getTotalSystemMemory() int64 {
	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return int64(memsize)
}
