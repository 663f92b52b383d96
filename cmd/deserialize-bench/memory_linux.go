//go:build linux

package main

import "golang.org/x/sys/unix"

// getTotalSystemMemory returns the total physical memory in bytes on Linux.
func getTotalSystemMemory() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int64(info.Totalram) * int64(info.Unit)
}
