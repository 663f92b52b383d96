//go:build !linux && !darwin

package main

// getTotalSystemMemory is not implemented on this platform; the Go default
// memory limit applies.
func getTotalSystemMemory() int64 {
	return 0
}
