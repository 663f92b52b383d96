// Package testutil provides test intensity configuration, property-test
// helpers and notebook corpus fixtures shared by the package tests.
package testutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TestIntensity represents the thoroughness level of test execution.
type TestIntensity int

const (
	// IntensityQuick runs tests with small corpora for fast feedback during development.
	IntensityQuick TestIntensity = iota
	// IntensityThorough runs tests with larger corpora for validation in CI.
	IntensityThorough
)

// String returns the string representation of the test intensity.
func (ti TestIntensity) String() string {
	switch ti {
	case IntensityQuick:
		return "quick"
	case IntensityThorough:
		return "thorough"
	default:
		return "unknown"
	}
}

// TestConfig holds the corpus limits for the active intensity.
type TestConfig struct {
	Intensity TestIntensity

	// Number of iterations for property tests
	IterationCount int

	// Maximum number of files in a generated corpus
	MaxFiles int

	// Maximum number of cells in a generated notebook
	MaxCells int

	// Maximum directory depth of a generated corpus
	MaxDepth int

	// Timeout for individual tests
	Timeout time.Duration

	VerboseOutput bool
}

// GetTestConfig returns the configuration selected by the TEST_INTENSITY,
// TEST_QUICK and VERBOSE_TESTS environment variables. TEST_QUICK takes
// precedence; the default is quick mode.
func GetTestConfig() TestConfig {
	config := TestConfig{Intensity: ParseIntensity(os.Getenv("TEST_INTENSITY"))}
	if ParseBool(os.Getenv("TEST_QUICK")) {
		config.Intensity = IntensityQuick
	}

	switch config.Intensity {
	case IntensityThorough:
		config.IterationCount = 100
		config.MaxFiles = 200
		config.MaxCells = 64
		config.MaxDepth = 5
		config.Timeout = 5 * time.Minute
	default:
		config.IterationCount = 10
		config.MaxFiles = 30
		config.MaxCells = 16
		config.MaxDepth = 3
		config.Timeout = 30 * time.Second
	}

	config.VerboseOutput = ParseBool(os.Getenv("VERBOSE_TESTS"))
	return config
}

// String formats the configuration for verbose test output.
func (c TestConfig) String() string {
	return fmt.Sprintf("intensity=%s, iterations=%d, maxFiles=%d, maxCells=%d, maxDepth=%d, timeout=%s",
		c.Intensity, c.IterationCount, c.MaxFiles, c.MaxCells, c.MaxDepth, c.Timeout)
}

// ParseIntensity parses a string into a TestIntensity value.
// Returns IntensityQuick for invalid or empty strings.
func ParseIntensity(s string) TestIntensity {
	if strings.EqualFold(strings.TrimSpace(s), "thorough") {
		return IntensityThorough
	}
	return IntensityQuick
}

// ParseBool parses a string into a boolean value.
// Accepts "1", "true", "yes" (case-insensitive) and any non-zero integer as true.
func ParseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "true" || s == "yes" {
		return true
	}
	if i, err := strconv.Atoi(s); err == nil && i != 0 {
		return true
	}
	return false
}
