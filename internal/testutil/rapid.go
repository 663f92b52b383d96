package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// GetRapidCheckConfig sets the rapid iteration count for the current
// intensity through the RAPID_CHECKS environment variable.
func GetRapidCheckConfig(t *testing.T) {
	config := GetTestConfig()
	os.Setenv("RAPID_CHECKS", fmt.Sprintf("%d", config.IterationCount))

	if config.VerboseOutput {
		t.Logf("Rapid property test configured with %d iterations (intensity: %s)",
			config.IterationCount, config.Intensity)
	}
}

// RapidCheck wraps rapid.Check with the configured iteration count and
// deadline reporting. This is the recommended way to run property tests in
// this project.
func RapidCheck(t *testing.T, fn func(*rapid.T)) {
	t.Helper()

	config := GetTestConfig()
	GetRapidCheckConfig(t)

	if deadline, ok := t.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < config.Timeout {
			t.Logf("WARNING: Remaining test time (%s) is less than configured timeout (%s)",
				remaining.Round(time.Second), config.Timeout)
		}
	} else if config.VerboseOutput {
		t.Logf("WARNING: No test deadline set. Run tests with -timeout flag for safety.")
	}

	rapid.Check(t, fn)

	if config.VerboseOutput {
		t.Logf("Property test completed (%d iterations, %s)", config.IterationCount, config)
	}
}

// RapidCellCountGenerator produces notebook cell counts in [0, MaxCells].
func RapidCellCountGenerator(config TestConfig) *rapid.Generator[int] {
	if config.MaxCells <= 0 {
		return rapid.Just(0)
	}
	return rapid.IntRange(0, config.MaxCells)
}

// RapidFileKindGenerator produces any corpus file kind.
func RapidFileKindGenerator() *rapid.Generator[FileKind] {
	return rapid.SampledFrom(AllFileKinds())
}

// RapidCorpusGenerator produces corpus layouts of 0 to MaxFiles files, each
// with a random kind, cell count and nesting depth.
func RapidCorpusGenerator(config TestConfig) *rapid.Generator[[]FileSpec] {
	return rapid.Custom(func(t *rapid.T) []FileSpec {
		n := rapid.IntRange(0, config.MaxFiles).Draw(t, "files")
		specs := make([]FileSpec, n)
		for i := range specs {
			depth := rapid.IntRange(0, config.MaxDepth).Draw(t, fmt.Sprintf("depth%d", i))
			specs[i] = FileSpec{
				Name:  corpusFileName(i, depth),
				Kind:  RapidFileKindGenerator().Draw(t, fmt.Sprintf("kind%d", i)),
				Cells: RapidCellCountGenerator(config).Draw(t, fmt.Sprintf("cells%d", i)),
			}
		}
		return specs
	})
}
