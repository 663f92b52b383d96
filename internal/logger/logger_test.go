package logger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// Property: verbose output is a strict superset of non-verbose output and
// carries exactly the DEBUG messages that were emitted.
func TestVerboseLogging(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numDebug := rapid.IntRange(1, 10).Draw(rt, "numDebug")
		numInfo := rapid.IntRange(1, 10).Draw(rt, "numInfo")
		numWarning := rapid.IntRange(0, 5).Draw(rt, "numWarning")
		numError := rapid.IntRange(0, 5).Draw(rt, "numError")

		var quiet, verbose bytes.Buffer
		emitAtLevel(&quiet, INFO, numDebug, numInfo, numWarning, numError)
		emitAtLevel(&verbose, DEBUG, numDebug, numInfo, numWarning, numError)

		if verbose.Len() <= quiet.Len() {
			rt.Fatalf("Verbose output (%d bytes) should be longer than non-verbose output (%d bytes)",
				verbose.Len(), quiet.Len())
		}

		if got := strings.Count(verbose.String(), "[DEBUG]"); got != numDebug {
			rt.Fatalf("Expected %d DEBUG messages in verbose output, got %d", numDebug, got)
		}
		if strings.Contains(quiet.String(), "[DEBUG]") {
			rt.Fatalf("Non-verbose output should NOT contain [DEBUG] messages")
		}

		for _, out := range []string{quiet.String(), verbose.String()} {
			if got := strings.Count(out, "[INFO]"); got != numInfo {
				rt.Fatalf("Expected %d INFO messages, got %d", numInfo, got)
			}
			if got := strings.Count(out, "[WARNING]"); got != numWarning {
				rt.Fatalf("Expected %d WARNING messages, got %d", numWarning, got)
			}
			if got := strings.Count(out, "[ERROR]"); got != numError {
				rt.Fatalf("Expected %d ERROR messages, got %d", numError, got)
			}
		}
	})
}

// emitAtLevel installs a logger at level writing to output, emits the
// requested number of messages per level, and restores the previous logger.
func emitAtLevel(output io.Writer, level LogLevel, numDebug, numInfo, numWarning, numError int) {
	oldLogger := globalLogger
	defer func() {
		globalLogger = oldLogger
	}()

	globalLogger = &Logger{
		level:  level,
		logger: newTestLogger(output),
	}

	for i := 0; i < numDebug; i++ {
		Debug("Debug message %d", i)
	}
	for i := 0; i < numInfo; i++ {
		Info("Info message %d", i)
	}
	for i := 0; i < numWarning; i++ {
		Warning("Warning message %d", i)
	}
	for i := 0; i < numError; i++ {
		Error("Error message %d", i)
	}
}

// newTestLogger creates a logger that writes to the given writer
func newTestLogger(output io.Writer) *log.Logger {
	return log.New(output, "", 0)
}

func TestSetupLoggingVerboseFlag(t *testing.T) {
	defer func() {
		Close()
		globalLogger = nil
	}()

	if err := SetupLogging(false, ""); err != nil {
		t.Fatalf("SetupLogging failed: %v", err)
	}
	if globalLogger.level != INFO {
		t.Errorf("Expected INFO level with verbose=false, got %v", globalLogger.level)
	}

	if err := SetupLogging(true, ""); err != nil {
		t.Fatalf("SetupLogging failed: %v", err)
	}
	if globalLogger.level != DEBUG {
		t.Errorf("Expected DEBUG level with verbose=true, got %v", globalLogger.level)
	}
}

// Property: with a log file configured, every emitted record lands in the
// file, including structured per-file errors.
func TestLogFileCreation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tmpDir := t.TempDir()
		logFileName := rapid.StringMatching(`[a-zA-Z0-9_-]{1,12}\.log`).Draw(rt, "logFileName")
		logFilePath := filepath.Join(tmpDir, logFileName)

		numInfo := rapid.IntRange(1, 10).Draw(rt, "numInfo")
		numFileErrors := rapid.IntRange(0, 5).Draw(rt, "numFileErrors")

		defer func() {
			Close()
			globalLogger = nil
		}()

		if err := SetupLogging(false, logFilePath); err != nil {
			rt.Fatalf("SetupLogging failed: %v", err)
		}

		for i := 0; i < numInfo; i++ {
			Info("deserialize START %d", i)
		}
		for i := 0; i < numFileErrors; i++ {
			LogFileError(fmt.Sprintf("file:///work/nb_%d.ipynb", i), "parse", errors.New("invalid JSON"))
		}

		if err := Close(); err != nil {
			rt.Fatalf("Close failed: %v", err)
		}

		content, err := os.ReadFile(logFilePath)
		if err != nil {
			rt.Fatalf("Log file was not created: %v", err)
		}
		text := string(content)

		if got := strings.Count(text, "[INFO]"); got != numInfo {
			rt.Fatalf("Expected %d INFO records in log file, got %d", numInfo, got)
		}
		if got := strings.Count(text, "Failed to deserialize file"); got != numFileErrors {
			rt.Fatalf("Expected %d file error records in log file, got %d", numFileErrors, got)
		}
		for i := 0; i < numFileErrors; i++ {
			want := fmt.Sprintf("Location: file:///work/nb_%d.ipynb", i)
			if !strings.Contains(text, want) {
				rt.Fatalf("Log file missing %q", want)
			}
		}
	})
}

func TestLogFileCreationInvalidPath(t *testing.T) {
	defer func() {
		Close()
		globalLogger = nil
	}()

	invalid := filepath.Join(t.TempDir(), "missing-dir", "run.log")
	if err := SetupLogging(false, invalid); err == nil {
		t.Error("SetupLogging should fail when the log directory does not exist")
	}
}

func TestLogFileAppendMode(t *testing.T) {
	logFilePath := filepath.Join(t.TempDir(), "bench.log")
	defer func() {
		Close()
		globalLogger = nil
	}()

	for run := 0; run < 2; run++ {
		if err := SetupLogging(false, logFilePath); err != nil {
			t.Fatalf("SetupLogging failed: %v", err)
		}
		Info("run %d", run)
		if err := Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	content, err := os.ReadFile(logFilePath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "run 0") || !strings.Contains(string(content), "run 1") {
		t.Errorf("Log file should contain both runs, got:\n%s", content)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	defer func() { globalLogger = nil }()

	if err := SetupLogging(false, filepath.Join(t.TempDir(), "x.log")); err != nil {
		t.Fatalf("SetupLogging failed: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got: %v", err)
	}

	globalLogger = nil
	if err := Close(); err != nil {
		t.Errorf("Close without a logger should return nil, got: %v", err)
	}
}

func TestLogMessageFormatting(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := globalLogger
	defer func() { globalLogger = oldLogger }()

	SetOutput(&buf, DEBUG)

	tests := []struct {
		fn    func(string, ...interface{})
		level string
	}{
		{Debug, "[DEBUG]"},
		{Info, "[INFO]"},
		{Warning, "[WARNING]"},
		{Error, "[ERROR]"},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.fn("value=%d", 42)
		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("Expected %s in output, got: %s", tt.level, out)
		}
		if !strings.Contains(out, "value=42") {
			t.Errorf("Expected formatted message in output, got: %s", out)
		}
	}
}

func TestLogFileErrorFormatting(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := globalLogger
	defer func() { globalLogger = oldLogger }()

	// File errors are written regardless of level.
	SetOutput(&buf, ERROR)

	LogFileError("file:///work/broken.ipynb", "parse", errors.New("jupyter-notebook: malformed content: invalid JSON"))

	out := buf.String()
	for _, want := range []string{
		"[ERROR] Failed to deserialize file",
		"Location: file:///work/broken.ipynb",
		"Stage: parse",
		"Reason: jupyter-notebook: malformed content: invalid JSON",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestLogFileWarningFormatting(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := globalLogger
	defer func() { globalLogger = oldLogger }()

	SetOutput(&buf, INFO)

	LogFileWarning("/work/private", "permission denied")

	out := buf.String()
	if !strings.Contains(out, "[WARNING] Skipped path") {
		t.Errorf("Expected warning header, got:\n%s", out)
	}
	if !strings.Contains(out, "Path: /work/private") || !strings.Contains(out, "Reason: permission denied") {
		t.Errorf("Expected path and reason, got:\n%s", out)
	}
}

func TestFileRecordsWithoutLogger(t *testing.T) {
	oldLogger := globalLogger
	defer func() { globalLogger = oldLogger }()
	globalLogger = nil

	var buf bytes.Buffer
	oldOutput, oldFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldOutput)
		log.SetFlags(oldFlags)
	}()

	LogFileError("file:///a", "read", errors.New("boom"))
	LogFileWarning("/a", "skipped")

	out := buf.String()
	for _, want := range []string{
		"[ERROR] Failed to deserialize file",
		"Location: file:///a",
		"Stage: read",
		"Reason: boom",
		"[WARNING] Skipped path",
		"Path: /a",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q from the standard logger, got:\n%s", want, out)
		}
	}
}

func TestEnabled(t *testing.T) {
	oldLogger := globalLogger
	defer func() { globalLogger = oldLogger }()

	SetOutput(io.Discard, WARNING)
	if Enabled(INFO) {
		t.Error("INFO should be disabled at WARNING level")
	}
	if !Enabled(ERROR) {
		t.Error("ERROR should be enabled at WARNING level")
	}

	globalLogger = nil
	if Enabled(DEBUG) || !Enabled(INFO) {
		t.Error("Uninitialized logger should behave like INFO level")
	}
}

// Concurrent writers must not interleave records.
func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := globalLogger
	defer func() { globalLogger = oldLogger }()

	SetOutput(&buf, INFO)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				LogFileError(fmt.Sprintf("file:///w%d/%d", w, i), "read", errors.New("gone"))
			}
		}(w)
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "Failed to deserialize file"); got != workers*perWorker {
		t.Errorf("Expected %d records, got %d", workers*perWorker, got)
	}
}
