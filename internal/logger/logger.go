// Package logger provides leveled logging with configurable output
// destinations. It supports both console and file logging with timestamps
// and severity levels, and is safe for use from concurrent benchmark workers.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// DEBUG level for detailed diagnostic information (verbose mode only)
	DEBUG LogLevel = iota
	// INFO level for general informational messages
	INFO
	// WARNING level for potentially problematic situations
	WARNING
	// ERROR level for error events that might still allow the application to continue
	ERROR
)

// Logger manages application logging with configurable levels and output destinations.
// It supports writing to both stderr and a log file simultaneously, and filters
// messages based on the configured log level.
type Logger struct {
	mu         sync.Mutex
	level      LogLevel
	fileWriter io.WriteCloser
	logger     *log.Logger
}

var (
	// globalLogger is the singleton logger instance used throughout the application
	globalLogger *Logger
)

// SetupLogging initializes the global logger with the specified configuration.
//
// Parameters:
//   - verbose: If true, enables DEBUG level logging (shows all messages)
//   - logFile: If non-empty, writes logs to the specified file path in addition to stderr
//
// The log file is opened in append mode, creating it if it doesn't exist, so
// consecutive benchmark runs accumulate in one file.
//
// Returns an error if the log file cannot be created or opened.
func SetupLogging(verbose bool, logFile string) error {
	level := INFO
	if verbose {
		level = DEBUG
	}

	var fileWriter io.WriteCloser
	var output io.Writer = os.Stderr

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		fileWriter = f
		output = io.MultiWriter(os.Stderr, f)
	}

	globalLogger = &Logger{
		level:      level,
		fileWriter: fileWriter,
		logger:     log.New(output, "", 0),
	}

	return nil
}

// SetOutput replaces the global logger with one writing to w at the given
// level. Any previously opened log file is closed first.
func SetOutput(w io.Writer, level LogLevel) {
	Close()
	globalLogger = &Logger{
		level:  level,
		logger: log.New(w, "", 0),
	}
}

// Close closes the log file if one was opened.
// It's safe to call this even if no log file was opened, and safe to call
// multiple times.
func Close() error {
	if globalLogger == nil {
		return nil
	}

	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	if globalLogger.fileWriter != nil {
		err := globalLogger.fileWriter.Close()
		globalLogger.fileWriter = nil
		return err
	}
	return nil
}

// Debug logs a debug-level message (only shown in verbose mode).
func Debug(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warning logs a warning message.
// Warning messages indicate problems that don't stop the run, such as a
// directory the scanner could not enter.
func Warning(format string, args ...interface{}) {
	logMessage(WARNING, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// LogFileError records one failed file of a benchmark run. stage names the
// step that failed (read, resolve, parse, ...).
//
// Example output:
//
//	2026-01-14 10:23:45 [ERROR] Failed to deserialize file
//	  Location: file:///work/notebooks/broken.ipynb
//	  Stage: parse
//	  Reason: jupyter-notebook: malformed content: invalid JSON
//
// Like the leveled functions, it falls back to log.Printf when SetupLogging
// has not been called.
func LogFileError(location string, stage string, err error) {
	if globalLogger == nil {
		log.Printf("[ERROR] Failed to deserialize file\n  Location: %s\n  Stage: %s\n  Reason: %v\n",
			location, stage, err)
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.logger.Printf("%s [ERROR] Failed to deserialize file\n  Location: %s\n  Stage: %s\n  Reason: %v\n",
		timestamp, location, stage, err)
}

// LogFileWarning logs a file-specific warning with structured formatting,
// used for paths the scanner skipped.
//
// Example output:
//
//	2026-01-14 10:23:45 [WARNING] Skipped path
//	  Path: /work/private
//	  Reason: permission denied
func LogFileWarning(path string, reason string) {
	if globalLogger == nil {
		log.Printf("[WARNING] Skipped path\n  Path: %s\n  Reason: %s\n", path, reason)
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.logger.Printf("%s [WARNING] Skipped path\n  Path: %s\n  Reason: %s\n",
		timestamp, path, reason)
}

// Enabled reports whether messages at level would be written.
func Enabled(level LogLevel) bool {
	if globalLogger == nil {
		return level >= INFO
	}
	return level >= globalLogger.level
}

// logMessage checks the level and formats messages with timestamps and
// severity. If the logger is not initialized, it falls back to log.Printf.
func logMessage(level LogLevel, format string, args ...interface{}) {
	if globalLogger == nil {
		log.Printf(format, args...)
		return
	}

	if level < globalLogger.level {
		return
	}

	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.logger.Printf("%s [%s] %s", timestamp, levelToString(level), message)
}

// levelToString converts a LogLevel to its string representation.
func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
