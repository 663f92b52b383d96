// Package scanner provides directory traversal and file discovery for a
// benchmark run: it walks the workspace root, keeps the regular files whose
// root-relative path matches the glob pattern, and tags each with a scheme.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/yourusername/deserialize-bench/internal/location"
	"github.com/yourusername/deserialize-bench/internal/logger"
	"github.com/yourusername/deserialize-bench/internal/safety"
)

// ErrInvalidScope is matched by every ScopeError.
var ErrInvalidScope = errors.New("invalid scan scope")

// ScopeError reports that enumeration could not start: no usable workspace
// root, or an invalid glob pattern. It is fatal for a run.
type ScopeError struct {
	Root    string
	Pattern string
	Reason  string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("invalid scan scope (root %q, pattern %q): %s", e.Root, e.Pattern, e.Reason)
}

// Is reports whether target is ErrInvalidScope.
func (e *ScopeError) Is(target error) bool {
	return target == ErrInvalidScope
}

// SchemeRule assigns Scheme to every matched file whose root-relative path
// also matches Pattern.
type SchemeRule struct {
	Pattern string `yaml:"pattern"`
	Scheme  string `yaml:"scheme"`
}

// Scanner handles directory traversal and glob matching.
type Scanner struct {
	rootPath string
	pattern  string
	rules    []SchemeRule
}

// ScanResult contains the results of a directory scan.
type ScanResult struct {
	Files          []location.Location // Matched files in walk (lexical) order
	TotalScanned   int                 // Files and directories visited below the root
	TotalMatched   int                 // Files matching the pattern
	TotalSizeBytes int64               // Sum of matched file sizes at scan time
	ScanDuration   time.Duration
}

// NewScanner creates a new Scanner instance.
//
// Parameters:
//   - rootPath: The workspace root to walk
//   - pattern: doublestar glob evaluated against slash-separated paths
//     relative to rootPath (e.g. "**/*.ipynb")
//   - rules: optional scheme rules; the first matching rule wins and files
//     matching no rule get the file scheme
func NewScanner(rootPath, pattern string, rules []SchemeRule) *Scanner {
	return &Scanner{
		rootPath: rootPath,
		pattern:  pattern,
		rules:    rules,
	}
}

// Enumerate returns the matching locations. It is Scan without statistics.
func (s *Scanner) Enumerate(ctx context.Context) ([]location.Location, error) {
	result, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return result.Files, nil
}

// Scan traverses the directory tree and collects files matching the pattern.
//
// The scan process:
//  1. Validates the root and every pattern, failing with *ScopeError
//  2. Walks the directory tree using filepath.WalkDir
//  3. Skips pseudo-filesystems and directories that cannot be read
//  4. Matches regular files against the pattern; symlinks are not followed
//  5. Applies scheme rules and sums file sizes
//
// The walk stops with ctx.Err() if ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	logger.Info("Starting scan of directory: %s (pattern %s)", s.rootPath, s.pattern)
	startTime := time.Now()

	result := &ScanResult{
		Files: make([]location.Location, 0),
	}

	err := filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == s.rootPath {
				return err
			}
			// If we can't access a path, log it but continue
			logger.LogFileWarning(path, fmt.Sprintf("Cannot access: %v", err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path == s.rootPath {
			return nil
		}

		result.TotalScanned++

		if d.IsDir() {
			if safety.IsPseudoFilesystem(path) {
				logger.LogFileWarning(path, "pseudo-filesystem")
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			logger.Debug("Skipping non-regular file: %s", path)
			return nil
		}

		rel, err := s.relativeSlashPath(path)
		if err != nil {
			logger.LogFileWarning(path, err.Error())
			return nil
		}

		// Patterns were validated up front, so Match cannot fail here.
		if ok, _ := doublestar.Match(s.pattern, rel); !ok {
			return nil
		}

		result.TotalMatched++
		result.TotalSizeBytes += fileSize(d)
		result.Files = append(result.Files, location.Location{
			Scheme: s.schemeFor(rel),
			Path:   path,
		})

		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ScopeError{Root: s.rootPath, Pattern: s.pattern, Reason: err.Error()}
	}

	result.ScanDuration = time.Since(startTime)

	logger.Info("Scan complete: %d scanned, %d matched (%d bytes) in %v",
		result.TotalScanned, result.TotalMatched, result.TotalSizeBytes, result.ScanDuration)

	return result, nil
}

func (s *Scanner) validate() error {
	if ok, reason := safety.CheckScope(s.rootPath); !ok {
		return &ScopeError{Root: s.rootPath, Pattern: s.pattern, Reason: reason}
	}
	if ok, reason := safety.CheckPattern(s.pattern); !ok {
		return &ScopeError{Root: s.rootPath, Pattern: s.pattern, Reason: reason}
	}
	for _, rule := range s.rules {
		if rule.Scheme == "" {
			return &ScopeError{Root: s.rootPath, Pattern: rule.Pattern, Reason: "scheme rule has no scheme"}
		}
		if ok, reason := safety.CheckPattern(rule.Pattern); !ok {
			return &ScopeError{Root: s.rootPath, Pattern: rule.Pattern, Reason: "scheme rule: " + reason}
		}
	}
	return nil
}

func (s *Scanner) relativeSlashPath(path string) (string, error) {
	rel, err := filepath.Rel(s.rootPath, path)
	if err != nil {
		return "", fmt.Errorf("cannot relativize path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// schemeFor returns the scheme of the first rule matching rel.
func (s *Scanner) schemeFor(rel string) string {
	for _, rule := range s.rules {
		if ok, _ := doublestar.Match(rule.Pattern, rel); ok {
			return rule.Scheme
		}
	}
	return location.SchemeFile
}

// fileSize returns the size of a file, or 0 if the info cannot be retrieved.
func fileSize(d fs.DirEntry) int64 {
	info, err := d.Info()
	if err != nil {
		return 0
	}
	return info.Size()
}
