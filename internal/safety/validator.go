// Package safety validates the scan scope before a benchmark run touches the
// filesystem: the root must be a readable directory, it must not live on a
// pseudo-filesystem whose files change while they are read, and the glob
// pattern must be well-formed.
package safety

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/yourusername/deserialize-bench/internal/logger"
)

// PseudoFilesystems lists kernel-backed trees whose "files" are generated on
// read. Their sizes are meaningless for a throughput benchmark and some of
// them block forever, so they are rejected as roots and skipped during walks.
var PseudoFilesystems = []string{
	"/proc",
	"/sys",
	"/dev",
}

// CheckScope validates that root can serve as the workspace root of a run.
// It performs the following checks:
//   - Resolves the path to an absolute path
//   - Verifies the path exists and is a directory
//   - Rejects roots on or inside a pseudo-filesystem
//   - Verifies the directory can be listed
//
// Returns (ok, reason) where reason explains why the scope is unusable.
func CheckScope(root string) (bool, string) {
	if root == "" {
		return false, "no workspace root configured"
	}

	absPath, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		logger.Warning("Cannot resolve absolute path for: %s (error: %v)", root, err)
		return false, fmt.Sprintf("cannot resolve absolute path: %v", err)
	}

	logger.Debug("Validating scan scope: %s", absPath)

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warning("Workspace root does not exist: %s", absPath)
			return false, "path does not exist"
		}
		logger.Warning("Cannot access workspace root: %s (error: %v)", absPath, err)
		return false, fmt.Sprintf("cannot access path: %v", err)
	}

	if !info.IsDir() {
		logger.Warning("Workspace root is not a directory: %s", absPath)
		return false, "path is not a directory"
	}

	if IsPseudoFilesystem(absPath) {
		logger.Warning("Workspace root is on a pseudo-filesystem: %s", absPath)
		return false, "path is on a pseudo-filesystem"
	}

	if !hasReadPermission(absPath) {
		logger.Warning("Insufficient permissions for: %s (directory not listable)", absPath)
		return false, "insufficient permissions to list directory"
	}

	logger.Debug("Scan scope is valid: %s", absPath)
	return true, ""
}

// CheckPattern reports whether pattern is a valid doublestar glob.
func CheckPattern(pattern string) (bool, string) {
	if pattern == "" {
		return false, "empty glob pattern"
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return false, fmt.Sprintf("invalid glob pattern %q", pattern)
	}
	return true, ""
}

// IsPseudoFilesystem reports whether path equals or is below one of
// PseudoFilesystems. Always false on Windows.
func IsPseudoFilesystem(path string) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	for _, pseudo := range PseudoFilesystems {
		if pathsMatch(path, pseudo) || isParentOf(pseudo, path) {
			return true
		}
	}
	return false
}

// isParentOf checks if parent is a parent directory of child.
// The comparison is case-insensitive on Windows and case-sensitive on Unix.
func isParentOf(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)

	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}

	if runtime.GOOS == "windows" {
		return strings.HasPrefix(strings.ToLower(child), strings.ToLower(parent))
	}
	return strings.HasPrefix(child, parent)
}

// hasReadPermission checks that the directory can be opened and listed.
func hasReadPermission(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	// An empty directory returns io.EOF, which still proves readability.
	_, err = f.Readdirnames(1)
	return err == nil || errors.Is(err, io.EOF)
}

// pathsMatch compares two paths for equality, respecting OS conventions.
// On Windows, the comparison is case-insensitive (C:\Path == c:\path).
// On Unix systems, the comparison is case-sensitive (/Path != /path).
func pathsMatch(path1, path2 string) bool {
	clean1 := filepath.Clean(path1)
	clean2 := filepath.Clean(path2)

	if runtime.GOOS == "windows" {
		return strings.EqualFold(clean1, clean2)
	}
	return clean1 == clean2
}
