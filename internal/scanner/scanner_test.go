package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/yourusername/deserialize-bench/internal/location"
)

// writeTree creates the given files (relative, slash-separated) below root.
func writeTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func relPaths(t testing.TB, root string, locs []location.Location) []string {
	t.Helper()
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		rel, err := filepath.Rel(root, loc.Path)
		if err != nil {
			t.Fatalf("Rel failed: %v", err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestScanner_BasicScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a.ipynb":               "{}",
		"notes.md":              "# hi",
		"sub/b.ipynb":           `{"cells": []}`,
		"sub/nested/c.ipynb":    "x",
		"sub/nested/ignore.txt": "ignored",
	})

	result, err := NewScanner(tmpDir, "**/*.ipynb", nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got := relPaths(t, tmpDir, result.Files)
	want := []string{"a.ipynb", "sub/b.ipynb", "sub/nested/c.ipynb"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected files %v, got %v", want, got)
	}

	if result.TotalMatched != 3 {
		t.Errorf("Expected TotalMatched = 3, got %d", result.TotalMatched)
	}
	// 5 files + sub + sub/nested
	if result.TotalScanned != 7 {
		t.Errorf("Expected TotalScanned = 7, got %d", result.TotalScanned)
	}
	if result.TotalSizeBytes != int64(len("{}")+len(`{"cells": []}`)+len("x")) {
		t.Errorf("Unexpected TotalSizeBytes %d", result.TotalSizeBytes)
	}

	for _, loc := range result.Files {
		if loc.Scheme != location.SchemeFile {
			t.Errorf("Expected file scheme for %s, got %s", loc.Path, loc.Scheme)
		}
	}
}

func TestScanner_EmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := NewScanner(tmpDir, "**/*.ipynb", nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Files) != 0 {
		t.Errorf("Expected no files, got %d", len(result.Files))
	}
	if result.TotalScanned != 0 || result.TotalSizeBytes != 0 {
		t.Errorf("Expected zero statistics, got %+v", result)
	}
}

func TestScanner_NoMatches(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.txt": "1", "b/c.md": "2"})

	locs, err := NewScanner(tmpDir, "**/*.ipynb", nil).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(locs) != 0 {
		t.Errorf("Expected no matches, got %v", locs)
	}
}

func TestScanner_PatternIsRootRelative(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"top.ipynb":           "{}",
		"notebooks/a.ipynb":   "{}",
		"notebooks/x/b.ipynb": "{}",
	})

	locs, err := NewScanner(tmpDir, "notebooks/*.ipynb", nil).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	got := relPaths(t, tmpDir, locs)
	if len(got) != 1 || got[0] != "notebooks/a.ipynb" {
		t.Errorf("Expected only notebooks/a.ipynb, got %v", got)
	}
}

func TestScanner_SchemeRules(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a.ipynb":             "{}",
		"interactive/1.ipynb": "{}",
		"interactive/2.ipynb": "{}",
	})

	rules := []SchemeRule{
		{Pattern: "interactive/**", Scheme: location.SchemeInteractive},
		{Pattern: "**", Scheme: "never-reached-for-interactive"},
	}
	locs, err := NewScanner(tmpDir, "**/*.ipynb", rules).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	schemes := map[string]string{}
	for i, rel := range relPaths(t, tmpDir, locs) {
		schemes[rel] = locs[i].Scheme
	}

	if schemes["interactive/1.ipynb"] != location.SchemeInteractive ||
		schemes["interactive/2.ipynb"] != location.SchemeInteractive {
		t.Errorf("Expected interactive scheme for interactive/, got %v", schemes)
	}
	if schemes["a.ipynb"] != "never-reached-for-interactive" {
		t.Errorf("Expected catch-all rule for a.ipynb, got %v", schemes)
	}
}

func TestScanner_ScopeErrors(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "plain.ipynb")
	writeTree(t, tmpDir, map[string]string{"plain.ipynb": "{}"})

	tests := []struct {
		name    string
		root    string
		pattern string
		rules   []SchemeRule
	}{
		{"missing root", filepath.Join(tmpDir, "missing"), "**/*.ipynb", nil},
		{"empty root", "", "**/*.ipynb", nil},
		{"root is a file", file, "**/*.ipynb", nil},
		{"bad pattern", tmpDir, "[abc", nil},
		{"empty pattern", tmpDir, "", nil},
		{"rule without scheme", tmpDir, "**/*.ipynb", []SchemeRule{{Pattern: "**"}}},
		{"rule with bad pattern", tmpDir, "**/*.ipynb", []SchemeRule{{Pattern: "{x", Scheme: "y"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(tt.root, tt.pattern, tt.rules).Scan(context.Background())
			if err == nil {
				t.Fatal("Expected scope error")
			}
			var scopeErr *ScopeError
			if !errors.As(err, &scopeErr) {
				t.Fatalf("Expected *ScopeError, got %T: %v", err, err)
			}
			if !errors.Is(err, ErrInvalidScope) {
				t.Error("Expected errors.Is(err, ErrInvalidScope)")
			}
			if scopeErr.Reason == "" {
				t.Error("Expected a reason")
			}
		})
	}
}

func TestScanner_CancelledContext(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.ipynb": "{}"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(tmpDir, "**/*.ipynb", nil).Scan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScanner_UnreadableSubdirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Permission bits are not enforced on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("Running as root bypasses permission checks")
	}

	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"ok/a.ipynb":     "{}",
		"locked/b.ipynb": "{}",
	})
	locked := filepath.Join(tmpDir, "locked")
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	defer os.Chmod(locked, 0755)

	locs, err := NewScanner(tmpDir, "**/*.ipynb", nil).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate should skip unreadable directories, got %v", err)
	}
	got := relPaths(t, tmpDir, locs)
	if len(got) != 1 || got[0] != "ok/a.ipynb" {
		t.Errorf("Expected only ok/a.ipynb, got %v", got)
	}
}

func TestScanner_SymlinksNotFollowed(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"target/a.ipynb": "{}"})

	if err := os.Symlink(filepath.Join(tmpDir, "target"), filepath.Join(tmpDir, "link")); err != nil {
		t.Skipf("Symlinks not supported on this system: %v", err)
	}
	if err := os.Symlink(filepath.Join(tmpDir, "target", "a.ipynb"), filepath.Join(tmpDir, "alias.ipynb")); err != nil {
		t.Skipf("Symlinks not supported on this system: %v", err)
	}

	locs, err := NewScanner(tmpDir, "**/*.ipynb", nil).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	got := relPaths(t, tmpDir, locs)
	if len(got) != 1 || got[0] != "target/a.ipynb" {
		t.Errorf("Expected the target file exactly once, got %v", got)
	}
}

// Property: for any generated tree, the scanner returns exactly the files
// whose extension matches, each once, in lexical walk order.
func TestScanMatchesExactlyPatternProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tmpDir := t.TempDir()

		n := rapid.IntRange(0, 20).Draw(rt, "numFiles")
		files := map[string]string{}
		var want []string
		for i := 0; i < n; i++ {
			dir := rapid.SampledFrom([]string{"", "a/", "a/b/", "c/"}).Draw(rt, "dir")
			ext := rapid.SampledFrom([]string{".ipynb", ".md", ".json"}).Draw(rt, "ext")
			rel := fmt.Sprintf("%sf%02d%s", dir, i, ext)
			files[rel] = "content"
			if ext == ".ipynb" {
				want = append(want, rel)
			}
		}
		writeTree(t, tmpDir, files)

		result, err := NewScanner(tmpDir, "**/*.ipynb", nil).Scan(context.Background())
		if err != nil {
			rt.Fatalf("Scan failed: %v", err)
		}

		got := relPaths(t, tmpDir, result.Files)
		if len(got) != len(want) {
			rt.Fatalf("Expected %d files, got %d (%v)", len(want), len(got), got)
		}

		sortedWant := append([]string(nil), want...)
		sort.Strings(sortedWant)
		sortedGot := append([]string(nil), got...)
		sort.Strings(sortedGot)
		for i := range sortedWant {
			if sortedWant[i] != sortedGot[i] {
				rt.Fatalf("File set mismatch: want %v, got %v", sortedWant, sortedGot)
			}
		}

		if result.TotalSizeBytes != int64(len(want)*len("content")) {
			rt.Fatalf("Expected %d bytes, got %d", len(want)*len("content"), result.TotalSizeBytes)
		}

		// Enumeration order is stable between scans.
		again, err := NewScanner(tmpDir, "**/*.ipynb", nil).Enumerate(context.Background())
		if err != nil {
			rt.Fatalf("Second scan failed: %v", err)
		}
		for i := range again {
			if again[i] != result.Files[i] {
				rt.Fatalf("Enumeration order changed between scans")
			}
		}
	})
}
