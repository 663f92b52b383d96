package safety

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// Property: any existing, listable directory outside the pseudo-filesystems
// is accepted as a scan scope.
func TestCheckScopeAcceptsTempDirs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tmpDir := t.TempDir()
		depth := rapid.IntRange(0, 4).Draw(rt, "depth")

		dir := tmpDir
		for i := 0; i < depth; i++ {
			dir = filepath.Join(dir, rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "segment"))
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			rt.Fatalf("Failed to create directory: %v", err)
		}

		ok, reason := CheckScope(dir)
		if !ok {
			rt.Fatalf("Directory %s was rejected: %s", dir, reason)
		}
	})
}

// Property: a root placed under any pseudo-filesystem entry is rejected.
func TestCheckScopeRejectsPseudoFilesystem(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Pseudo-filesystems are not checked on Windows")
	}

	rapid.Check(t, func(rt *rapid.T) {
		tmpDir := t.TempDir()

		original := PseudoFilesystems
		PseudoFilesystems = append([]string{tmpDir}, PseudoFilesystems...)
		defer func() { PseudoFilesystems = original }()

		sub := filepath.Join(tmpDir, rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "sub"))
		if err := os.MkdirAll(sub, 0755); err != nil {
			rt.Fatalf("Failed to create subdirectory: %v", err)
		}

		for _, root := range []string{tmpDir, sub} {
			ok, reason := CheckScope(root)
			if ok {
				rt.Fatalf("Root %s under pseudo-filesystem was accepted", root)
			}
			if !strings.Contains(reason, "pseudo-filesystem") {
				rt.Fatalf("Expected pseudo-filesystem reason, got: %s", reason)
			}
		}
	})
}

func TestCheckScopeNonExistentPath(t *testing.T) {
	testCases := []struct {
		name string
		path string
	}{
		{"simple", filepath.Join(t.TempDir(), "missing")},
		{"deeply nested", filepath.Join(t.TempDir(), "a", "b", "c", "missing")},
		{"with spaces", filepath.Join(t.TempDir(), "path with spaces")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := CheckScope(tc.path)
			if ok {
				t.Errorf("CheckScope should reject non-existent path: %s", tc.path)
			}
			if reason != "path does not exist" {
				t.Errorf("Expected reason 'path does not exist', got: %s", reason)
			}
		})
	}
}

func TestCheckScopeRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.ipynb")
	if err := os.WriteFile(file, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	ok, reason := CheckScope(file)
	if ok {
		t.Fatal("CheckScope should reject a regular file")
	}
	if reason != "path is not a directory" {
		t.Errorf("Expected reason 'path is not a directory', got: %s", reason)
	}
}

func TestCheckScopeEmptyRoot(t *testing.T) {
	ok, reason := CheckScope("")
	if ok {
		t.Fatal("CheckScope should reject an empty root")
	}
	if reason == "" {
		t.Error("No reason provided for rejection")
	}
}

func TestCheckScopeUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Permission bits are not enforced on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("Running as root bypasses permission checks")
	}

	dir := filepath.Join(t.TempDir(), "locked")
	if err := os.Mkdir(dir, 0000); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	defer os.Chmod(dir, 0755)

	ok, _ := CheckScope(dir)
	if ok {
		t.Error("CheckScope should reject a directory that cannot be listed")
	}
}

func TestCheckScopeRelativePath(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "notebooks")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}
	defer os.Chdir(originalWd)

	for _, rel := range []string{"notebooks", "./notebooks", "notebooks/../notebooks"} {
		if ok, reason := CheckScope(rel); !ok {
			t.Errorf("CheckScope(%q) rejected: %s", rel, reason)
		}
	}
}

func TestCheckPattern(t *testing.T) {
	tests := []struct {
		pattern string
		valid   bool
	}{
		{"**/*.ipynb", true},
		{"*.md", true},
		{"notebooks/{a,b}/*.ipynb", true},
		{"data/[abc]*.yaml", true},
		{"", false},
		{"[unclosed", false},
		{"{a,b", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			ok, reason := CheckPattern(tt.pattern)
			if ok != tt.valid {
				t.Errorf("CheckPattern(%q) = %v (%s), want %v", tt.pattern, ok, reason, tt.valid)
			}
		})
	}
}

func TestIsPseudoFilesystem(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Pseudo-filesystems are not checked on Windows")
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/proc", true},
		{"/proc/1/status", true},
		{"/sys/class", true},
		{"/dev", true},
		{"/devices", false},
		{"/home/user/proc", false},
		{"/", false},
		{"/tmp", false},
	}

	for _, tt := range tests {
		if got := IsPseudoFilesystem(tt.path); got != tt.want {
			t.Errorf("IsPseudoFilesystem(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestPathsMatchCaseSensitivity(t *testing.T) {
	if runtime.GOOS == "windows" {
		if !pathsMatch(`C:\Data`, `c:\data`) {
			t.Error("Paths should match case-insensitively on Windows")
		}
		return
	}
	if pathsMatch("/Data", "/data") {
		t.Error("Paths should match case-sensitively on Unix")
	}
	if !pathsMatch("/data/", "/data") {
		t.Error("Trailing separators should not affect matching")
	}
}
