// Package location provides the comparable identifier used for every file the
// benchmark touches: a resource scheme plus a path.
package location

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Well-known schemes.
const (
	// SchemeFile addresses a regular file on the local filesystem.
	SchemeFile = "file"

	// SchemeInteractive marks interactive-window notebooks. Locations with this
	// scheme are exempted from parsing by the default fast-path policy.
	SchemeInteractive = "vscode-interactive"
)

const schemeSeparator = "://"

// Location identifies a byte-addressable resource. It is a plain value type:
// comparable, usable as a map key, and never mutated after the scanner
// produces it.
type Location struct {
	Scheme string
	Path   string
}

// NormalizeScheme lowercases and trims a scheme name so configured schemes
// and scanned locations compare equal.
func NormalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

// File returns a file-scheme location for the given path.
func File(path string) Location {
	return Location{Scheme: SchemeFile, Path: path}
}

// String formats the location as scheme://path.
func (l Location) String() string {
	return l.Scheme + schemeSeparator + filepath.ToSlash(l.Path)
}

// IsZero reports whether the location is the zero value.
func (l Location) IsZero() bool {
	return l.Scheme == "" && l.Path == ""
}

// Parse converts a string into a Location.
// Inputs of the form scheme://path keep their scheme; anything else is
// treated as a bare filesystem path with the file scheme.
func Parse(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	scheme, rest, found := strings.Cut(s, schemeSeparator)
	if !found {
		return File(filepath.FromSlash(s)), nil
	}

	if scheme == "" {
		return Location{}, fmt.Errorf("missing scheme in location %q", s)
	}
	if rest == "" {
		return Location{}, fmt.Errorf("missing path in location %q", s)
	}

	return Location{Scheme: strings.ToLower(scheme), Path: filepath.FromSlash(rest)}, nil
}
