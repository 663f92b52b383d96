package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FileKind is the shape of a generated corpus file.
type FileKind int

const (
	// KindValid is a well-formed notebook with FileSpec.Cells cells.
	KindValid FileKind = iota
	// KindEmptyFile is a zero-byte file, which parses to an empty document.
	KindEmptyFile
	// KindCorrupt is truncated JSON.
	KindCorrupt
	// KindUnsupported is valid JSON that is not a notebook.
	KindUnsupported
)

func (k FileKind) String() string {
	switch k {
	case KindValid:
		return "valid"
	case KindEmptyFile:
		return "empty"
	case KindCorrupt:
		return "corrupt"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// AllFileKinds lists every FileKind.
func AllFileKinds() []FileKind {
	return []FileKind{KindValid, KindEmptyFile, KindCorrupt, KindUnsupported}
}

// Parses reports whether the notebook provider accepts files of this kind.
func (k FileKind) Parses() bool {
	return k == KindValid || k == KindEmptyFile
}

// FileSpec describes one file of a generated corpus. Name is relative to
// the corpus root and may contain subdirectories.
type FileSpec struct {
	Name  string
	Kind  FileKind
	Cells int
}

// CorpusTotals are the aggregates a benchmark run over a generated corpus
// is expected to report.
type CorpusTotals struct {
	Files     int
	Succeeded int
	Failed    int
	Bytes     int64
	Cells     int
}

// Notebook returns an nbformat 4 notebook with the given number of cells,
// alternating code and markdown cells.
func Notebook(cells int) []byte {
	type cell struct {
		CellType       string         `json:"cell_type"`
		Source         []string       `json:"source"`
		Metadata       map[string]any `json:"metadata"`
		Outputs        []any          `json:"outputs,omitempty"`
		ExecutionCount *int           `json:"execution_count,omitempty"`
	}

	nb := struct {
		Cells         []cell         `json:"cells"`
		Metadata      map[string]any `json:"metadata"`
		NBFormat      int            `json:"nbformat"`
		NBFormatMinor int            `json:"nbformat_minor"`
	}{
		Cells: make([]cell, 0, cells),
		Metadata: map[string]any{
			"kernelspec": map[string]any{"name": "python3", "display_name": "Python 3"},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}

	for i := 0; i < cells; i++ {
		if i%2 == 0 {
			n := i + 1
			nb.Cells = append(nb.Cells, cell{
				CellType:       "code",
				Source:         []string{fmt.Sprintf("x_%d = %d\n", i, i), fmt.Sprintf("print(x_%d)", i)},
				Metadata:       map[string]any{},
				Outputs:        []any{map[string]any{"output_type": "stream", "text": fmt.Sprint(i)}},
				ExecutionCount: &n,
			})
			continue
		}
		nb.Cells = append(nb.Cells, cell{
			CellType: "markdown",
			Source:   []string{fmt.Sprintf("## Section %d", i)},
			Metadata: map[string]any{},
		})
	}

	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		panic(fmt.Sprintf("marshal notebook: %v", err))
	}
	return data
}

// CorruptNotebook returns a notebook cut off mid-document.
func CorruptNotebook() []byte {
	nb := Notebook(3)
	return nb[:len(nb)/2]
}

// UnsupportedNotebook returns valid JSON that has no cells array.
func UnsupportedNotebook() []byte {
	return []byte(`{"title": "not a notebook", "pages": [1, 2, 3]}`)
}

// Content returns the bytes for a corpus file.
func Content(spec FileSpec) []byte {
	switch spec.Kind {
	case KindValid:
		return Notebook(spec.Cells)
	case KindCorrupt:
		return CorruptNotebook()
	case KindUnsupported:
		return UnsupportedNotebook()
	default:
		return nil
	}
}

// WriteCorpus creates every file of specs under dir and returns the totals
// a run with the notebook provider should report.
func WriteCorpus(dir string, specs []FileSpec) (CorpusTotals, error) {
	var totals CorpusTotals
	for _, spec := range specs {
		path := filepath.Join(dir, filepath.FromSlash(spec.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return totals, fmt.Errorf("failed to create directory for %s: %w", spec.Name, err)
		}

		content := Content(spec)
		if err := os.WriteFile(path, content, 0644); err != nil {
			return totals, fmt.Errorf("failed to write %s: %w", spec.Name, err)
		}

		totals.Files++
		if !spec.Kind.Parses() {
			totals.Failed++
			continue
		}
		totals.Succeeded++
		totals.Bytes += int64(len(content))
		if spec.Kind == KindValid {
			totals.Cells += spec.Cells
		}
	}
	return totals, nil
}

// CreateCorpus writes specs into a fresh temporary directory.
func CreateCorpus(t testing.TB, specs []FileSpec) (string, CorpusTotals) {
	t.Helper()

	dir := t.TempDir()
	totals, err := WriteCorpus(dir, specs)
	if err != nil {
		t.Fatalf("Failed to create corpus: %v", err)
	}
	return dir, totals
}

// ValidCorpus returns specs for n well-formed notebooks of the given size,
// spread over subdirectories up to MaxDepth.
func ValidCorpus(config TestConfig, n, cells int) []FileSpec {
	specs := make([]FileSpec, n)
	for i := range specs {
		depth := 0
		if config.MaxDepth > 0 {
			depth = i % (config.MaxDepth + 1)
		}
		specs[i] = FileSpec{Name: corpusFileName(i, depth), Kind: KindValid, Cells: cells}
	}
	return specs
}

// corpusFileName returns a unique slash-separated notebook path nested
// depth directories deep.
func corpusFileName(i, depth int) string {
	parts := make([]string, 0, depth+1)
	for d := 0; d < depth; d++ {
		parts = append(parts, fmt.Sprintf("dir_%d", d))
	}
	parts = append(parts, fmt.Sprintf("nb_%04d.ipynb", i))
	return strings.Join(parts, "/")
}

// CountFiles recursively counts all regular files in a directory.
func CountFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count, err
}
