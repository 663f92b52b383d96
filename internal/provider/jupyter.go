package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/yourusername/deserialize-bench/internal/document"
)

// cancelCheckInterval is how many sub-units a provider decodes between
// context checks.
const cancelCheckInterval = 256

// Jupyter deserializes .ipynb notebooks (nbformat 4 JSON).
// Each cell becomes one sub-unit with fields cell_type, source, metadata,
// outputs (count) and, for code cells, execution_count.
type Jupyter struct{}

// NewJupyter creates the notebook provider.
func NewJupyter() *Jupyter {
	return &Jupyter{}
}

type notebookCell struct {
	CellType       string          `json:"cell_type"`
	Source         json.RawMessage `json:"source"`
	Metadata       map[string]any  `json:"metadata"`
	Outputs        []any           `json:"outputs"`
	ExecutionCount *int            `json:"execution_count"`
}

// Parse implements Provider.
func (p *Jupyter) Parse(ctx context.Context, content []byte) (*document.Document, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return document.Empty(), nil
	}

	if !json.Valid(content) {
		return nil, malformed(KeyJupyter, "invalid JSON")
	}

	// Valid JSON from here on, so decode failures mean the shape is wrong.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(content, &top); err != nil {
		return nil, unsupported(KeyJupyter, "top-level JSON value is not an object")
	}

	rawCells, ok := top["cells"]
	if !ok {
		return nil, unsupported(KeyJupyter, "no cells array (not a notebook)")
	}
	if trimmed := bytes.TrimSpace(rawCells); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, unsupported(KeyJupyter, "cells is %s, not an array (not a notebook)", jsonKind(trimmed))
	}

	var cells []notebookCell
	if err := json.Unmarshal(rawCells, &cells); err != nil {
		return nil, malformed(KeyJupyter, "cells: %v", err)
	}

	doc := &document.Document{
		Metadata: document.Metadata{},
		SubUnits: make([]document.SubUnit, 0, len(cells)),
	}

	if rawMeta, ok := top["metadata"]; ok {
		var meta map[string]any
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return nil, malformed(KeyJupyter, "metadata: %v", err)
		}
		for k, v := range meta {
			doc.Metadata[k] = v
		}
	}
	for _, key := range []string{"nbformat", "nbformat_minor"} {
		if raw, ok := top[key]; ok {
			var n int
			if err := json.Unmarshal(raw, &n); err != nil {
				return nil, malformed(KeyJupyter, "%s: %v", key, err)
			}
			doc.Metadata[key] = n
		}
	}

	for i, cell := range cells {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if cell.CellType == "" {
			return nil, malformed(KeyJupyter, "cell %d: missing cell_type", i)
		}

		source, err := decodeSource(cell.Source)
		if err != nil {
			return nil, malformed(KeyJupyter, "cell %d: source: %v", i, err)
		}

		fields := map[string]any{
			"cell_type": cell.CellType,
			"source":    source,
			"metadata":  cell.Metadata,
			"outputs":   len(cell.Outputs),
		}
		if cell.ExecutionCount != nil {
			fields["execution_count"] = *cell.ExecutionCount
		}
		doc.Append(cell.CellType, fields)
	}

	return doc, nil
}

// decodeSource accepts the two encodings nbformat allows for cell sources:
// a single string or a list of line strings.
func decodeSource(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return "", err
	}
	return strings.Join(lines, ""), nil
}

// jsonKind names the type of a raw JSON value for error messages.
func jsonKind(raw []byte) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '{':
		return "an object"
	case '"':
		return "a string"
	case 'n':
		return "null"
	case 't', 'f':
		return "a boolean"
	default:
		return "a number"
	}
}
