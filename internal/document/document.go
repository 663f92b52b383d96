// Package document defines the in-memory model that format providers produce
// when they deserialize a file: free-form metadata plus an ordered list of
// sub-units (cells, blocks, documents) whose shape is provider-defined.
package document

// Metadata holds document-level key/value pairs. Values are whatever the
// provider decoded (strings, numbers, nested maps).
type Metadata map[string]any

// SubUnit is one element of a document's ordered body, for example a single
// notebook cell. Kind is a short provider-defined label; Fields carries the
// provider-specific payload.
type SubUnit struct {
	Kind   string
	Fields map[string]any
}

// Document is the result of a successful parse.
// A Document with zero sub-units is valid: it represents either an empty
// source or a file exempted from parsing (see Empty).
type Document struct {
	Metadata Metadata
	SubUnits []SubUnit
}

// Empty returns a document with no metadata and no sub-units.
// It is what fast-path locations yield without consulting any provider.
func Empty() *Document {
	return &Document{
		Metadata: Metadata{},
		SubUnits: []SubUnit{},
	}
}

// Len returns the number of sub-units. It is safe to call on a nil Document.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.SubUnits)
}

// Append adds a sub-unit to the end of the document body.
func (d *Document) Append(kind string, fields map[string]any) {
	d.SubUnits = append(d.SubUnits, SubUnit{Kind: kind, Fields: fields})
}
