package provider

import (
	"bytes"
	"context"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/deserialize-bench/internal/document"
)

// YAMLStream deserializes multi-document YAML streams. Every "---" separated
// document becomes one sub-unit.
type YAMLStream struct{}

// NewYAMLStream creates the YAML stream provider.
func NewYAMLStream() *YAMLStream {
	return &YAMLStream{}
}

// Parse implements Provider.
func (p *YAMLStream) Parse(ctx context.Context, content []byte) (*document.Document, error) {
	doc := document.Empty()
	dec := yaml.NewDecoder(bytes.NewReader(content))

	for i := 0; ; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Provider: KeyYAML, Err: err}
		}

		kind := "empty"
		var value any
		if len(node.Content) > 0 {
			kind = nodeKindName(node.Content[0].Kind)
			if err := node.Content[0].Decode(&value); err != nil {
				return nil, &ParseError{Provider: KeyYAML, Err: err}
			}
		}
		doc.Append(kind, map[string]any{
			"kind":  kind,
			"line":  node.Line,
			"value": value,
		})
	}

	doc.Metadata["documents"] = doc.Len()
	return doc, nil
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
