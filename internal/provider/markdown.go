package provider

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/yourusername/deserialize-bench/internal/document"
)

// Markdown deserializes CommonMark text. Every top-level block (heading,
// paragraph, list, fenced code, ...) becomes one sub-unit.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates the markdown provider.
func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New()}
}

// Parse implements Provider. CommonMark has no syntax errors, so the only
// rejection is input that is not UTF-8 text.
func (p *Markdown) Parse(ctx context.Context, content []byte) (*document.Document, error) {
	if !utf8.Valid(content) {
		return nil, unsupported(KeyMarkdown, "content is not valid UTF-8")
	}

	root := p.md.Parser().Parse(text.NewReader(content))
	doc := document.Empty()

	i := 0
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i++

		kind := node.Kind().String()
		fields := map[string]any{
			"kind":     kind,
			"text":     blockText(node, content),
			"children": node.ChildCount(),
		}
		if h, ok := node.(*ast.Heading); ok {
			fields["level"] = h.Level
		}
		if fc, ok := node.(*ast.FencedCodeBlock); ok {
			fields["language"] = string(fc.Language(content))
		}
		doc.Append(kind, fields)
	}

	doc.Metadata["blocks"] = doc.Len()
	return doc, nil
}

// blockText joins the raw source lines of a leaf block. Container blocks
// (lists, block quotes) carry no lines of their own and yield "".
func blockText(node ast.Node, source []byte) string {
	lines := node.Lines()
	if lines == nil || lines.Len() == 0 {
		return ""
	}
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}
