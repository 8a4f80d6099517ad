package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/citerender/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// MarkdownParser handles Markdown documents using goldmark. Raw HTML is
// passed through so citation markers and section wrappers survive.
type MarkdownParser struct{}

var markdown = goldmark.New(
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

func (p *MarkdownParser) Parse(r io.Reader) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return doctree.Parse(&buf)
}
