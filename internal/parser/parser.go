package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/citerender/internal/doctree"
)

// Parser converts a submitted document into a markup tree.
type Parser interface {
	Parse(r io.Reader) (*doctree.Document, error)
}

// ForFormat returns the parser for a document format. An empty format
// means HTML.
func ForFormat(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case "", "html":
		return &HTMLParser{}, nil
	case "markdown", "md":
		return &MarkdownParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported document format: %s", format)
	}
}
