package parser

import (
	"io"

	"github.com/dgallion1/citerender/internal/doctree"
)

// HTMLParser handles HTML documents and fragments.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader) (*doctree.Document, error) {
	return doctree.Parse(r)
}
