package parser

import (
	"strings"
	"testing"
)

func TestForFormat(t *testing.T) {
	cases := []struct {
		format string
		want   string
	}{
		{"", "html"},
		{"html", "html"},
		{"HTML", "html"},
		{"markdown", "markdown"},
		{"md", "markdown"},
	}
	for _, c := range cases {
		p, err := ForFormat(c.format)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.format, err)
		}
		switch p.(type) {
		case *HTMLParser:
			if c.want != "html" {
				t.Errorf("%q: expected %s parser, got html", c.format, c.want)
			}
		case *MarkdownParser:
			if c.want != "markdown" {
				t.Errorf("%q: expected %s parser, got markdown", c.format, c.want)
			}
		}
	}
	if _, err := ForFormat("docx"); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := ForFormat("pdf"); err == nil {
		t.Error("pdf should not be supported")
	}
}

func TestMarkdownParser_RawHTMLPassthrough(t *testing.T) {
	input := "# Results\n\n" +
		"<section data-paragraph-id=\"p1\">\n\n" +
		"See <citation data-ref-ids='[\"1\"]'></citation> for details.\n\n" +
		"</section>\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	markers := doc.Markers()
	if len(markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(markers))
	}
	if len(markers[0].IDs) != 1 || markers[0].IDs[0] != "1" {
		t.Errorf("expected marker ids [1], got %v", markers[0].IDs)
	}

	sections, err := doc.Sections()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 || sections[0].ParagraphID != "p1" {
		t.Fatalf("expected one section p1, got %+v", sections)
	}
	if !strings.Contains(sections[0].HTML, "<p>See <citation") {
		t.Errorf("expected paragraph inside section, got %s", sections[0].HTML)
	}
}

func TestHTMLParser_Fragment(t *testing.T) {
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(`<section data-paragraph-id="x"><b>bold</b></section>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sections, err := doc.Sections()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 || sections[0].HTML != "<b>bold</b>" {
		t.Errorf("unexpected sections: %+v", sections)
	}
}
