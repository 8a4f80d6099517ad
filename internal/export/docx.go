// Package export converts rendered bibliography entries into downloadable
// document formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
	"golang.org/x/net/html"
)

// DOCXContentType is the media type of a WordprocessingML document.
const DOCXContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Span is a run of entry text sharing one formatting.
type Span struct {
	Text   string
	Italic bool
	Bold   bool
}

// WriteDOCX writes one paragraph per entry, preceded by an optional title
// paragraph. Entries are the HTML fragments the engine produced.
func WriteDOCX(w io.Writer, title string, entries []string) error {
	doc := docx.New().WithDefaultTheme()
	if title != "" {
		doc.AddParagraph().AddText(title).Bold().Size("28")
	}
	for i, entry := range entries {
		spans, err := Spans(entry)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		para := doc.AddParagraph()
		for _, s := range spans {
			run := para.AddText(s.Text)
			if s.Italic {
				run.Italic()
			}
			if s.Bold {
				run.Bold()
			}
		}
	}
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// Spans flattens an entry fragment into formatted text runs. Block
// elements become word breaks and whitespace is collapsed.
func Spans(fragment string) ([]Span, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type: html.ElementNode,
		Data: "body",
	})
	if err != nil {
		return nil, fmt.Errorf("parse entry: %w", err)
	}

	var (
		spans []Span
		pend  bool // whitespace owed before the next text
	)
	emit := func(text string, italic, bold bool) {
		lead := text != "" && isSpace(text[0])
		words := strings.Fields(text)
		if len(words) == 0 {
			pend = pend || lead
			return
		}
		joined := strings.Join(words, " ")
		if (pend || lead) && len(spans) > 0 {
			joined = " " + joined
		}
		pend = isSpace(text[len(text)-1])

		if n := len(spans); n > 0 && spans[n-1].Italic == italic && spans[n-1].Bold == bold {
			spans[n-1].Text += joined
			return
		}
		spans = append(spans, Span{Text: joined, Italic: italic, Bold: bold})
	}

	var walk func(n *html.Node, italic, bold bool)
	walk = func(n *html.Node, italic, bold bool) {
		switch n.Type {
		case html.TextNode:
			emit(n.Data, italic, bold)
			return
		case html.ElementNode:
			switch n.Data {
			case "i", "em":
				italic = true
			case "b", "strong":
				bold = true
			case "div", "p", "br":
				pend = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, italic, bold)
		}
	}
	for _, n := range nodes {
		walk(n, false, false)
	}
	return spans, nil
}

// PlainText is the concatenated text of an entry fragment.
func PlainText(fragment string) (string, error) {
	spans, err := Spans(fragment)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String(), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r' || c == '\f'
}
