package citeproc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Citation formats declared in a style's <info><category citation-format>.
const (
	FormatNumeric    = "numeric"
	FormatAuthorDate = "author-date"
	FormatAuthor     = "author"
	FormatLabel      = "label"
	FormatNote       = "note"
)

// Layout is the affix/delimiter set of a <layout> element.
type Layout struct {
	Prefix    string
	Suffix    string
	Delimiter string
}

// Style is the subset of a CSL style the engine acts on.
type Style struct {
	Class          string // in-text or note
	Format         string
	DefaultLocale  string
	Title          string
	Citation       Layout
	GroupDelimiter string // delimiter between author and year inside one cite
	Collapse       string
	YearSuffix     bool
	EtAlMin        int
	EtAlUseFirst   int
	AndSymbol      bool
	SortByNumber   bool // <citation><sort><key variable="citation-number">

	HasBibliography bool
}

// ParseStyle reads a CSL style document.
func ParseStyle(src string) (*Style, error) {
	doc, err := xmlquery.Parse(strings.NewReader(StripBOM(src)))
	if err != nil {
		return nil, fmt.Errorf("parse style: %w", err)
	}
	root := childElement(doc, "style")
	if root == nil {
		return nil, fmt.Errorf("parse style: missing <style> root element")
	}

	s := &Style{
		Class:          root.SelectAttr("class"),
		DefaultLocale:  root.SelectAttr("default-locale"),
		GroupDelimiter: ", ",
	}

	if info := childElement(root, "info"); info != nil {
		if t := childElement(info, "title"); t != nil {
			s.Title = strings.TrimSpace(t.InnerText())
		}
		for c := info.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, "category") && c.SelectAttr("citation-format") != "" {
				s.Format = c.SelectAttr("citation-format")
			}
		}
	}

	cit := childElement(root, "citation")
	if cit == nil {
		return nil, fmt.Errorf("parse style: missing <citation> element")
	}
	s.Collapse = cit.SelectAttr("collapse")
	s.YearSuffix = cit.SelectAttr("disambiguate-add-year-suffix") == "true"
	// Name options inherit style -> citation -> <name>, innermost wins.
	for _, n := range []*xmlquery.Node{root, cit, citationName(root, cit, map[string]bool{})} {
		if n == nil {
			continue
		}
		s.EtAlMin = intAttr(n, "et-al-min", s.EtAlMin)
		s.EtAlUseFirst = intAttr(n, "et-al-use-first", s.EtAlUseFirst)
	}
	if s.EtAlMin > 0 && s.EtAlUseFirst == 0 {
		s.EtAlUseFirst = 1
	}
	if sort := childElement(cit, "sort"); sort != nil {
		if key := childElement(sort, "key"); key != nil && key.SelectAttr("variable") == "citation-number" {
			s.SortByNumber = true
		}
	}
	if layout := childElement(cit, "layout"); layout != nil {
		s.Citation = layoutOf(layout)
		if g := descendantElement(layout, "group"); g != nil && g.SelectAttr("delimiter") != "" {
			s.GroupDelimiter = g.SelectAttr("delimiter")
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode || c.Data == "info" {
			continue
		}
		if n := descendantElement(c, "name"); n != nil && n.SelectAttr("and") == "symbol" {
			s.AndSymbol = true
			break
		}
	}

	if s.Format == "" {
		s.Format = inferFormat(s, cit)
	}

	s.HasBibliography = childElement(root, "bibliography") != nil
	return s, nil
}

// inferFormat guesses the citation format for styles lacking a category.
func inferFormat(s *Style, cit *xmlquery.Node) string {
	if s.Class == "note" {
		return FormatNote
	}
	if n := descendantElement(cit, "text"); n != nil && n.SelectAttr("variable") == "citation-number" {
		return FormatNumeric
	}
	return FormatAuthorDate
}

// citationName returns the first <name> element the citation renders,
// following <text macro="..."> references into their macros.
func citationName(root, n *xmlquery.Node, seen map[string]bool) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if c.Data == "name" {
			return c
		}
		if m := c.SelectAttr("macro"); c.Data == "text" && m != "" && !seen[m] {
			seen[m] = true
			if def := macroElement(root, m); def != nil {
				if found := citationName(root, def, seen); found != nil {
					return found
				}
			}
			continue
		}
		if found := citationName(root, c, seen); found != nil {
			return found
		}
	}
	return nil
}

func macroElement(root *xmlquery.Node, name string) *xmlquery.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "macro") && c.SelectAttr("name") == name {
			return c
		}
	}
	return nil
}

func layoutOf(n *xmlquery.Node) Layout {
	return Layout{
		Prefix:    n.SelectAttr("prefix"),
		Suffix:    n.SelectAttr("suffix"),
		Delimiter: n.SelectAttr("delimiter"),
	}
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func isElement(n *xmlquery.Node, name string) bool {
	return n.Type == xmlquery.ElementNode && n.Data == name
}

func childElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, name) {
			return c
		}
	}
	return nil
}

func descendantElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, name) {
			return c
		}
		if d := descendantElement(c, name); d != nil {
			return d
		}
	}
	return nil
}

func intAttr(n *xmlquery.Node, name string, fallback int) int {
	if v := n.SelectAttr(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
