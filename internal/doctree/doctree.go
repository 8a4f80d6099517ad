// Package doctree wraps a parsed HTML document and exposes the operations
// the annotation pipeline needs: reading citation markers, writing their
// annotations back, and cutting the document into addressable sections.
package doctree

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Markup conventions shared with the editor that produces documents.
const (
	MarkerTag       = "citation"
	RefIDsAttr      = "data-ref-ids"
	RenderedAttr    = "data-rendered"
	TooltipAttr     = "data-tooltip"
	SectionIDAttr   = "data-paragraph-id"
	SectionSelector = "section[" + SectionIDAttr + "]"
)

// RefState classifies a marker's identifier attribute.
type RefState int

const (
	RefsAbsent  RefState = iota // no attribute; marker is ignored
	RefsInvalid                 // attribute present but not a JSON list of ids
	RefsOK
)

func (s RefState) String() string {
	switch s {
	case RefsAbsent:
		return "absent"
	case RefsInvalid:
		return "invalid"
	case RefsOK:
		return "ok"
	}
	return fmt.Sprintf("RefState(%d)", int(s))
}

// Marker is one citation element in document order.
type Marker struct {
	Index int      // position among all markers, used to address annotations
	Raw   string   // attribute value as found
	State RefState // parse outcome
	IDs   []string // parsed identifiers, in attribute order; nil unless RefsOK
}

// Annotation is the rendered output attached to one marker.
type Annotation struct {
	Rendered string
	Tooltip  string
}

// SectionRecord is one addressable section after annotation.
type SectionRecord struct {
	ParagraphID string `json:"paragraphId"`
	HTML        string `json:"html"`
}

// Document is a parsed markup tree owned by a single request.
type Document struct {
	doc     *goquery.Document
	markers *goquery.Selection
}

// Parse reads an HTML document or fragment.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc, markers: doc.Find(MarkerTag)}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Markers returns every citation element in document order, nested ones
// included.
func (d *Document) Markers() []Marker {
	out := make([]Marker, 0, d.markers.Length())
	d.markers.Each(func(i int, s *goquery.Selection) {
		m := Marker{Index: i}
		raw, ok := s.Attr(RefIDsAttr)
		switch {
		case !ok || raw == "":
			m.State = RefsAbsent
		default:
			m.Raw = raw
			ids, err := ParseRefIDs(raw)
			if err != nil {
				m.State = RefsInvalid
			} else {
				m.State = RefsOK
				m.IDs = ids
			}
		}
		out = append(out, m)
	})
	return out
}

// ParseRefIDs decodes a marker's identifier list. The value must be a JSON
// array whose elements are strings or numbers; numbers take their shortest
// decimal form, so 1.0 and 1e0 both name "1".
func ParseRefIDs(raw string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var vals []any
	if err := dec.Decode(&vals); err != nil {
		return nil, fmt.Errorf("ref ids: %w", err)
	}
	if vals == nil {
		return nil, fmt.Errorf("ref ids: not an array")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("ref ids: trailing data")
	}
	ids := make([]string, 0, len(vals))
	for _, v := range vals {
		switch t := v.(type) {
		case string:
			ids = append(ids, t)
		case json.Number:
			ids = append(ids, numberID(t))
		default:
			return nil, fmt.Errorf("ref ids: unsupported element %v", v)
		}
	}
	return ids, nil
}

func numberID(n json.Number) string {
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Apply writes annotations onto the markers they are keyed by. Markers
// without an entry are left untouched.
func (d *Document) Apply(annotations map[int]Annotation) {
	d.markers.Each(func(i int, s *goquery.Selection) {
		a, ok := annotations[i]
		if !ok {
			return
		}
		s.SetAttr(RenderedAttr, a.Rendered)
		s.SetAttr(TooltipAttr, a.Tooltip)
	})
}

// Sections returns one record per section element carrying a non-empty
// paragraph id, in document order. Nested sections are each reported and
// the outer record contains the inner markup.
func (d *Document) Sections() ([]SectionRecord, error) {
	var (
		out  []SectionRecord
		ferr error
	)
	d.doc.Find(SectionSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr(SectionIDAttr)
		if id == "" {
			return true
		}
		inner, err := s.Html()
		if err != nil {
			ferr = fmt.Errorf("render section %s: %w", id, err)
			return false
		}
		out = append(out, SectionRecord{ParagraphID: id, HTML: inner})
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	if out == nil {
		out = []SectionRecord{}
	}
	return out, nil
}
