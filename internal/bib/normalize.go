package bib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// stringFields maps CSL variables that are plain text onto their setters.
var stringFields = map[string]func(*Item, string){
	"type":            func(it *Item, v string) { it.Type = v },
	"container-title": func(it *Item, v string) { it.ContainerTitle = v },
	"publisher":       func(it *Item, v string) { it.Publisher = v },
	"publisher-place": func(it *Item, v string) { it.PublisherPlace = v },
	"volume":          func(it *Item, v string) { it.Volume = v },
	"issue":           func(it *Item, v string) { it.Issue = v },
	"page":            func(it *Item, v string) { it.Page = v },
	"DOI":             func(it *Item, v string) { it.DOI = v },
	"URL":             func(it *Item, v string) { it.URL = v },
}

// Normalize maps a loosely structured catalog record onto the CSL item
// schema. The catalog key is used when the record carries no id of its own.
//
// Accepted variations: authors as objects, "Family, Given" strings or
// "Given Family" strings; issued as a CSL date object, an ISO-ish date
// string, a bare year number, or a top-level "year" field; numbers where
// text is expected.
func Normalize(key string, raw json.RawMessage) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return Item{}, fmt.Errorf("normalize %s: %w", key, err)
	}
	if rec == nil {
		return Item{}, fmt.Errorf("normalize %s: record is null", key)
	}

	it := Item{ID: key}
	if id := scalarString(rec["id"]); id != "" {
		it.ID = id
	}
	it.Title = titleString(rec["title"])
	for field, set := range stringFields {
		if v := scalarString(rec[field]); v != "" {
			set(&it, v)
		}
	}
	if it.Type == "" {
		if it.ContainerTitle != "" {
			it.Type = "article-journal"
		} else {
			it.Type = "book"
		}
	}
	it.Author = names(rec["author"])
	it.Editor = names(rec["editor"])

	issued := rec["issued"]
	if issued == nil {
		issued = rec["year"]
	}
	it.Issued = date(issued)
	return it, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func titleString(v any) string {
	if arr, ok := v.([]any); ok {
		parts := make([]string, 0, len(arr))
		for _, p := range arr {
			if s := scalarString(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ": ")
	}
	return scalarString(v)
}

func names(v any) []Name {
	switch t := v.(type) {
	case []any:
		out := make([]Name, 0, len(t))
		for _, e := range t {
			if n, ok := name(e); ok {
				out = append(out, n)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		var out []Name
		for _, part := range splitNameList(t) {
			if n, ok := name(part); ok {
				out = append(out, n)
			}
		}
		return out
	case map[string]any:
		if n, ok := name(t); ok {
			return []Name{n}
		}
	}
	return nil
}

func name(v any) (Name, bool) {
	switch t := v.(type) {
	case map[string]any:
		n := Name{
			Family:  scalarString(t["family"]),
			Given:   scalarString(t["given"]),
			Literal: scalarString(t["literal"]),
		}
		if n.Family == "" && n.Literal == "" {
			if lit := scalarString(t["name"]); lit != "" {
				n.Literal = lit
			}
		}
		return n, n.Family != "" || n.Given != "" || n.Literal != ""
	case string:
		return parseName(t)
	}
	return Name{}, false
}

// parseName splits a display name. "Family, Given" is taken literally;
// otherwise the last token is the family name and single tokens become
// literals.
func parseName(s string) (Name, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Name{}, false
	}
	if family, given, ok := strings.Cut(s, ","); ok {
		return Name{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}, true
	}
	idx := strings.LastIndex(s, " ")
	if idx < 0 {
		return Name{Literal: s}, true
	}
	return Name{Given: strings.TrimSpace(s[:idx]), Family: s[idx+1:]}, true
}

func splitNameList(s string) []string {
	if strings.Contains(s, ";") {
		return strings.Split(s, ";")
	}
	return strings.Split(s, " and ")
}

func date(v any) *Date {
	switch t := v.(type) {
	case map[string]any:
		d := &Date{
			Literal: scalarString(t["literal"]),
			Raw:     scalarString(t["raw"]),
		}
		if parts, ok := t["date-parts"].([]any); ok {
			for _, p := range parts {
				row, ok := p.([]any)
				if !ok {
					continue
				}
				var ints []int
				for _, e := range row {
					n, ok := datePart(e)
					if !ok {
						break
					}
					ints = append(ints, n)
				}
				if len(ints) > 0 {
					d.DateParts = append(d.DateParts, ints)
				}
			}
		}
		if d.DateParts == nil && d.Literal == "" && d.Raw == "" {
			return nil
		}
		return d
	case json.Number, string:
		return dateFromString(scalarString(t))
	}
	return nil
}

// dateFromString handles "2020", "2020-05" and "2020-05-17".
func dateFromString(s string) *Date {
	if s == "" {
		return nil
	}
	var parts []int
	for _, seg := range strings.SplitN(s, "-", 3) {
		n, err := strconv.Atoi(seg)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return &Date{Literal: s}
	}
	return &Date{DateParts: [][]int{parts}}
}
