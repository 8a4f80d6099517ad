// Package citeproc is a compact Citation Style Language processor. It reads
// the parts of a CSL style that decide citation shape (format, layout
// affixes, collapsing, et-al and year-suffix options) and renders clusters
// and bibliographies for a registered item set.
//
// An Engine carries numbering and disambiguation state for exactly one item
// set and is not safe for concurrent use.
package citeproc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/citerender/internal/bib"
)

var (
	ErrUnsupportedLocale = errors.New("unsupported locale")
	ErrNoBibliography    = errors.New("style defines no bibliography")
	ErrUnknownItem       = errors.New("item not available")
	ErrEmptyCluster      = errors.New("empty citation cluster")
)

// Sys supplies items and locale documents to the engine.
type Sys interface {
	RetrieveItem(id string) (bib.Item, bool)
	RetrieveLocale(lang string) (string, error)
}

// Engine renders citations for one registered item set.
type Engine struct {
	sys    Sys
	style  *Style
	locale *Locale

	ids      []string
	items    map[string]bib.Item
	numbers  map[string]int
	suffixes map[string]string
}

// New builds an engine for styleXML. The locale is the style's
// default-locale unless forceLang is set or the style declares none, in
// which case lang is used.
func New(sys Sys, styleXML, lang string, forceLang bool) (*Engine, error) {
	style, err := ParseStyle(styleXML)
	if err != nil {
		return nil, err
	}
	if !forceLang && style.DefaultLocale != "" {
		lang = style.DefaultLocale
	}
	src, err := sys.RetrieveLocale(lang)
	if err != nil {
		return nil, err
	}
	locale, err := ParseLocale(src)
	if err != nil {
		return nil, err
	}
	return &Engine{
		sys:      sys,
		style:    style,
		locale:   locale,
		items:    map[string]bib.Item{},
		numbers:  map[string]int{},
		suffixes: map[string]string{},
	}, nil
}

// UpdateItems replaces the registered item set. Citation numbers follow
// the order of ids; duplicates keep their first position.
func (e *Engine) UpdateItems(ids []string) error {
	e.ids = e.ids[:0]
	e.items = make(map[string]bib.Item, len(ids))
	e.numbers = make(map[string]int, len(ids))
	for _, id := range ids {
		if _, seen := e.items[id]; seen {
			continue
		}
		it, ok := e.sys.RetrieveItem(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		e.ids = append(e.ids, id)
		e.items[id] = it
		e.numbers[id] = len(e.ids)
	}
	e.suffixes = e.yearSuffixes()
	return nil
}

// MakeCitationCluster renders one in-text citation for ids, all of which
// must already be registered.
func (e *Engine) MakeCitationCluster(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", ErrEmptyCluster
	}
	for _, id := range ids {
		if _, ok := e.items[id]; !ok {
			return "", fmt.Errorf("%w: %q not registered", ErrUnknownItem, id)
		}
	}

	layout := e.style.Citation
	var cites []string
	switch e.style.Format {
	case FormatNumeric:
		cites = e.numericCites(ids)
		if layout.Delimiter == "" {
			layout.Delimiter = ","
		}
	case FormatNote:
		for _, id := range ids {
			cites = append(cites, e.noteCite(id))
		}
		if layout.Delimiter == "" {
			layout.Delimiter = "; "
		}
	default:
		for _, id := range ids {
			cites = append(cites, e.authorDateCite(id))
		}
		if layout.Delimiter == "" {
			layout.Delimiter = "; "
		}
	}
	return layout.Prefix + strings.Join(cites, layout.Delimiter) + layout.Suffix, nil
}

// MakeBibliography renders one entry per registered item, ordered by the
// style: citation number for numeric styles, otherwise author, year, title.
func (e *Engine) MakeBibliography() ([]string, error) {
	if !e.style.HasBibliography {
		return nil, ErrNoBibliography
	}
	ids := append([]string(nil), e.ids...)
	if e.style.Format != FormatNumeric {
		sort.SliceStable(ids, func(i, j int) bool {
			return e.sortKey(ids[i]) < e.sortKey(ids[j])
		})
	}

	entries := make([]string, 0, len(ids))
	for _, id := range ids {
		body := e.entryBody(id)
		if e.style.Format == FormatNumeric {
			body = fmt.Sprintf(`<div class="csl-left-margin">%s</div><div class="csl-right-inline">%s</div>`,
				e.numberLabel(id), body)
		}
		entries = append(entries, `<div class="csl-entry">`+body+`</div>`)
	}
	return entries, nil
}

func (e *Engine) numberLabel(id string) string {
	n := e.numbers[id]
	if e.style.Citation.Prefix == "" && e.style.Citation.Suffix == "" {
		return fmt.Sprintf("%d.", n)
	}
	return fmt.Sprintf("%s%d%s", e.style.Citation.Prefix, n, e.style.Citation.Suffix)
}

func (e *Engine) sortKey(id string) string {
	it := e.items[id]
	author := strings.ToLower(citeAuthorKey(it))
	year := "9999"
	if y, ok := it.Issued.Year(); ok {
		year = fmt.Sprintf("%04d", y)
	}
	return author + "\x00" + year + e.suffixes[id] + "\x00" + strings.ToLower(it.Title)
}

// yearSuffixes assigns a, b, ... to registered items that would otherwise
// render identical author-year cites.
func (e *Engine) yearSuffixes() map[string]string {
	out := map[string]string{}
	if !e.style.YearSuffix || e.style.Format == FormatNumeric {
		return out
	}
	groups := map[string][]string{}
	var order []string
	for _, id := range e.ids {
		key := e.citeAuthors(e.items[id]) + "\x00" + e.year(e.items[id])
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], id)
	}
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return strings.ToLower(e.items[members[i]].Title) < strings.ToLower(e.items[members[j]].Title)
		})
		for i, id := range members {
			out[id] = suffixLetters(i)
		}
	}
	return out
}

// suffixLetters maps 0 → a, 25 → z, 26 → aa.
func suffixLetters(i int) string {
	s := ""
	for {
		s = string(rune('a'+i%26)) + s
		i = i/26 - 1
		if i < 0 {
			return s
		}
	}
}
