package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/citeproc"
)

// BibliographyRenderer renders full reference lists. Unlike annotation it
// has no partial results: any engine error fails the call.
type BibliographyRenderer struct {
	newEngine EngineFactory
	locales   *citeproc.Registry
	lang      string
	log       *slog.Logger
}

// NewBibliographyRenderer creates a renderer. lang is used only when the
// style declares no default-locale.
func NewBibliographyRenderer(newEngine EngineFactory, locales *citeproc.Registry, lang string, log *slog.Logger) *BibliographyRenderer {
	return &BibliographyRenderer{
		newEngine: newEngine,
		locales:   locales,
		lang:      lang,
		log:       log,
	}
}

// Render loads every key of items, in the given order, and returns the
// engine's entries verbatim.
func (b *BibliographyRenderer) Render(keys []string, items map[string]bib.Item, styleXML string) ([]string, error) {
	sys := &itemsSys{items: items, locales: b.locales}
	engine, err := b.newEngine(sys, citeproc.StripBOM(styleXML), b.lang, false)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := items[k]; ok {
			ids = append(ids, k)
		}
	}
	if err := engine.UpdateItems(ids); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	entries, err := engine.MakeBibliography()
	if err != nil {
		return nil, fmt.Errorf("make bibliography: %w", err)
	}
	if entries == nil {
		entries = []string{}
	}
	b.log.Info("rendered bibliography", "items", len(ids), "entries", len(entries))
	return entries, nil
}
