// Package pipeline runs the two request flows: annotating a document's
// citation markers and rendering a standalone bibliography.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/citeproc"
	"github.com/dgallion1/citerender/internal/doctree"
)

// Outcome records what happened to one marker.
type Outcome string

const (
	OutcomeNoRefs     Outcome = "no_refs"      // attribute absent
	OutcomeInvalid    Outcome = "invalid_refs" // attribute not a JSON id list
	OutcomeEmpty      Outcome = "empty_refs"   // parsed list was empty
	OutcomeUnresolved Outcome = "unresolved"   // no id resolved against the catalog
	OutcomeAnnotated  Outcome = "annotated"
)

// MarkerResult is the per-marker result of annotation.
type MarkerResult struct {
	Index      int
	Outcome    Outcome
	IDs        []string // ids used for rendering, after filtering
	Annotation doctree.Annotation
}

// AnnotateRequest is one annotation job.
type AnnotateRequest struct {
	Catalog   *bib.Catalog
	StyleXML  string
	LocaleXML string
	Document  *doctree.Document
}

// AnnotateResult is the outcome of an annotation job.
type AnnotateResult struct {
	Sections  []doctree.SectionRecord
	Markers   []MarkerResult
	LoadedIDs []string
}

// Annotator renders citation clusters and tooltips into documents.
type Annotator struct {
	newEngine EngineFactory
	locales   *citeproc.Registry
	lang      string
	log       *slog.Logger
}

// NewAnnotator creates an annotator. Engines are built with lang forced,
// regardless of the style's default-locale.
func NewAnnotator(newEngine EngineFactory, locales *citeproc.Registry, lang string, log *slog.Logger) *Annotator {
	return &Annotator{
		newEngine: newEngine,
		locales:   locales,
		lang:      lang,
		log:       log,
	}
}

// Annotate extracts markers, loads every valid referenced item into a fresh
// engine, renders each marker, writes the annotations back into the
// document and partitions it into sections.
//
// Bad markers are left unannotated; engine failures fail the whole call.
func (a *Annotator) Annotate(req AnnotateRequest) (*AnnotateResult, error) {
	markers := req.Document.Markers()
	loaded := CollectIDs(markers, req.Catalog)

	sys := &catalogSys{catalog: req.Catalog, locales: a.locales, override: req.LocaleXML}
	engine, err := a.newEngine(sys, citeproc.StripBOM(req.StyleXML), a.lang, true)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := engine.UpdateItems(loaded); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	results := make([]MarkerResult, 0, len(markers))
	annotations := make(map[int]doctree.Annotation)
	for _, m := range markers {
		r, err := a.renderMarker(engine, req.Catalog, m)
		if err != nil {
			return nil, err
		}
		if r.Outcome == OutcomeAnnotated {
			annotations[m.Index] = r.Annotation
		} else {
			a.log.Debug("marker left unannotated", "marker", m.Index, "outcome", r.Outcome, "state", m.State.String(), "raw", m.Raw)
		}
		results = append(results, r)
	}

	req.Document.Apply(annotations)
	sections, err := req.Document.Sections()
	if err != nil {
		return nil, err
	}

	a.log.Info("annotated document",
		"catalog", req.Catalog.Len(),
		"markers", len(markers),
		"annotated", len(annotations),
		"items_loaded", len(loaded),
		"sections", len(sections),
	)
	return &AnnotateResult{
		Sections:  sections,
		Markers:   results,
		LoadedIDs: loaded,
	}, nil
}

func (a *Annotator) renderMarker(engine Engine, catalog *bib.Catalog, m doctree.Marker) (MarkerResult, error) {
	r := MarkerResult{Index: m.Index}
	switch {
	case m.State == doctree.RefsAbsent:
		r.Outcome = OutcomeNoRefs
		return r, nil
	case m.State == doctree.RefsInvalid:
		r.Outcome = OutcomeInvalid
		return r, nil
	case len(m.IDs) == 0:
		r.Outcome = OutcomeEmpty
		return r, nil
	}

	r.IDs = validIDs(m.IDs, catalog)
	if len(r.IDs) == 0 {
		r.Outcome = OutcomeUnresolved
		return r, nil
	}

	rendered, err := engine.MakeCitationCluster(r.IDs)
	if err != nil {
		return r, fmt.Errorf("render marker %d: %w", m.Index, err)
	}
	r.Outcome = OutcomeAnnotated
	r.Annotation = doctree.Annotation{
		Rendered: rendered,
		Tooltip:  Tooltip(m.IDs, catalog),
	}
	return r, nil
}
