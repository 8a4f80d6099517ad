package pipeline

import (
	"fmt"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/citeproc"
)

// Engine is the citation style processor the pipelines drive. One engine
// serves one request; calls must not overlap.
type Engine interface {
	UpdateItems(ids []string) error
	MakeCitationCluster(ids []string) (string, error)
	MakeBibliography() ([]string, error)
}

// EngineFactory builds a fresh engine for a style. forceLang selects lang
// over the style's own default-locale.
type EngineFactory func(sys citeproc.Sys, styleXML, lang string, forceLang bool) (Engine, error)

// NewCiteprocEngine is the EngineFactory backed by the citeproc package.
func NewCiteprocEngine(sys citeproc.Sys, styleXML, lang string, forceLang bool) (Engine, error) {
	e, err := citeproc.New(sys, styleXML, lang, forceLang)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// catalogSys resolves items through the normalizing catalog. A locale
// supplied with the request replaces the registry's document, but only for
// a language family the registry supports.
type catalogSys struct {
	catalog  *bib.Catalog
	locales  *citeproc.Registry
	override string
}

func (s *catalogSys) RetrieveItem(id string) (bib.Item, bool) {
	return s.catalog.Lookup(id)
}

func (s *catalogSys) RetrieveLocale(lang string) (string, error) {
	src, ok := s.locales.Match(lang)
	if !ok {
		return "", fmt.Errorf("%w: this CSL style requires locale %q, supported: %v",
			citeproc.ErrUnsupportedLocale, lang, s.locales.Langs())
	}
	if s.override != "" {
		return citeproc.StripBOM(s.override), nil
	}
	return src, nil
}

// itemsSys serves decoded items verbatim and only exact-match locales.
type itemsSys struct {
	items   map[string]bib.Item
	locales *citeproc.Registry
}

func (s *itemsSys) RetrieveItem(id string) (bib.Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

func (s *itemsSys) RetrieveLocale(lang string) (string, error) {
	if src, ok := s.locales.Lookup(lang); ok {
		return src, nil
	}
	return "", fmt.Errorf("%w: %s", citeproc.ErrUnsupportedLocale, lang)
}
