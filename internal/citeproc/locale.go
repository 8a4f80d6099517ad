package citeproc

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
)

//go:embed locales/*.xml
var embeddedLocales embed.FS

// Locale holds the terms the engine renders with.
type Locale struct {
	Lang  string
	terms map[string]string
}

// ParseLocale reads a CSL locale document.
func ParseLocale(src string) (*Locale, error) {
	doc, err := xmlquery.Parse(strings.NewReader(StripBOM(src)))
	if err != nil {
		return nil, fmt.Errorf("parse locale: %w", err)
	}
	root := childElement(doc, "locale")
	if root == nil {
		return nil, fmt.Errorf("parse locale: missing <locale> root element")
	}
	l := &Locale{terms: make(map[string]string)}
	// xml:lang comes back with a prefix or a namespace URL depending on
	// how the decoder resolved it; match on the local name only.
	for _, a := range root.Attr {
		if a.Name.Local == "lang" {
			l.Lang = a.Value
		}
	}
	if terms := childElement(root, "terms"); terms != nil {
		for t := terms.FirstChild; t != nil; t = t.NextSibling {
			if !isElement(t, "term") {
				continue
			}
			form := t.SelectAttr("form")
			if form == "" {
				form = "long"
			}
			key := t.SelectAttr("name") + "/" + form
			text := t.InnerText()
			if single := childElement(t, "single"); single != nil {
				text = single.InnerText()
			}
			if multiple := childElement(t, "multiple"); multiple != nil {
				l.terms[key+"/plural"] = strings.TrimSpace(multiple.InnerText())
			}
			l.terms[key] = strings.TrimSpace(text)
		}
	}
	return l, nil
}

// Term returns the term in the requested form, falling back to the long
// form and then to fallback.
func (l *Locale) Term(name, form, fallback string) string {
	if l != nil {
		if v, ok := l.terms[name+"/"+form]; ok {
			return v
		}
		if v, ok := l.terms[name+"/long"]; ok {
			return v
		}
	}
	return fallback
}

// Plural returns the plural variant of a term, or its singular when the
// locale has no separate plural.
func (l *Locale) Plural(name, form, fallback string) string {
	if l != nil {
		if v, ok := l.terms[name+"/"+form+"/plural"]; ok {
			return v
		}
	}
	return l.Term(name, form, fallback)
}

// Registry is a read-only set of locale documents keyed by language tag.
type Registry struct {
	locales map[string]string
}

// NewRegistry loads the built-in locales plus any locales-*.xml files in
// dir. An empty dir loads only the built-ins.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{locales: make(map[string]string)}

	entries, err := embeddedLocales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read embedded locales: %w", err)
	}
	for _, e := range entries {
		data, err := embeddedLocales.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded locale %s: %w", e.Name(), err)
		}
		r.locales[langFromFilename(e.Name())] = string(data)
	}

	if dir == "" {
		return r, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "locales-*.xml"))
	if err != nil {
		return nil, fmt.Errorf("scan locale dir: %w", err)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", p, err)
		}
		r.locales[langFromFilename(filepath.Base(p))] = string(data)
	}
	return r, nil
}

// Lookup returns the locale document for an exact language tag.
func (r *Registry) Lookup(lang string) (string, bool) {
	src, ok := r.locales[lang]
	return src, ok
}

// Match is Lookup with a fallback to any registered locale sharing the
// primary language subtag ("en-GB" → "en-US").
func (r *Registry) Match(lang string) (string, bool) {
	if src, ok := r.Lookup(lang); ok {
		return src, true
	}
	primary := primaryTag(lang)
	for _, l := range r.Langs() {
		if primaryTag(l) == primary {
			return r.locales[l], true
		}
	}
	return "", false
}

// Langs lists registered language tags in lexical order.
func (r *Registry) Langs() []string {
	langs := make([]string, 0, len(r.locales))
	for l := range r.locales {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

func langFromFilename(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, "locales-"), ".xml")
}

func primaryTag(lang string) string {
	p, _, _ := strings.Cut(strings.ToLower(lang), "-")
	return p
}
