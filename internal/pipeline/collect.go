package pipeline

import (
	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/doctree"
)

// CollectIDs returns every identifier referenced by parsed markers, in
// first-seen document order, keeping only those the catalog resolves.
// This is the set the engine must hold before any cluster is rendered.
func CollectIDs(markers []doctree.Marker, catalog *bib.Catalog) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range markers {
		if m.State != doctree.RefsOK {
			continue
		}
		for _, id := range m.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := catalog.Lookup(id); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// validIDs filters one marker's identifiers to those the catalog resolves,
// preserving order and dropping repeats.
func validIDs(ids []string, catalog *bib.Catalog) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := catalog.Lookup(id); ok {
			out = append(out, id)
		}
	}
	return out
}
