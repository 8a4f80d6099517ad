// Package bib holds bibliographic records and the per-request catalog
// citations are resolved against.
package bib

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Catalog maps identifiers to raw catalog records. It is built once per
// request and never mutated; normalized items are memoized on first lookup.
type Catalog struct {
	raw map[string]json.RawMessage

	mu    sync.Mutex
	items map[string]Item
}

// NewCatalog wraps a decoded id → record mapping.
func NewCatalog(raw map[string]json.RawMessage) *Catalog {
	return &Catalog{
		raw:   raw,
		items: make(map[string]Item, len(raw)),
	}
}

// Has reports whether the catalog holds a non-null record for id.
func (c *Catalog) Has(id string) bool {
	r, ok := c.raw[id]
	return ok && !isNull(r)
}

// Lookup returns the normalized item for id. A record that cannot be
// normalized is treated as absent.
func (c *Catalog) Lookup(id string) (Item, bool) {
	if !c.Has(id) {
		return Item{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[id]; ok {
		return it, true
	}
	it, err := Normalize(id, c.raw[id])
	if err != nil {
		return Item{}, false
	}
	c.items[id] = it
	return it, true
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.raw)
}

// DecodeItems decodes CSL-JSON records as-is, without normalization. A
// record missing its id takes the map key.
func DecodeItems(raw map[string]json.RawMessage) (map[string]Item, error) {
	out := make(map[string]Item, len(raw))
	for _, key := range SortedKeys(raw) {
		if isNull(raw[key]) {
			continue
		}
		var it Item
		if err := json.Unmarshal(raw[key], &it); err != nil {
			return nil, fmt.Errorf("item %q: %w", key, err)
		}
		if it.ID == "" {
			it.ID = key
		}
		out[key] = it
	}
	return out, nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNull(r json.RawMessage) bool {
	return len(r) == 0 || string(r) == "null"
}
