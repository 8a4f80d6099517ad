package bib

import (
	"strings"
	"testing"
)

func TestDecodeRecordsYAML_Mapping(t *testing.T) {
	src := `
smith2020:
  title: X
  author:
    - family: Smith
      given: J
  issued:
    date-parts: [[2020]]
doe:
  title: Y
`
	recs, err := DecodeRecordsYAML([]byte(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := strings.Join(recs.Keys, ","); got != "smith2020,doe" {
		t.Errorf("expected smith2020,doe, got %s", got)
	}

	it, ok := NewCatalog(recs.Raw).Lookup("smith2020")
	if !ok {
		t.Fatal("expected smith2020 to resolve")
	}
	if it.Title != "X" || len(it.Author) != 1 || it.Author[0].Family != "Smith" {
		t.Errorf("unexpected item: %+v", it)
	}
	if y, ok := it.Issued.Year(); !ok || y != 2020 {
		t.Errorf("expected year 2020, got %d (%v)", y, ok)
	}
}

func TestDecodeRecordsYAML_ReferencesSequence(t *testing.T) {
	src := `
references:
  - id: b
    title: Second
  - id: a
    title: First
    issued:
      raw: "1999"
`
	recs, err := DecodeRecordsYAML([]byte(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := strings.Join(recs.Keys, ","); got != "b,a" {
		t.Errorf("expected b,a, got %s", got)
	}
	items, err := DecodeItems(recs.Raw)
	if err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if items["a"].Title != "First" || items["a"].ID != "a" {
		t.Errorf("unexpected item a: %+v", items["a"])
	}
	if y, ok := items["a"].Issued.Year(); !ok || y != 1999 {
		t.Errorf("expected raw year 1999, got %d (%v)", y, ok)
	}
}

func TestDecodeRecordsYAML_JSONArray(t *testing.T) {
	recs, err := DecodeRecordsYAML([]byte(`[{"id": "x", "title": "T"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs.Keys) != 1 || recs.Keys[0] != "x" {
		t.Errorf("expected [x], got %v", recs.Keys)
	}
}

func TestDecodeRecordsYAML_Errors(t *testing.T) {
	cases := []string{
		"- title: no id\n",
		"just a scalar\n",
		"a: [unclosed\n",
	}
	for _, src := range cases {
		if _, err := DecodeRecordsYAML([]byte(src)); err == nil {
			t.Errorf("%q: expected error", src)
		}
	}
}

func TestDecodeRecordsYAML_Empty(t *testing.T) {
	recs, err := DecodeRecordsYAML(nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if recs.Len() != 0 {
		t.Errorf("expected no records, got %d", recs.Len())
	}
}
