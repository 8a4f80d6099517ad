package pipeline

import (
	"strconv"
	"strings"

	"github.com/dgallion1/citerender/internal/bib"
)

// Tooltip builds the plain-text hover summary for a marker: one line per
// resolvable identifier occurrence giving its first author, year and title.
// An id listed twice gets two lines.
func Tooltip(ids []string, catalog *bib.Catalog) string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		it, ok := catalog.Lookup(id)
		if !ok {
			continue
		}
		lines = append(lines, tooltipLine(it))
	}
	return strings.Join(lines, "\n")
}

func tooltipLine(it bib.Item) string {
	author := "Unknown"
	if len(it.Author) > 0 {
		first := it.Author[0]
		var parts []string
		for _, p := range []string{first.Family, first.Given} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		switch {
		case len(parts) > 0:
			author = strings.Join(parts, ", ")
		case first.Literal != "":
			author = first.Literal
		}
	}

	year := "n.d."
	if y, ok := it.Issued.Year(); ok {
		year = strconv.Itoa(y)
	}
	return author + " (" + year + ") — " + it.Title
}
