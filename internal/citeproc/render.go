package citeproc

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/citerender/internal/bib"
)

func (e *Engine) numericCites(ids []string) []string {
	nums := make([]int, 0, len(ids))
	seen := map[int]bool{}
	for _, id := range ids {
		n := e.numbers[id]
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	collapse := e.style.Collapse == "citation-number"
	if e.style.SortByNumber || collapse {
		sort.Ints(nums)
	}
	if !collapse {
		out := make([]string, len(nums))
		for i, n := range nums {
			out[i] = strconv.Itoa(n)
		}
		return out
	}

	// Runs of three or more consecutive numbers collapse into a range.
	var out []string
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		if j-i >= 2 {
			out = append(out, fmt.Sprintf("%d–%d", nums[i], nums[j]))
		} else {
			for k := i; k <= j; k++ {
				out = append(out, strconv.Itoa(nums[k]))
			}
		}
		i = j + 1
	}
	return out
}

func (e *Engine) authorDateCite(id string) string {
	it := e.items[id]
	return html.EscapeString(e.citeAuthors(it)) + e.style.GroupDelimiter + e.year(it) + e.suffixes[id]
}

func (e *Engine) noteCite(id string) string {
	it := e.items[id]
	parts := []string{html.EscapeString(e.citeAuthors(it))}
	if it.Title != "" && len(it.Author)+len(it.Editor) > 0 {
		parts = append(parts, "<i>"+html.EscapeString(it.Title)+"</i>")
	}
	parts = append(parts, e.year(it)+e.suffixes[id])
	return strings.Join(parts, ", ")
}

func (e *Engine) year(it bib.Item) string {
	if y, ok := it.Issued.Year(); ok {
		return strconv.Itoa(y)
	}
	return e.locale.Term("no date", "short", "n.d.")
}

func (e *Engine) and() string {
	if e.style.AndSymbol {
		return "&"
	}
	return e.locale.Term("and", "long", "and")
}

// citeAuthors renders the short name list used inside clusters. Items
// without authors fall back to editors, then to the title.
func (e *Engine) citeAuthors(it bib.Item) string {
	names := it.Author
	if len(names) == 0 {
		names = it.Editor
	}
	if len(names) == 0 {
		if it.Title != "" {
			return it.Title
		}
		return e.locale.Term("anonymous", "long", "anonymous")
	}

	fam := make([]string, len(names))
	for i, n := range names {
		fam[i] = n.FamilyOrLiteral()
		if fam[i] == "" {
			fam[i] = n.Given
		}
	}
	switch {
	case len(fam) == 1:
		return fam[0]
	case e.style.EtAlMin > 0 && len(fam) >= e.style.EtAlMin:
		first := min(e.style.EtAlUseFirst, len(fam))
		return strings.Join(fam[:first], ", ") + " " + e.locale.Term("et-al", "long", "et al.")
	case len(fam) == 2:
		return fam[0] + " " + e.and() + " " + fam[1]
	default:
		return strings.Join(fam[:len(fam)-1], ", ") + ", " + e.and() + " " + fam[len(fam)-1]
	}
}

func citeAuthorKey(it bib.Item) string {
	if len(it.Author) > 0 {
		return it.Author[0].FamilyOrLiteral()
	}
	if len(it.Editor) > 0 {
		return it.Editor[0].FamilyOrLiteral()
	}
	return it.Title
}

// fullNames renders the inverted name list used in bibliography entries.
func (e *Engine) fullNames(it bib.Item) string {
	names, label := it.Author, ""
	if len(names) == 0 && len(it.Editor) > 0 {
		names = it.Editor
		if len(names) > 1 {
			label = " (" + e.locale.Plural("editor", "short", "eds.") + ")"
		} else {
			label = " (" + e.locale.Term("editor", "short", "ed.") + ")"
		}
	}
	if len(names) == 0 {
		return ""
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = html.EscapeString(invertedName(n))
	}
	if len(out) == 1 {
		return out[0] + label
	}
	return strings.Join(out[:len(out)-1], ", ") + ", " + html.EscapeString(e.and()) + " " + out[len(out)-1] + label
}

func invertedName(n bib.Name) string {
	if n.Family == "" {
		if n.Literal != "" {
			return n.Literal
		}
		return n.Given
	}
	if in := initials(n.Given); in != "" {
		return n.Family + ", " + in
	}
	return n.Family
}

// initials turns "Jane Anne" into "J. A.".
func initials(given string) string {
	var parts []string
	for _, f := range strings.Fields(given) {
		r := []rune(f)
		if len(r) == 0 || !unicode.IsLetter(r[0]) {
			continue
		}
		parts = append(parts, string(unicode.ToUpper(r[0]))+".")
	}
	return strings.Join(parts, " ")
}

func (e *Engine) entryBody(id string) string {
	it := e.items[id]
	names := e.fullNames(it)
	yr := e.year(it) + e.suffixes[id]

	title := html.EscapeString(it.Title)
	if it.ContainerTitle == "" && title != "" {
		title = "<i>" + title + "</i>"
	}

	var segs []string
	switch e.style.Format {
	case FormatNumeric, FormatNote:
		segs = append(segs, names, title, source(it), publisher(it), yr)
	default:
		if names != "" {
			segs = append(segs, names+" ("+yr+")", title)
		} else {
			segs = append(segs, title+" ("+yr+")")
		}
		segs = append(segs, source(it), publisher(it))
	}

	out := sentences(segs)
	switch {
	case it.DOI != "":
		out += " https://doi.org/" + html.EscapeString(strings.TrimPrefix(it.DOI, "https://doi.org/"))
	case it.URL != "":
		out += " " + html.EscapeString(it.URL)
	}
	return out
}

func source(it bib.Item) string {
	if it.ContainerTitle == "" {
		return ""
	}
	s := "<i>" + html.EscapeString(it.ContainerTitle) + "</i>"
	if it.Volume != "" {
		s += ", " + html.EscapeString(it.Volume)
		if it.Issue != "" {
			s += "(" + html.EscapeString(it.Issue) + ")"
		}
	}
	if it.Page != "" {
		s += ", " + html.EscapeString(it.Page)
	}
	return s
}

func publisher(it bib.Item) string {
	switch {
	case it.Publisher != "" && it.PublisherPlace != "":
		return html.EscapeString(it.PublisherPlace) + ": " + html.EscapeString(it.Publisher)
	case it.Publisher != "":
		return html.EscapeString(it.Publisher)
	}
	return html.EscapeString(it.PublisherPlace)
}

// sentences joins non-empty segments, terminating each with a period.
func sentences(segs []string) string {
	var out []string
	for _, s := range segs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "?") && !strings.HasSuffix(s, "!") {
			s += "."
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}
