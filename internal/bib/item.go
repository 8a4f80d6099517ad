package bib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Item is one bibliographic record in CSL-JSON shape.
type Item struct {
	ID             string `json:"id"`
	Type           string `json:"type,omitempty"`
	Title          string `json:"title,omitempty"`
	Author         []Name `json:"author,omitempty"`
	Editor         []Name `json:"editor,omitempty"`
	Issued         *Date  `json:"issued,omitempty"`
	ContainerTitle string `json:"container-title,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
	PublisherPlace string `json:"publisher-place,omitempty"`
	Volume         string `json:"volume,omitempty"`
	Issue          string `json:"issue,omitempty"`
	Page           string `json:"page,omitempty"`
	DOI            string `json:"DOI,omitempty"`
	URL            string `json:"URL,omitempty"`
}

// Name is a person or organisation in CSL format.
type Name struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// Date is a CSL date. Only the first date-parts entry is meaningful here.
type Date struct {
	DateParts [][]int `json:"date-parts,omitempty"`
	Literal   string  `json:"literal,omitempty"`
	Raw       string  `json:"raw,omitempty"`
}

// FamilyOrLiteral returns the sortable surname of a name.
func (n Name) FamilyOrLiteral() string {
	if n.Family != "" {
		return n.Family
	}
	return n.Literal
}

// Year returns the year of the date, if any.
func (d *Date) Year() (int, bool) {
	if d == nil {
		return 0, false
	}
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 && d.DateParts[0][0] != 0 {
		return d.DateParts[0][0], true
	}
	for _, s := range []string{d.Raw, d.Literal} {
		if y, ok := leadingYear(s); ok {
			return y, true
		}
	}
	return 0, false
}

// UnmarshalJSON decodes a CSL-JSON item. Scalar fields may be strings or
// numbers.
func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	aux := struct {
		*plain
		ID             Scalar `json:"id"`
		Type           Scalar `json:"type"`
		Title          Scalar `json:"title"`
		ContainerTitle Scalar `json:"container-title"`
		Publisher      Scalar `json:"publisher"`
		PublisherPlace Scalar `json:"publisher-place"`
		Volume         Scalar `json:"volume"`
		Issue          Scalar `json:"issue"`
		Page           Scalar `json:"page"`
		DOI            Scalar `json:"DOI"`
		URL            Scalar `json:"URL"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	it.ID = string(aux.ID)
	it.Type = string(aux.Type)
	it.Title = string(aux.Title)
	it.ContainerTitle = string(aux.ContainerTitle)
	it.Publisher = string(aux.Publisher)
	it.PublisherPlace = string(aux.PublisherPlace)
	it.Volume = string(aux.Volume)
	it.Issue = string(aux.Issue)
	it.Page = string(aux.Page)
	it.DOI = string(aux.DOI)
	it.URL = string(aux.URL)
	return nil
}

// UnmarshalJSON decodes a CSL name; parts may be strings or numbers.
func (n *Name) UnmarshalJSON(data []byte) error {
	var aux struct {
		Family  Scalar `json:"family"`
		Given   Scalar `json:"given"`
		Literal Scalar `json:"literal"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Name{Family: string(aux.Family), Given: string(aux.Given), Literal: string(aux.Literal)}
	return nil
}

// UnmarshalJSON accepts date-parts given as numbers or numeric strings,
// which CSL-JSON producers emit interchangeably. A row ends at its first
// part that is not an integer. A bare string or number is read like
// "2020-05-17".
func (d *Date) UnmarshalJSON(data []byte) error {
	if v, err := decodeAny(data); err == nil {
		switch v.(type) {
		case string, json.Number:
			*d = Date{}
			if parsed := dateFromString(scalarString(v)); parsed != nil {
				*d = *parsed
			}
			return nil
		}
	}
	var raw struct {
		DateParts [][]json.RawMessage `json:"date-parts"`
		Literal   Scalar              `json:"literal"`
		Raw       Scalar              `json:"raw"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	d.Literal = string(raw.Literal)
	d.Raw = string(raw.Raw)
	d.DateParts = nil
	for _, parts := range raw.DateParts {
		row := make([]int, 0, len(parts))
		for _, p := range parts {
			v, err := decodeAny(p)
			if err != nil {
				break
			}
			n, ok := datePart(v)
			if !ok {
				break
			}
			row = append(row, n)
		}
		if len(row) > 0 {
			d.DateParts = append(d.DateParts, row)
		}
	}
	return nil
}

// Scalar is a field CSL-JSON producers write as a string or a number.
// Booleans keep their literal text; objects, arrays and null are empty.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	v, err := decodeAny(data)
	if err != nil {
		return err
	}
	if str, ok := v.(string); ok {
		*s = Scalar(str)
		return nil
	}
	*s = Scalar(scalarString(v))
	return nil
}

func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// datePart reads an integral date part such as 2020, 2020.0 or "05".
func datePart(v any) (int, bool) {
	s := scalarString(v)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func leadingYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}
