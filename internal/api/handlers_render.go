package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/doctree"
	"github.com/dgallion1/citerender/internal/export"
	"github.com/dgallion1/citerender/internal/metrics"
	"github.com/dgallion1/citerender/internal/parser"
	"github.com/dgallion1/citerender/internal/pipeline"
	"github.com/dgallion1/citerender/internal/stats"
)

type renderCitationsRequest struct {
	PublicationsByID map[string]json.RawMessage `json:"publicationsById"`
	StyleXML         string                     `json:"styleXml"`
	LocaleXML        string                     `json:"localeXml"`
	HTML             string                     `json:"html"`
	Format           string                     `json:"format"`
}

type renderCitationsResponse struct {
	Sections []doctree.SectionRecord `json:"sections"`
}

type renderBibliographyRequest struct {
	Publications *bib.Records `json:"publications"`
	StyleXML     string       `json:"styleXml"`
	Format       string       `json:"format"`
	Title        string       `json:"title"`
}

type renderBibliographyResponse struct {
	Entries []string `json:"entries"`
}

// handleRenderCitations annotates every citation marker in a document and
// returns its sections.
func (s *Server) handleRenderCitations(w http.ResponseWriter, r *http.Request) {
	var req renderCitationsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.PublicationsByID == nil || req.StyleXML == "" {
		jsonError(w, "Missing publicationsById or styleXml", http.StatusBadRequest)
		return
	}
	p, err := parser.ForFormat(req.Format)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	doc, err := p.Parse(strings.NewReader(req.HTML))
	if err != nil {
		jsonError(w, "failed to parse document: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.annotator.Annotate(pipeline.AnnotateRequest{
		Catalog:   bib.NewCatalog(req.PublicationsByID),
		StyleXML:  req.StyleXML,
		LocaleXML: req.LocaleXML,
		Document:  doc,
	})
	elapsed := time.Since(start)
	s.stats.Observe(stats.OpCitations, elapsed, err != nil)
	metrics.ObserveRender(stats.OpCitations, elapsed, err != nil)
	if err != nil {
		s.log.Error("render citations failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, m := range res.Markers {
		metrics.CountMarker(string(m.Outcome))
	}

	writeJSON(w, renderCitationsResponse{Sections: res.Sections})
}

// handleRenderBibliography renders a reference list for every publication,
// as JSON entries or as a DOCX document.
func (s *Server) handleRenderBibliography(w http.ResponseWriter, r *http.Request) {
	var req renderBibliographyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Publications == nil || req.StyleXML == "" {
		jsonError(w, "Missing publications or styleXml", http.StatusBadRequest)
		return
	}
	asDOCX := wantsDOCX(req.Format, r.Header.Get("Accept"))
	if !asDOCX && req.Format != "" && !strings.EqualFold(req.Format, "json") {
		jsonError(w, fmt.Sprintf("unsupported bibliography format: %s", req.Format), http.StatusBadRequest)
		return
	}
	items, err := bib.DecodeItems(req.Publications.Raw)
	if err != nil {
		jsonError(w, "invalid publications: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	entries, err := s.bibliography.Render(req.Publications.Keys, items, req.StyleXML)
	elapsed := time.Since(start)
	s.stats.Observe(stats.OpBibliography, elapsed, err != nil)
	metrics.ObserveRender(stats.OpBibliography, elapsed, err != nil)
	if err != nil {
		s.log.Error("render bibliography failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveBibliography(len(entries))

	if !asDOCX {
		writeJSON(w, renderBibliographyResponse{Entries: entries})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDOCX(&buf, req.Title, entries); err != nil {
		s.log.Error("docx export failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.DOCXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bibliography.docx"`)
	w.Write(buf.Bytes())
}

// decodeBody reads a size-limited JSON body into v, writing the error
// response itself when it fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func wantsDOCX(format, accept string) bool {
	if strings.EqualFold(format, "docx") {
		return true
	}
	return format == "" && strings.Contains(accept, export.DOCXContentType)
}
