package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/citerender/internal/citeproc"
	"github.com/dgallion1/citerender/internal/config"
	"github.com/dgallion1/citerender/internal/export"
	"github.com/dgallion1/citerender/internal/pipeline"
	"github.com/dgallion1/citerender/internal/stats"
)

const numericStyle = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="in-text" version="1.0">
  <info><title>Numeric</title><category citation-format="numeric"/></info>
  <citation collapse="citation-number">
    <sort><key variable="citation-number"/></sort>
    <layout prefix="[" suffix="]" delimiter=","><text variable="citation-number"/></layout>
  </citation>
  <bibliography><layout><text variable="title"/></layout></bibliography>
</style>`

const publications = `{
	"1": {"id": "1", "type": "book", "title": "X", "author": [{"family": "Smith", "given": "J"}], "issued": {"date-parts": [[2020]]}},
	"2": {"id": "2", "type": "book", "title": "Y", "author": [{"family": "Doe", "given": "A"}]}
}`

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := citeproc.NewRegistry("")
	require.NoError(t, err)

	cfg := config.Config{
		Port:          "3003",
		APIKey:        apiKey,
		MaxBodyBytes:  64 << 10,
		DefaultLocale: "en-US",
		StatsWindow:   time.Hour,
	}
	return NewServer(
		pipeline.NewAnnotator(pipeline.NewCiteprocEngine, reg, cfg.DefaultLocale, log),
		pipeline.NewBibliographyRenderer(pipeline.NewCiteprocEngine, reg, cfg.DefaultLocale, log),
		stats.NewRecorder(cfg.StatsWindow),
		log,
		cfg,
	)
}

func post(t *testing.T, srv http.Handler, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func citationsBody(html string) map[string]any {
	return map[string]any{
		"publicationsById": json.RawMessage(publications),
		"styleXml":         numericStyle,
		"html":             html,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestRenderCitations(t *testing.T) {
	srv := newTestServer(t, "")
	html := `<section data-paragraph-id="p1"><p>See <citation data-ref-ids='["1","missing"]'></citation> and <citation data-ref-ids='not-json'></citation>.</p></section>` +
		`<section data-paragraph-id="p2"><citation data-ref-ids='["2"]'></citation></section>`
	rec := post(t, srv, "/render-citations", citationsBody(html), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Sections []struct {
			ParagraphID string `json:"paragraphId"`
			HTML        string `json:"html"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sections, 2)
	assert.Equal(t, "p1", resp.Sections[0].ParagraphID)
	assert.Equal(t, "p2", resp.Sections[1].ParagraphID)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Sections[0].HTML))
	require.NoError(t, err)
	markers := doc.Find("citation")
	require.Equal(t, 2, markers.Length())

	rendered, ok := markers.Eq(0).Attr("data-rendered")
	assert.True(t, ok)
	assert.Equal(t, "[1]", rendered)
	tooltip, _ := markers.Eq(0).Attr("data-tooltip")
	assert.Equal(t, "Smith, J (2020) — X", tooltip)

	_, ok = markers.Eq(1).Attr("data-rendered")
	assert.False(t, ok, "malformed marker must stay unannotated")

	second, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Sections[1].HTML))
	require.NoError(t, err)
	rendered, _ = second.Find("citation").Attr("data-rendered")
	assert.Equal(t, "[2]", rendered)
}

func TestRenderCitations_Markdown(t *testing.T) {
	srv := newTestServer(t, "")
	body := citationsBody("<section data-paragraph-id=\"m\">\n\nSome *text* <citation data-ref-ids='[\"2\"]'></citation>\n\n</section>\n")
	body["format"] = "markdown"
	rec := post(t, srv, "/render-citations", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Sections []struct {
			ParagraphID string `json:"paragraphId"`
			HTML        string `json:"html"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, "m", resp.Sections[0].ParagraphID)
	assert.Contains(t, resp.Sections[0].HTML, "<em>text</em>")
	assert.Contains(t, resp.Sections[0].HTML, `data-rendered="[1]"`)
}

func TestRenderCitations_MissingFields(t *testing.T) {
	srv := newTestServer(t, "")
	cases := []any{
		map[string]any{"styleXml": numericStyle, "html": ""},
		map[string]any{"publicationsById": json.RawMessage(publications), "html": ""},
		map[string]any{"publicationsById": nil, "styleXml": numericStyle},
		map[string]any{"publicationsById": json.RawMessage(publications), "styleXml": ""},
	}
	for _, c := range cases {
		rec := post(t, srv, "/render-citations", c, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing publicationsById or styleXml", decodeError(t, rec))
	}
}

func TestRenderCitations_BadRequests(t *testing.T) {
	srv := newTestServer(t, "")

	rec := post(t, srv, "/render-citations", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := citationsBody("")
	body["format"] = "pdf"
	rec = post(t, srv, "/render-citations", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	huge := citationsBody(strings.Repeat("a", 70<<10))
	rec = post(t, srv, "/render-citations", huge, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRenderCitations_EngineError(t *testing.T) {
	srv := newTestServer(t, "")
	body := citationsBody(`<p></p>`)
	body["styleXml"] = "<not-a-style/>"
	rec := post(t, srv, "/render-citations", body, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
}

func TestRenderBibliography(t *testing.T) {
	srv := newTestServer(t, "")
	rec := post(t, srv, "/render-bibliography", map[string]any{
		"publications": json.RawMessage(`{"b": {"title": "Second"}, "a": {"title": "First"}}`),
		"styleXml":     numericStyle,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Contains(t, resp.Entries[0], "Second")
	assert.Contains(t, resp.Entries[1], "First")
}

func TestRenderBibliography_NumericFields(t *testing.T) {
	srv := newTestServer(t, "")
	rec := post(t, srv, "/render-bibliography", map[string]any{
		"publications": json.RawMessage(`{"a": {"id": 7, "title": "Paper", "container-title": "J",
			"volume": 12, "issue": 3, "page": 45, "issued": {"date-parts": [[2020.0]]}}}`),
		"styleXml": numericStyle,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Contains(t, resp.Entries[0], "<i>J</i>, 12(3), 45")
	assert.Contains(t, resp.Entries[0], "2020")
}

func TestRenderBibliography_MissingFields(t *testing.T) {
	srv := newTestServer(t, "")
	rec := post(t, srv, "/render-bibliography", map[string]any{"styleXml": numericStyle}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing publications or styleXml", decodeError(t, rec))
}

func TestRenderBibliography_UnsupportedLocale(t *testing.T) {
	srv := newTestServer(t, "")
	style := strings.Replace(numericStyle, `version="1.0"`, `version="1.0" default-locale="fr-FR"`, 1)
	rec := post(t, srv, "/render-bibliography", map[string]any{
		"publications": json.RawMessage(`{"a": {"title": "A"}}`),
		"styleXml":     style,
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec), "unsupported locale")
}

func TestRenderBibliography_DOCX(t *testing.T) {
	srv := newTestServer(t, "")
	for _, tc := range []struct {
		name   string
		format string
		accept string
	}{
		{"format field", "docx", ""},
		{"accept header", "", export.DOCXContentType},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body := map[string]any{
				"publications": json.RawMessage(`{"a": {"title": "Only"}}`),
				"styleXml":     numericStyle,
			}
			if tc.format != "" {
				body["format"] = tc.format
			}
			rec := post(t, srv, "/render-bibliography", body, map[string]string{"Accept": tc.accept})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, export.DOCXContentType, rec.Header().Get("Content-Type"))

			_, err := docx.Parse(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
			assert.NoError(t, err)
		})
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	rec = post(t, srv, "/render-citations", citationsBody(""), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, srv, "/render-citations", citationsBody(""), map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, srv, "/render-citations", citationsBody(""), map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRenderStats(t *testing.T) {
	srv := newTestServer(t, "")
	post(t, srv, "/render-citations", citationsBody(`<p></p>`), nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/render", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Window string                    `json:"window"`
		Stats  map[string]stats.Snapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1h0m0s", resp.Window)
	assert.Equal(t, 1, resp.Stats[stats.OpCitations].Count)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "secret")
	post(t, srv, "/render-citations", citationsBody(`<p></p>`), map[string]string{"Authorization": "Bearer secret"})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code, "metrics stay public")
	assert.Contains(t, rec.Body.String(), "citerender_render_duration_seconds")
}
