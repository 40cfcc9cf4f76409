package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrylov/searchengine/internal/crawl"
	"github.com/mkrylov/searchengine/internal/fetch"
	"github.com/mkrylov/searchengine/internal/indexing"
	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/model"
	"github.com/mkrylov/searchengine/internal/ranking"
	"github.com/mkrylov/searchengine/internal/search"
	"github.com/mkrylov/searchengine/internal/stats"
	"github.com/mkrylov/searchengine/internal/store"
)

func newTestServerWithStore(t *testing.T) (*httptest.Server, *store.Store, *ranking.Service) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	an := lemma.NewAnalyzer(nil)
	f := fetch.New(fetch.Config{RequestTimeout: 2 * time.Second})
	rk := ranking.New(st, an, 0.30)
	log := slog.New(slog.DiscardHandler)
	cctx := crawl.NewContext(st, an, f, rk, 2, log)
	idx := indexing.New(nil, cctx)
	builder := search.NewBuilder(an)
	statsSvc := stats.New(st, idx)

	api := New(idx, rk, builder, an, statsSvc, log)
	r := chi.NewRouter()
	api.Routes(r)
	return httptest.NewServer(r), st, rk
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _, _ := newTestServerWithStore(t)
	return srv
}

func TestSearchEmptyQueryIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?query=")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", resp.StatusCode)
	}
}

func TestSearchNoResultsIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?query=whale")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", resp.StatusCode)
	}
}

func TestStatisticsReturnsOK(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/statistics")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error: %v", err)
	}

	var body statisticsResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !body.Result {
		t.Fatalf("statistics response Result = false; want true")
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("decode into map error: %v", err)
	}
	statistics, ok := generic["statistics"].(map[string]any)
	if !ok {
		t.Fatalf("response has no lowercase %q key: %s", "statistics", raw)
	}
	total, ok := statistics["total"].(map[string]any)
	if !ok {
		t.Fatalf("statistics has no lowercase %q key: %s", "total", raw)
	}
	for _, key := range []string{"sites", "pages", "lemmas", "indexing"} {
		if _, ok := total[key]; !ok {
			t.Fatalf("total has no lowercase %q key: %s", key, raw)
		}
	}
}

func TestSearchResultUsesLowercaseFieldNames(t *testing.T) {
	srv, st, rk := newTestServerWithStore(t)
	defer srv.Close()

	site := &model.Site{URL: "http://example.com", Name: "Example", Status: model.StatusIndexed}
	if err := st.Sites.Save(site); err != nil {
		t.Fatalf("Save(site) error: %v", err)
	}
	page := &model.Page{SiteID: site.ID, Path: "/a", Code: 200, Content: "<html><title>Whales</title><body>whale ship</body></html>"}
	if err := st.Pages.Save(page); err != nil {
		t.Fatalf("Save(page) error: %v", err)
	}
	if err := rk.SavePageLemmasAndIndexesThreadSafe(page, site, page.Content); err != nil {
		t.Fatalf("SavePageLemmasAndIndexesThreadSafe() error: %v", err)
	}

	// A lemma on every page of its site exceeds the high-frequency
	// filter's threshold and would otherwise be dropped as non-
	// discriminating, so pad the site with unrelated filler pages to
	// dilute "whale"'s document frequency below the cutoff.
	for i := 0; i < 8; i++ {
		filler := &model.Page{SiteID: site.ID, Path: "/filler" + string(rune('a'+i)), Code: 200, Content: "<p>unrelated filler content only</p>"}
		if err := st.Pages.Save(filler); err != nil {
			t.Fatalf("Save(filler) error: %v", err)
		}
		if err := rk.SavePageLemmasAndIndexesThreadSafe(filler, site, filler.Content); err != nil {
			t.Fatalf("SavePageLemmasAndIndexesThreadSafe(filler) error: %v", err)
		}
	}

	if err := rk.RecalculateRankForAllSites(site); err != nil {
		t.Fatalf("RecalculateRankForAllSites() error: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/search?query=whale")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("decode into map error: %v", err)
	}
	data, ok := generic["data"].([]any)
	if !ok || len(data) == 0 {
		t.Fatalf("response has no non-empty lowercase %q array: %s", "data", raw)
	}
	result, ok := data[0].(map[string]any)
	if !ok {
		t.Fatalf("data[0] is not an object: %s", raw)
	}
	for _, key := range []string{"site", "siteName", "uri", "title", "snippet", "relevance"} {
		if _, ok := result[key]; !ok {
			t.Fatalf("result has no lowercase %q key: %s", key, raw)
		}
	}
}

func TestStopIndexingWithoutStartIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stopIndexing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", resp.StatusCode)
	}
}

func TestIndexPageOutsideConfiguredSitesIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/api/indexPage", map[string][]string{
		"url": {"http://not-configured.example/page"},
	})
	if err != nil {
		t.Fatalf("PostForm() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", resp.StatusCode)
	}
}
