package ranking

import (
	"testing"

	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/model"
	"github.com/mkrylov/searchengine/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open(:memory:) error: %v", err)
	}
	an := lemma.NewAnalyzer(nil)
	return New(st, an, 0.30), st
}

func mustSaveSite(t *testing.T, st *store.Store, url string) *model.Site {
	t.Helper()
	site := &model.Site{URL: url, Name: url, Status: model.StatusIndexing}
	if err := st.Sites.Save(site); err != nil {
		t.Fatalf("Save(site) error: %v", err)
	}
	return site
}

func mustSavePage(t *testing.T, st *store.Store, site *model.Site, path, content string) *model.Page {
	t.Helper()
	page := &model.Page{SiteID: site.ID, Path: path, Code: 200, Content: content}
	if err := st.Pages.Save(page); err != nil {
		t.Fatalf("Save(page) error: %v", err)
	}
	return page
}

func TestSavePageLemmasAndIndexesAccumulatesFrequency(t *testing.T) {
	svc, st := newTestService(t)
	site := mustSaveSite(t, st, "http://example.com")
	p1 := mustSavePage(t, st, site, "/a", "<p>whale ship</p>")
	p2 := mustSavePage(t, st, site, "/b", "<p>whale whale</p>")

	if err := svc.SavePageLemmasAndIndexesThreadSafe(p1, site, p1.Content); err != nil {
		t.Fatalf("SavePageLemmasAndIndexesThreadSafe(p1) error: %v", err)
	}
	if err := svc.SavePageLemmasAndIndexesThreadSafe(p2, site, p2.Content); err != nil {
		t.Fatalf("SavePageLemmasAndIndexesThreadSafe(p2) error: %v", err)
	}

	whale, err := st.Lemmas.FindByLemmaAndSite("whale", site)
	if err != nil {
		t.Fatalf("FindByLemmaAndSite(whale) error: %v", err)
	}
	if whale.Frequency != 3 {
		t.Fatalf("whale.Frequency = %d; want 3 (1 from p1 + 2 from p2)", whale.Frequency)
	}
}

func TestDecreaseLemmaFrequenciesDeletesAtZero(t *testing.T) {
	svc, st := newTestService(t)
	site := mustSaveSite(t, st, "http://example.com")
	page := mustSavePage(t, st, site, "/a", "<p>whale</p>")

	if err := svc.SavePageLemmasAndIndexesThreadSafe(page, site, page.Content); err != nil {
		t.Fatalf("SavePageLemmasAndIndexesThreadSafe() error: %v", err)
	}
	if err := svc.DecreaseLemmaFrequencies(page, site, page.Content); err != nil {
		t.Fatalf("DecreaseLemmaFrequencies() error: %v", err)
	}

	if _, err := st.Lemmas.FindByLemmaAndSite("whale", site); !store.IsNotFound(err) {
		t.Fatalf("expected lemma to be deleted once frequency reaches zero, got err=%v", err)
	}
}

// fillerPages saves n pages of unrelated content so a lemma's document
// frequency stays below the high-frequency cutoff relative to totalPages.
func fillerPages(t *testing.T, svc *Service, st *store.Store, site *model.Site, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		p := mustSavePage(t, st, site, "/filler"+string(rune('a'+i)), "<p>unrelated filler content only</p>")
		if err := svc.SavePageLemmasAndIndexesThreadSafe(p, site, p.Content); err != nil {
			t.Fatalf("SavePageLemmasAndIndexesThreadSafe(filler) error: %v", err)
		}
	}
}

func TestSearchSingleSiteKeepsOnlyPagesMatchingAllLemmas(t *testing.T) {
	svc, st := newTestService(t)
	site := mustSaveSite(t, st, "http://example.com")

	both := mustSavePage(t, st, site, "/both", "<p>whale ship whale ship</p>")
	oneOnly := mustSavePage(t, st, site, "/one", "<p>whale</p>")

	for _, p := range []*model.Page{both, oneOnly} {
		if err := svc.SavePageLemmasAndIndexesThreadSafe(p, site, p.Content); err != nil {
			t.Fatalf("SavePageLemmasAndIndexesThreadSafe() error: %v", err)
		}
	}
	fillerPages(t, svc, st, site, 8)

	if err := svc.RecalculateRankForAllSites(site); err != nil {
		t.Fatalf("RecalculateRankForAllSites() error: %v", err)
	}

	ranked, err := svc.Search([]string{"whale", "ship"}, site.URL)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("Search() = %d results; want 1 (intersection of whale and ship)", len(ranked))
	}
	if ranked[0].Page.ID != both.ID {
		t.Fatalf("Search()[0].Page = %q; want the page matching both lemmas", ranked[0].Page.Path)
	}
}

func TestSearchAcrossSitesUnionsCandidates(t *testing.T) {
	svc, st := newTestService(t)
	siteA := mustSaveSite(t, st, "http://a.example.com")
	siteB := mustSaveSite(t, st, "http://b.example.com")

	pageA := mustSavePage(t, st, siteA, "/", "<p>whale</p>")
	pageB := mustSavePage(t, st, siteB, "/", "<p>whale</p>")

	for _, pair := range []struct {
		page *model.Page
		site *model.Site
	}{{pageA, siteA}, {pageB, siteB}} {
		if err := svc.SavePageLemmasAndIndexesThreadSafe(pair.page, pair.site, pair.page.Content); err != nil {
			t.Fatalf("SavePageLemmasAndIndexesThreadSafe() error: %v", err)
		}
	}
	fillerPages(t, svc, st, siteA, 3)
	fillerPages(t, svc, st, siteB, 3)

	ranked, err := svc.Search([]string{"whale"}, "")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Search() across all sites = %d results; want 2 (union, deduplicated)", len(ranked))
	}
}
