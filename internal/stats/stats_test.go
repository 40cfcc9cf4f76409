package stats

import (
	"testing"

	"github.com/mkrylov/searchengine/internal/model"
	"github.com/mkrylov/searchengine/internal/store"
)

type fakeIndexing struct{ indexing bool }

func (f fakeIndexing) IsIndexing() bool { return f.indexing }

func TestGetStatisticsAggregatesAcrossSites(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}

	site := &model.Site{URL: "http://example.com", Name: "Example", Status: model.StatusIndexed}
	if err := st.Sites.Save(site); err != nil {
		t.Fatalf("Save(site) error: %v", err)
	}
	for _, path := range []string{"/a", "/b"} {
		page := &model.Page{SiteID: site.ID, Path: path, Code: 200}
		if err := st.Pages.Save(page); err != nil {
			t.Fatalf("Save(page) error: %v", err)
		}
	}
	lemma := &model.Lemma{SiteID: site.ID, Lemma: "whale", Frequency: 3}
	if err := st.Lemmas.Save(lemma); err != nil {
		t.Fatalf("Save(lemma) error: %v", err)
	}

	svc := New(st, fakeIndexing{indexing: true})
	got, err := svc.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics() error: %v", err)
	}

	if got.Total.Sites != 1 || got.Total.Pages != 2 || got.Total.Lemmas != 1 {
		t.Fatalf("Total = %+v; want Sites=1 Pages=2 Lemmas=1", got.Total)
	}
	if !got.Total.Indexing {
		t.Fatalf("Total.Indexing = false; want true")
	}
	if len(got.Detailed) != 1 || got.Detailed[0].URL != site.URL {
		t.Fatalf("Detailed = %+v; want one entry for %q", got.Detailed, site.URL)
	}
}
