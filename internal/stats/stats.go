// Package stats aggregates counts of sites, pages and lemmas, plus the
// current indexing state of each site.
package stats

import (
	"fmt"

	"github.com/mkrylov/searchengine/internal/store"
)

// Total is the aggregate count block of a statistics response.
type Total struct {
	Sites    int  `json:"sites"`
	Pages    int  `json:"pages"`
	Lemmas   int  `json:"lemmas"`
	Indexing bool `json:"indexing"`
}

// SiteStat is one site's row in the detailed statistics listing.
type SiteStat struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	StatusTime int64  `json:"statusTime"` // unix millis
	Error      string `json:"error"`
	Pages      int    `json:"pages"`
	Lemmas     int    `json:"lemmas"`
}

// Statistics is the full payload StatisticsService returns.
type Statistics struct {
	Total    Total      `json:"total"`
	Detailed []SiteStat `json:"detailed"`
}

// IndexingStateProvider reports whether a full reindex is in progress;
// satisfied by indexing.Service.
type IndexingStateProvider interface {
	IsIndexing() bool
}

// Service is StatisticsService.
type Service struct {
	store    *store.Store
	indexing IndexingStateProvider
}

// New returns a Service backed by st, reporting live state from idx.
func New(st *store.Store, idx IndexingStateProvider) *Service {
	return &Service{store: st, indexing: idx}
}

// GetStatistics aggregates counts across all sites and builds the
// detailed per-site listing.
func (s *Service) GetStatistics() (Statistics, error) {
	sites, err := s.store.Sites.FindAll()
	if err != nil {
		return Statistics{}, fmt.Errorf("stats: list sites: %w", err)
	}

	total := Total{Sites: len(sites), Indexing: s.indexing.IsIndexing()}
	detailed := make([]SiteStat, 0, len(sites))

	for i := range sites {
		site := &sites[i]

		pageCount, err := s.store.Pages.CountBySite(site.ID)
		if err != nil {
			return Statistics{}, fmt.Errorf("stats: count pages for %s: %w", site.URL, err)
		}
		lemmaCount, err := s.store.Lemmas.CountBySiteID(site.ID)
		if err != nil {
			return Statistics{}, fmt.Errorf("stats: count lemmas for %s: %w", site.URL, err)
		}

		total.Pages += int(pageCount)
		total.Lemmas += int(lemmaCount)

		detailed = append(detailed, SiteStat{
			URL:        site.URL,
			Name:       site.Name,
			Status:     string(site.Status),
			StatusTime: site.StatusTime.UnixMilli(),
			Error:      errString(site.LastError),
			Pages:      int(pageCount),
			Lemmas:     int(lemmaCount),
		})
	}

	return Statistics{Total: total, Detailed: detailed}, nil
}

func errString(err *string) string {
	if err == nil {
		return ""
	}
	return *err
}
