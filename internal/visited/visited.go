// Package visited implements the process-wide VisitedStore: the set of
// URLs already claimed for crawl, plus the map of sites currently being
// indexed. Both collections are safe for concurrent use and are the
// primary deduplication mechanism in the crawl scheduler.
package visited

import (
	"sync"

	"github.com/mkrylov/searchengine/internal/model"
)

// Store is a thread-safe set of claimed URLs and a thread-safe map of
// active sites.
type Store struct {
	mu      sync.Mutex
	visited map[string]struct{}
	active  map[string]*model.Site
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		visited: make(map[string]struct{}),
		active:  make(map[string]*model.Site),
	}
}

// VisitURL atomically tests whether url has already been claimed and, if
// not, claims it. It returns true exactly once per distinct url across
// any number of concurrent callers, and is the mechanism relied upon for
// dedup across the whole worker pool.
func (s *Store) VisitURL(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[url]; ok {
		return false
	}
	s.visited[url] = struct{}{}
	return true
}

// Size returns the number of claimed URLs.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// ActivateSite registers site as currently being indexed.
func (s *Store) ActivateSite(site *model.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[site.URL] = site
}

// MarkSiteFinished removes a site from the active set once its SiteTask
// has terminated.
func (s *Store) MarkSiteFinished(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, url)
}

// ActiveSites returns the sites currently being indexed.
func (s *Store) ActiveSites() []*model.Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Site, 0, len(s.active))
	for _, site := range s.active {
		out = append(out, site)
	}
	return out
}

// Reset clears both the visited set and the active-sites map. Called at
// the start of a full reindex.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = make(map[string]struct{})
	s.active = make(map[string]*model.Site)
}
