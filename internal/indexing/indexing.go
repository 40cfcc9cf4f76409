// Package indexing implements IndexingService: orchestration of a full
// reindex (wipe + launch all SiteTasks), single-page reindex, and
// cooperative stop.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mkrylov/searchengine/internal/crawl"
	"github.com/mkrylov/searchengine/internal/fetch"
	"github.com/mkrylov/searchengine/internal/model"
	"github.com/mkrylov/searchengine/internal/store"
)

// ErrAlreadyRunning is returned by StartIndexing when indexing is already
// in progress.
var ErrAlreadyRunning = errors.New("indexing: already running")

// ErrNotRunning is returned by StopIndexing when nothing is running.
var ErrNotRunning = errors.New("indexing: not running")

// ErrOutsideConfiguredSites is returned by IndexPage when url does not
// belong to any configured site.
var ErrOutsideConfiguredSites = errors.New("indexing: url is outside the sites configured for indexing")

// SiteConfig is one configured crawl root.
type SiteConfig struct {
	Name string
	URL  string
}

// Service orchestrates full reindexes and single-page reindexes.
type Service struct {
	sites []SiteConfig
	ctx   *crawl.Context

	running atomic.Bool
	mu      sync.Mutex
}

// New returns a Service for the given configured sites, wired to ctx.
func New(sites []SiteConfig, ctx *crawl.Context) *Service {
	return &Service{sites: sites, ctx: ctx}
}

// IsIndexing reports whether a full reindex is currently in progress.
func (s *Service) IsIndexing() bool { return s.running.Load() }

// StartIndexing wipes each configured site's existing rows, then starts a
// background goroutine that runs one SiteTask per configured site, and
// returns without waiting for them; the crawl continues in the background
// until that goroutine observes every SiteTask has joined.
func (s *Service) StartIndexing(goCtx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.ctx.ClearStop()
	s.ctx.Visited.Reset()

	for _, site := range s.sites {
		if err := s.ctx.Store.Sites.DeleteByURL(site.URL); err != nil {
			s.running.Store(false)
			return fmt.Errorf("indexing: wipe existing site %s: %w", site.URL, err)
		}
	}

	go s.runAll(goCtx)
	return nil
}

func (s *Service) runAll(goCtx context.Context) {
	defer s.running.Store(false)

	var wg sync.WaitGroup
	for _, site := range s.sites {
		site := site
		wg.Add(1)
		go func() {
			defer wg.Done()
			crawl.NewSiteTask(site.Name, site.URL, s.ctx).Run(goCtx)
		}()
	}
	wg.Wait()

	s.failStillIndexing()
}

// failStillIndexing is the stop-path finalizer: any Site that is still
// INDEXING once every SiteTask has joined (normally none, but a crash
// inside a task's own failure path could leave one behind) is marked
// FAILED with the stop message.
func (s *Service) failStillIndexing() {
	sites, err := s.ctx.Store.Sites.FindAll()
	if err != nil {
		s.ctx.Log.Error("finalizer: list sites failed", "error", err)
		return
	}
	for i := range sites {
		site := &sites[i]
		if site.Status != model.StatusIndexing {
			continue
		}
		site.Status = model.StatusFailed
		msg := model.StopReason
		site.LastError = &msg
		if err := s.ctx.Store.Sites.Save(site); err != nil {
			s.ctx.Log.Error("finalizer: save site failed", "site", site.URL, "error", err)
		}
	}
}

// StopIndexing requests cooperative cancellation of the current
// indexing run. It does not block for the run to finish.
func (s *Service) StopIndexing() error {
	if !s.IsIndexing() {
		return ErrNotRunning
	}
	s.ctx.RequestStop()
	return nil
}

// IndexPage reindexes a single page: if it already exists, its lemma
// contribution is removed and the row deleted first. IDF is not
// recomputed afterward — only a full reindex does that.
func (s *Service) IndexPage(goCtx context.Context, pageURL string) error {
	siteCfg, ok := s.resolveSiteConfig(pageURL)
	if !ok {
		return ErrOutsideConfiguredSites
	}

	site, err := s.siteRow(siteCfg)
	if err != nil {
		return fmt.Errorf("indexing: resolve site row for %s: %w", siteCfg.URL, err)
	}

	path := fetch.PathOf(pageURL)
	if existing, err := s.ctx.Store.Pages.FindByPath(site.ID, path); err == nil {
		if err := s.ctx.Ranking.DecreaseLemmaFrequencies(existing, site, existing.Content); err != nil {
			return fmt.Errorf("indexing: decrease lemma frequencies: %w", err)
		}
		if err := s.ctx.Store.Pages.Delete(existing); err != nil {
			return fmt.Errorf("indexing: delete existing page: %w", err)
		}
	}

	res, err := s.ctx.Fetcher.Fetch(goCtx, siteCfg.URL, pageURL)
	if err != nil {
		return fmt.Errorf("indexing: fetch %s: %w", pageURL, err)
	}

	code := res.StatusCode
	if code == 0 {
		code = 599
	}
	page := s.ctx.Factory.NewPage(site, path, code, res.HTML)
	if err := s.ctx.Store.Pages.Save(page); err != nil {
		return fmt.Errorf("indexing: persist page: %w", err)
	}
	if res.HTML == "" {
		return nil
	}

	if err := s.ctx.Ranking.SavePageLemmasAndIndexesThreadSafe(page, site, res.HTML); err != nil {
		return fmt.Errorf("indexing: save lemmas: %w", err)
	}
	return nil
}

// resolveSiteConfig finds the configured site that pageURL belongs to, by
// prefix match of the canonical scheme+host. This only answers whether
// pageURL falls under a *configured* root; whether that site has a Site
// row yet (i.e. has been through startIndexing) is a separate question,
// answered by siteRow.
func (s *Service) resolveSiteConfig(pageURL string) (SiteConfig, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return SiteConfig{}, false
	}
	origin := u.Scheme + "://" + u.Host

	for _, cfg := range s.sites {
		cu, err := url.Parse(cfg.URL)
		if err != nil {
			continue
		}
		cfgOrigin := cu.Scheme + "://" + cu.Host
		if origin == cfgOrigin || strings.HasPrefix(origin, cfgOrigin) {
			return cfg, true
		}
	}
	return SiteConfig{}, false
}

// siteRow returns the persisted Site row for a configured site, creating
// one (as INDEXED, since a lone indexPage call has no crawl to wait on)
// if this site has never been through startIndexing.
func (s *Service) siteRow(cfg SiteConfig) (*model.Site, error) {
	site, err := s.ctx.Store.Sites.FindByURL(cfg.URL)
	if err == nil {
		return site, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}

	site = s.ctx.Factory.NewSite(cfg.Name, cfg.URL)
	site.Status = model.StatusIndexed
	if err := s.ctx.Store.Sites.Save(site); err != nil {
		return nil, err
	}
	return site, nil
}
