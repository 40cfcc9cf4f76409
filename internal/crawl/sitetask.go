package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mkrylov/searchengine/internal/model"
)

// SiteTask is the per-site root worker: create the Site row,
// discover the root page's one-hop links, launch PageTasks over them,
// await completion, then mark the Site INDEXED or FAILED and trigger the
// IDF re-weighting pass.
//
// The root URL itself is used only for link discovery, never persisted
// as a Page: it is a pure entry point into the page graph, not a page
// in its own right.
type SiteTask struct {
	Name string
	URL  string
	ctx  *Context

	abnormal bool
}

// NewSiteTask builds a SiteTask for a configured (name, url) root.
func NewSiteTask(name, url string, c *Context) *SiteTask {
	return &SiteTask{Name: name, URL: url, ctx: c}
}

// Run executes the task end to end. A Site always ends in exactly one of
// {INDEXED, FAILED} when Run returns, including when a stop was requested
// before the crawl started; the exception is a failed write of the Site
// row itself, which is logged and leaves the row as it was.
func (t *SiteTask) Run(goCtx context.Context) {
	runID := uuid.New().String()
	log := t.ctx.Log.With("site", t.URL, "run", runID)

	site := t.ctx.Factory.NewSite(t.Name, t.URL)
	if err := t.ctx.Store.Sites.Save(site); err != nil {
		log.Error("save site failed", "error", err)
		return
	}
	t.ctx.Visited.ActivateSite(site)
	defer t.ctx.Visited.MarkSiteFinished(site.URL)

	// Every configured site gets a Site row, even one whose crawl never
	// gets to run because a stop was already requested: it still ends up
	// FAILED rather than silently missing.
	if t.ctx.ShouldStop() {
		t.fail(site, model.StopReason, log)
		return
	}

	log.Info("indexing site")

	links, err := t.rootLinks(goCtx, site)
	if err != nil {
		t.fail(site, err.Error(), log)
		return
	}
	if t.ctx.ShouldStop() {
		t.fail(site, model.StopReason, log)
		return
	}

	log.Info("discovered root links", "count", len(links))

	var wg sync.WaitGroup
	tasks := make([]*PageTask, 0, len(links))
	for _, link := range links {
		if t.ctx.ShouldStop() {
			break
		}
		if !t.ctx.Visited.VisitURL(link) {
			continue
		}
		task := NewPageTask(link, t.URL, site, t.ctx)
		tasks = append(tasks, task)
		Fork(&wg, func() { task.Run(goCtx) })
	}
	wg.Wait()

	if t.ctx.ShouldStop() {
		t.fail(site, model.StopReason, log)
		return
	}

	for _, task := range tasks {
		if task.CompletedAbnormally() {
			t.abnormal = true
		}
	}

	if t.abnormal {
		t.fail(site, "Одна или несколько страниц завершились с ошибкой", log)
		return
	}

	site.Status = model.StatusIndexed
	site.LastError = nil
	if err := t.ctx.Store.Sites.Save(site); err != nil {
		log.Error("save indexed status failed", "error", err)
		return
	}

	log.Info("recalculating lemma ranks")
	if err := t.ctx.Ranking.RecalculateRankForAllSites(site); err != nil {
		t.fail(site, err.Error(), log)
		return
	}
	log.Info("site indexed")
}

// rootLinks fetches the root URL purely to extract its one-hop outbound
// links; it is never persisted as a Page.
func (t *SiteTask) rootLinks(goCtx context.Context, site *model.Site) ([]string, error) {
	res, err := t.ctx.Fetcher.Fetch(goCtx, t.URL, t.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch root %s: %w", t.URL, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("root %s returned status %d", t.URL, res.StatusCode)
	}
	return res.Links, nil
}

func (t *SiteTask) fail(site *model.Site, message string, log *slog.Logger) {
	site.Status = model.StatusFailed
	site.LastError = &message
	if err := t.ctx.Store.Sites.Save(site); err != nil {
		log.Error("save failed status failed", "error", err)
	}
}
