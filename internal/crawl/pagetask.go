package crawl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkrylov/searchengine/internal/fetch"
	"github.com/mkrylov/searchengine/internal/model"
)

// PageTask is the recursive per-URL worker: fetch one URL, persist a
// Page, analyze its content, update lemma frequencies and index rows,
// then recurse on the discovered child links.
type PageTask struct {
	URL     string
	SiteURL string
	Site    *model.Site
	ctx     *Context

	abnormal atomic.Bool
}

// NewPageTask builds a PageTask for targetURL under site.
func NewPageTask(targetURL, siteURL string, site *model.Site, c *Context) *PageTask {
	return &PageTask{URL: targetURL, SiteURL: siteURL, Site: site, ctx: c}
}

// CompletedAbnormally reports whether an unchecked error escaped this
// task's recursive section — as opposed to a fetch failure, which is
// recorded on the Page row and never counted as abnormal.
func (t *PageTask) CompletedAbnormally() bool { return t.abnormal.Load() }

// Run executes the task: fetch, persist, analyze, recurse. Children are
// forked as goroutines and joined before Run returns, so a parent never
// reports completion before its whole subtree has.
func (t *PageTask) Run(goCtx context.Context) {
	if t.ctx.ShouldStop() {
		return
	}

	t.ctx.pool.acquire()
	page, links, err := t.fetchAndPersist(goCtx)
	t.ctx.pool.release()

	if err != nil {
		t.ctx.Log.Error("page task failed", "url", t.URL, "error", err)
		t.abnormal.Store(true)
		return
	}
	if page == nil {
		// Fetch failed or returned a non-2xx status: recorded, not abnormal.
		return
	}

	if t.ctx.ShouldStop() {
		return
	}

	var wg sync.WaitGroup
	children := make([]*PageTask, 0, len(links))
	for _, link := range links {
		if t.ctx.ShouldStop() {
			break
		}
		if !t.ctx.Visited.VisitURL(link) {
			continue
		}
		child := NewPageTask(link, t.SiteURL, t.Site, t.ctx)
		children = append(children, child)
		Fork(&wg, func() { child.Run(goCtx) })
	}
	wg.Wait()

	for _, child := range children {
		if child.CompletedAbnormally() {
			t.abnormal.Store(true)
		}
	}
}

// fetchAndPersist fetches t.URL, always persisting a Page row (even on
// failure/non-2xx, where code and empty content are recorded), runs the
// lemma write path, and returns the outbound links discovered on the
// page in the same round trip. It returns (nil, nil, nil) when the fetch
// itself failed or returned a non-2xx status, since that is not an
// abnormal termination — only errors from here on are.
func (t *PageTask) fetchAndPersist(goCtx context.Context) (*model.Page, []string, error) {
	res, err := t.ctx.Fetcher.Fetch(goCtx, t.SiteURL, t.URL)
	if err != nil {
		return nil, nil, err
	}

	path := fetch.PathOf(t.URL)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, nil, t.persistFailedPage(res, path)
	}

	page := t.ctx.Factory.NewPage(t.Site, path, res.StatusCode, res.HTML)
	if err := t.ctx.Store.Pages.Save(page); err != nil {
		return nil, nil, fmt.Errorf("persist page: %w", err)
	}

	t.touchSiteHeartbeat()

	if err := t.ctx.Ranking.SavePageLemmasAndIndexesThreadSafe(page, t.Site, res.HTML); err != nil {
		return nil, nil, fmt.Errorf("save lemmas: %w", err)
	}

	return page, res.Links, nil
}

// persistFailedPage records a Page row for a fetch that failed or
// returned a non-2xx status, so operators can see which URLs failed.
func (t *PageTask) persistFailedPage(res fetch.Result, path string) error {
	code := res.StatusCode
	if code == 0 {
		code = 599
	}
	page := t.ctx.Factory.NewPage(t.Site, path, code, "")
	if err := t.ctx.Store.Pages.Save(page); err != nil {
		return fmt.Errorf("persist failed page: %w", err)
	}
	return nil
}

// touchSiteHeartbeat refreshes the Site's StatusTime to signal crawl
// liveness. It goes straight to a scoped UPDATE rather than mutating and
// saving t.Site, since t.Site is shared by every PageTask of the same
// site and a full-row Save from concurrent goroutines would race on it.
// A failure here is logged, not fatal: it would be wasteful to abort an
// otherwise-successful page fetch over a heartbeat write.
func (t *PageTask) touchSiteHeartbeat() {
	if err := t.ctx.Store.Sites.TouchStatusTime(t.Site.ID, time.Now()); err != nil {
		t.ctx.Log.Warn("site heartbeat save failed", "site", t.Site.URL, "error", err)
	}
}
