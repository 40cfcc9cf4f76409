// Package crawl implements the concurrent crawl scheduler: the
// IndexingContext composition root, and the PageTask/SiteTask workers
// that fetch, persist and recurse over a site's pages.
package crawl

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mkrylov/searchengine/internal/fetch"
	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/model"
	"github.com/mkrylov/searchengine/internal/ranking"
	"github.com/mkrylov/searchengine/internal/store"
	"github.com/mkrylov/searchengine/internal/visited"
)

// Context is the composition root every task in the crawl tree carries: a
// bundle of references to the repository, the visited-URL store, the
// fetcher, the lemma analyzer and the lemma/rank write path, plus the
// global stop flag every worker consults before doing anything that
// can't be undone.
type Context struct {
	Store    *store.Store
	Visited  *visited.Store
	Fetcher  *fetch.Fetcher
	Analyzer *lemma.Analyzer
	Ranking  *ranking.Service
	Factory  *model.Factory
	Log      *slog.Logger

	pool *pool
	stop atomic.Bool
}

// NewContext wires up a Context with a worker pool bounded to
// parallelism concurrent fetch/persist operations.
func NewContext(st *store.Store, an *lemma.Analyzer, f *fetch.Fetcher, rk *ranking.Service, parallelism int, log *slog.Logger) *Context {
	return &Context{
		Store:    st,
		Visited:  visited.New(),
		Fetcher:  f,
		Analyzer: an,
		Ranking:  rk,
		Factory:  model.NewFactory(),
		Log:      log,
		pool:     newPool(parallelism),
	}
}

// RequestStop sets the global stop flag. Every worker observes it at its
// next check-in point; in-flight fetches are allowed to finish.
func (c *Context) RequestStop() { c.stop.Store(true) }

// ClearStop resets the stop flag for the next indexing run.
func (c *Context) ClearStop() { c.stop.Store(false) }

// ShouldStop reports whether a stop has been requested.
func (c *Context) ShouldStop() bool { return c.stop.Load() }

// pool bounds how many fetch/persist operations run concurrently. It is
// deliberately not a task queue: a task only holds a slot while doing
// its own fetch+persist work, and releases it before blocking on its
// children's completion, so deep recursion can never deadlock the pool —
// the Go equivalent of a fork-join pool redistributing idle workers to
// stolen work.
type pool struct {
	sem chan struct{}
}

func newPool(parallelism int) *pool {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &pool{sem: make(chan struct{}, parallelism)}
}

func (p *pool) acquire() { p.sem <- struct{}{} }
func (p *pool) release() { <-p.sem }

// Fork runs fn as a new goroutine tracked by wg, for spawning child
// PageTasks from a parent task.
func Fork(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}
