// Package ranking implements the lemma write path (invoked by PageTask),
// the IDF recalculation pass (invoked once per site by SiteTask) and the
// retrieval/ranking path used by search.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/model"
	"github.com/mkrylov/searchengine/internal/store"
)

// HighFrequencyThreshold is the default fraction of a site's pages above
// which a lemma is considered too common to be discriminating and is
// dropped from search candidates.
const HighFrequencyThreshold = 0.30

// RankedPage is one scored candidate in a search result set.
type RankedPage struct {
	Page       *model.Page
	Site       *model.Site
	Absolute   float64
	Relative   float64
	MatchCount int
}

// Service is the write path + IDF pass + retrieval path for lemmas and
// indexes. Its write path is serialized by mu to avoid torn updates of
// the (site, lemma).Frequency counter: two PageTasks that both find a
// given lemma missing must not both insert a row and violate the
// (site, lemma) uniqueness invariant.
type Service struct {
	store    *store.Store
	analyzer *lemma.Analyzer
	factory  *model.Factory

	mu sync.Mutex

	highFreqThreshold float64
}

// New returns a Service. threshold overrides HighFrequencyThreshold when
// positive.
func New(st *store.Store, an *lemma.Analyzer, threshold float64) *Service {
	if threshold <= 0 {
		threshold = HighFrequencyThreshold
	}
	return &Service{
		store:             st,
		analyzer:          an,
		factory:           model.NewFactory(),
		highFreqThreshold: threshold,
	}
}

// SavePageLemmasAndIndexesThreadSafe analyzes content, updates each
// lemma's frequency counter and writes one Index row per lemma found on
// the page. Serialized process-wide: see Service's doc comment.
func (s *Service) SavePageLemmasAndIndexesThreadSafe(page *model.Page, site *model.Site, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePageLemmasAndIndexes(page, site, content)
}

func (s *Service) savePageLemmasAndIndexes(page *model.Page, site *model.Site, content string) error {
	if content == "" {
		return nil
	}
	counts := s.analyzer.Analyze(content)
	for name, count := range counts {
		lemmaRow, err := s.store.Lemmas.FindByLemmaAndSite(name, site)
		if store.IsNotFound(err) {
			lemmaRow = s.factory.NewLemma(site, name, count)
			if err := s.store.Lemmas.Save(lemmaRow); err != nil {
				return fmt.Errorf("ranking: insert lemma %q: %w", name, err)
			}
		} else if err != nil {
			return fmt.Errorf("ranking: find lemma %q: %w", name, err)
		} else {
			lemmaRow.Frequency += count
			if err := s.store.Lemmas.Save(lemmaRow); err != nil {
				return fmt.Errorf("ranking: update lemma %q: %w", name, err)
			}
		}

		idx := s.factory.NewIndex(page, lemmaRow, float64(count))
		if err := s.store.Indexes.Save(idx); err != nil {
			return fmt.Errorf("ranking: insert index for lemma %q: %w", name, err)
		}
	}
	return nil
}

// DecreaseLemmaFrequencies is the inverse of the write path: it is called
// before a Page is replaced or deleted so that its contribution to each
// lemma's frequency counter is removed. A lemma whose frequency reaches
// zero is deleted outright (its Index rows disappear with the Page).
func (s *Service) DecreaseLemmaFrequencies(page *model.Page, site *model.Site, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content == "" {
		return nil
	}
	counts := s.analyzer.Analyze(content)
	for name, count := range counts {
		lemmaRow, err := s.store.Lemmas.FindByLemmaAndSite(name, site)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("ranking: find lemma %q: %w", name, err)
		}

		lemmaRow.Frequency -= count
		if lemmaRow.Frequency <= 0 {
			if err := s.store.Lemmas.DeleteByID(lemmaRow.ID); err != nil {
				return fmt.Errorf("ranking: delete lemma %q: %w", name, err)
			}
			continue
		}
		if err := s.store.Lemmas.Save(lemmaRow); err != nil {
			return fmt.Errorf("ranking: update lemma %q: %w", name, err)
		}
	}
	return nil
}

// RecalculateRankForAllSites is the IDF pass, run once per site after
// all of its PageTasks have joined. Pre-pass Index.Rank values are raw
// occurrence counts; post-pass they are TF·IDF-ish weights:
// rank = raw_count * ln(N / (df + 1)).
func (s *Service) RecalculateRankForAllSites(site *model.Site) error {
	totalPages, err := s.store.Pages.CountBySite(site.ID)
	if err != nil {
		return fmt.Errorf("ranking: count pages for site %d: %w", site.ID, err)
	}

	lemmas, err := s.store.Lemmas.FindBySite(site.ID)
	if err != nil {
		return fmt.Errorf("ranking: list lemmas for site %d: %w", site.ID, err)
	}

	for i := range lemmas {
		lem := &lemmas[i]
		df, err := s.store.Indexes.CountDistinctByLemmaAndPageSite(lem.ID, site.ID)
		if err != nil {
			return fmt.Errorf("ranking: df for lemma %q: %w", lem.Lemma, err)
		}

		idxs, err := s.store.Indexes.FindByLemmaAndPageSite(lem.ID, site.ID)
		if err != nil {
			return fmt.Errorf("ranking: indexes for lemma %q: %w", lem.Lemma, err)
		}

		factor := math.Log(float64(totalPages) / float64(df+1))
		for j := range idxs {
			idxs[j].Rank = idxs[j].Rank * factor
		}
		if err := s.store.Indexes.SaveAll(idxs); err != nil {
			return fmt.Errorf("ranking: save ranks for lemma %q: %w", lem.Lemma, err)
		}
	}
	return nil
}

// Search performs the retrieval and ranking algorithm described by the
// engine's design: lemma lookup, high-frequency filtering, candidate
// intersection (single site) or union (all sites), absolute/relative
// rank computation. It returns candidates sorted by descending relative
// rank, with no pagination applied — callers slice offset:offset+limit.
func (s *Service) Search(queryLemmas []string, siteURL string) ([]RankedPage, error) {
	if len(queryLemmas) == 0 {
		return nil, nil
	}

	var lemmaRows []model.Lemma
	var err error
	if siteURL != "" {
		lemmaRows, err = s.store.Lemmas.FindByLemmaInAndSiteURL(queryLemmas, siteURL)
	} else {
		lemmaRows, err = s.store.Lemmas.FindByLemmaIn(queryLemmas)
	}
	if err != nil {
		return nil, fmt.Errorf("ranking: load lemmas: %w", err)
	}
	if len(lemmaRows) == 0 {
		return nil, nil
	}

	filtered, err := s.filterHighFrequency(lemmaRows)
	if err != nil {
		return nil, err
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Frequency < filtered[j].Frequency })

	idxs, err := s.candidateIndexes(filtered, siteURL != "")
	if err != nil {
		return nil, err
	}
	if len(idxs) == 0 {
		return nil, nil
	}

	return s.rank(idxs, len(queryLemmas))
}

// filterHighFrequency drops lemmas that occur on more than
// highFreqThreshold of their site's pages: they carry little
// discriminating power. The denominator is always the lemma's own
// site's page count, even during a cross-site search — preserved
// intentionally, see DESIGN.md.
func (s *Service) filterHighFrequency(lemmas []model.Lemma) ([]model.Lemma, error) {
	var out []model.Lemma
	for _, lem := range lemmas {
		totalPages, err := s.store.Pages.CountBySite(lem.SiteID)
		if err != nil {
			return nil, fmt.Errorf("ranking: count pages for site %d: %w", lem.SiteID, err)
		}
		if totalPages == 0 {
			continue
		}
		df, err := s.store.Indexes.CountDistinctByLemmaAndPageSite(lem.ID, lem.SiteID)
		if err != nil {
			return nil, fmt.Errorf("ranking: df for lemma %q: %w", lem.Lemma, err)
		}
		if float64(df)/float64(totalPages) > s.highFreqThreshold {
			continue
		}
		out = append(out, lem)
	}
	return out, nil
}

// candidateIndexes resolves the sorted (rarest-first) lemma list to a
// candidate Index set: intersection when a single site is selected,
// union (deduplicated) otherwise.
func (s *Service) candidateIndexes(lemmas []model.Lemma, singleSite bool) ([]model.Index, error) {
	if !singleSite {
		seen := make(map[uint]struct{})
		var out []model.Index
		for _, lem := range lemmas {
			idxs, err := s.store.Indexes.FindByLemmaAndPageSite(lem.ID, lem.SiteID)
			if err != nil {
				return nil, fmt.Errorf("ranking: indexes for lemma %q: %w", lem.Lemma, err)
			}
			for _, idx := range idxs {
				if _, dup := seen[idx.ID]; dup {
					continue
				}
				seen[idx.ID] = struct{}{}
				out = append(out, idx)
			}
		}
		return out, nil
	}

	base, err := s.store.Indexes.FindByLemmaAndPageSite(lemmas[0].ID, lemmas[0].SiteID)
	if err != nil {
		return nil, fmt.Errorf("ranking: indexes for lemma %q: %w", lemmas[0].Lemma, err)
	}
	for _, lem := range lemmas[1:] {
		idxs, err := s.store.Indexes.FindByLemmaAndPageSite(lem.ID, lem.SiteID)
		if err != nil {
			return nil, fmt.Errorf("ranking: indexes for lemma %q: %w", lem.Lemma, err)
		}
		pagesWithLemma := make(map[uint]struct{}, len(idxs))
		for _, idx := range idxs {
			pagesWithLemma[idx.PageID] = struct{}{}
		}
		var kept []model.Index
		for _, idx := range base {
			if _, ok := pagesWithLemma[idx.PageID]; ok {
				kept = append(kept, idx)
			}
		}
		base = kept
		if len(base) == 0 {
			break
		}
	}
	return base, nil
}

// rank computes absolute and relative rank per page from the candidate
// index set and returns pages sorted by descending relative rank.
func (s *Service) rank(idxs []model.Index, numQueryLemmas int) ([]RankedPage, error) {
	absolute := make(map[uint]float64)
	matches := make(map[uint]int)
	pageIDs := make(map[uint]struct{})
	for _, idx := range idxs {
		absolute[idx.PageID] += idx.Rank
		matches[idx.PageID]++
		pageIDs[idx.PageID] = struct{}{}
	}

	var maxRank float64
	for _, v := range absolute {
		if v > maxRank {
			maxRank = v
		}
	}
	if maxRank == 0 {
		maxRank = 1
	}

	out := make([]RankedPage, 0, len(pageIDs))
	for pageID := range pageIDs {
		page, err := s.store.Pages.FindByID(pageID)
		if err != nil {
			return nil, fmt.Errorf("ranking: load page %d: %w", pageID, err)
		}
		site, err := s.store.Sites.FindByID(page.SiteID)
		if err != nil {
			return nil, fmt.Errorf("ranking: load site %d: %w", page.SiteID, err)
		}

		base := absolute[pageID] / maxRank
		weight := 1 + float64(matches[pageID])/float64(numQueryLemmas)
		out = append(out, RankedPage{
			Page:       page,
			Site:       site,
			Absolute:   absolute[pageID],
			Relative:   base * weight,
			MatchCount: matches[pageID],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Relative != out[j].Relative {
			return out[i].Relative > out[j].Relative
		}
		return out[i].Page.ID < out[j].Page.ID
	})
	return out, nil
}
