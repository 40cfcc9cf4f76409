// Package search turns ranked pages into the result objects a query
// response hands back, with a title, a single best-matching-sentence
// snippet and a relative score.
package search

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/ranking"
)

// Result is one ranked page handed back by a search.
type Result struct {
	Site      string  `json:"site"`
	SiteName  string  `json:"siteName"`
	URI       string  `json:"uri"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// Builder assembles Results from ranked pages.
type Builder struct {
	analyzer *lemma.Analyzer
}

// NewBuilder returns a Builder that uses an Analyzer to find the
// best-matching sentence for a snippet.
func NewBuilder(an *lemma.Analyzer) *Builder {
	return &Builder{analyzer: an}
}

// Build paginates ranked (already sorted by descending relative rank) to
// [offset, offset+limit) and builds a Result for each surviving page.
func (b *Builder) Build(ranked []ranking.RankedPage, queryLemmas []string, offset, limit int) []Result {
	page := paginate(ranked, offset, limit)

	out := make([]Result, 0, len(page))
	for _, rp := range page {
		out = append(out, Result{
			Site:      rp.Site.URL,
			SiteName:  rp.Site.Name,
			URI:       rp.Page.Path,
			Title:     extractTitle(rp.Page.Content),
			Snippet:   b.bestSnippet(rp.Page.Content, queryLemmas),
			Relevance: rp.Relative,
		})
	}
	return out
}

func paginate(ranked []ranking.RankedPage, offset, limit int) []ranking.RankedPage {
	if offset >= len(ranked) {
		return nil
	}
	end := offset + limit
	if end > len(ranked) || limit <= 0 {
		end = len(ranked)
	}
	return ranked[offset:end]
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
var tagRe = regexp.MustCompile(`(?s)<[^>]*>`)
var sentenceSplitRe = regexp.MustCompile(`(?s)[.!?\n]+`)

func extractTitle(htmlContent string) string {
	m := titleRe.FindStringSubmatch(htmlContent)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
}

// bestSnippet returns the plain-text sentence of the page that contains
// the most distinct query lemmas (the earliest such sentence on a tie),
// falling back to the first sentence of the page's text (title included)
// when no sentence matches.
func (b *Builder) bestSnippet(htmlContent string, queryLemmas []string) string {
	text := plainText(htmlContent)
	sentences := sentenceSplitRe.Split(text, -1)

	want := make(map[string]struct{}, len(queryLemmas))
	for _, l := range queryLemmas {
		want[l] = struct{}{}
	}

	bestScore := -1
	best := ""
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		score := 0
		for lem := range b.analyzer.AnalyzePlainText(sentence) {
			if _, ok := want[lem]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = sentence
		}
	}
	if best == "" && len(sentences) > 0 {
		best = strings.TrimSpace(sentences[0])
	}
	return best
}

// plainText strips tags and collapses whitespace, skipping script/style
// content, the same way the lemma analyzer's HTML walk does.
func plainText(htmlContent string) string {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var skipDepth int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (strings.EqualFold(n.Data, "script") || strings.EqualFold(n.Data, "style")) {
			skipDepth++
		}
		if skipDepth == 0 && n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (strings.EqualFold(n.Data, "script") || strings.EqualFold(n.Data, "style")) {
			skipDepth--
		}
	}
	walk(root)
	return strings.Join(strings.Fields(sb.String()), " ")
}
