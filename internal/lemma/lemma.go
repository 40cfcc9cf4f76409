// Package lemma implements the pure text -> lemma analysis step: turning
// raw page content or a query string into normalized word forms, with
// stopwords dropped and inflections stemmed away.
package lemma

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/kljensen/snowball/english"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Analyzer turns text into lemma counts. It holds no mutable state, so a
// single instance is safe to share across goroutines.
type Analyzer struct {
	stop map[string]struct{}
}

// NewAnalyzer returns an Analyzer using the given stopword set. A nil set
// falls back to DefaultStopwords.
func NewAnalyzer(stop map[string]struct{}) *Analyzer {
	if stop == nil {
		stop = DefaultStopwords()
	}
	return &Analyzer{stop: stop}
}

func (a *Analyzer) stem(w string) string {
	lw := strings.ToLower(w)
	if _, bad := a.stop[lw]; bad {
		return ""
	}
	return english.Stem(lw, true)
}

// Analyze extracts visible text from HTML content and returns the number
// of occurrences of each lemma. Script/style text is ignored.
func (a *Analyzer) Analyze(htmlContent string) map[string]int {
	words := visibleWords(htmlContent)
	return a.countLemmas(words)
}

// AnalyzePlainText is the same pipeline as Analyze but for already-extracted
// plain text (used by the search snippet builder to score sentences, which
// need word counts, not a fresh DOM walk).
func (a *Analyzer) AnalyzePlainText(text string) map[string]int {
	return a.countLemmas(wordRe.FindAllString(text, -1))
}

func (a *Analyzer) countLemmas(words []string) map[string]int {
	counts := make(map[string]int)
	for _, w := range words {
		s := a.stem(w)
		if s == "" {
			continue
		}
		counts[s]++
	}
	return counts
}

// LemmasForQuery extracts an ordered, deduplicated list of lemmas from a
// free-text query: duplicates removed, stopwords/function-words dropped.
func (a *Analyzer) LemmasForQuery(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range wordRe.FindAllString(query, -1) {
		s := a.stem(w)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// visibleWords walks an HTML document and collects the lowercase word/digit
// tokens from text nodes outside of <script> and <style> elements.
func visibleWords(htmlContent string) []string {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var words []string
	var skipDepth int

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (strings.EqualFold(n.Data, "script") || strings.EqualFold(n.Data, "style")) {
			skipDepth++
		}
		if skipDepth == 0 && n.Type == html.TextNode {
			for _, tok := range wordRe.FindAllString(n.Data, -1) {
				words = append(words, strings.ToLower(tok))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (strings.EqualFold(n.Data, "script") || strings.EqualFold(n.Data, "style")) {
			skipDepth--
		}
	}
	walk(root)
	return words
}
