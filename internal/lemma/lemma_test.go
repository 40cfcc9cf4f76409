package lemma

import "testing"

func TestAnalyzeSkipsScriptAndStyle(t *testing.T) {
	html := `
	<html>
	  <head><style>body{color:red}</style><script>var x=1</script></head>
	  <body><p>Running runners run quickly.</p></body>
	</html>`

	an := NewAnalyzer(nil)
	counts := an.Analyze(html)

	if counts["run"] == 0 {
		t.Fatalf("Analyze() missing stemmed lemma %q; got %#v", "run", counts)
	}
	for bad := range map[string]struct{}{"color": {}, "var": {}} {
		if _, ok := counts[bad]; ok {
			t.Fatalf("Analyze() should not see script/style text, found %q in %#v", bad, counts)
		}
	}
}

func TestAnalyzeDropsStopwords(t *testing.T) {
	an := NewAnalyzer(map[string]struct{}{"the": {}, "and": {}})
	counts := an.Analyze("<p>the cat and the dog</p>")

	if _, ok := counts["the"]; ok {
		t.Fatalf("Analyze() should drop stopword %q; got %#v", "the", counts)
	}
	if counts["cat"] != 1 || counts["dog"] != 1 {
		t.Fatalf("Analyze() = %#v; want cat=1 dog=1", counts)
	}
}

func TestLemmasForQueryDedupsAndStems(t *testing.T) {
	an := NewAnalyzer(nil)
	got := an.LemmasForQuery("running dogs and running cats")

	seen := make(map[string]int)
	for _, l := range got {
		seen[l]++
	}
	for lemma, count := range seen {
		if count > 1 {
			t.Fatalf("LemmasForQuery() duplicated lemma %q: %#v", lemma, got)
		}
	}
	if seen["dog"] == 0 || seen["cat"] == 0 {
		t.Fatalf("LemmasForQuery() = %#v; want stemmed dog/cat", got)
	}
}

func TestAnalyzePlainTextMatchesAnalyze(t *testing.T) {
	an := NewAnalyzer(nil)
	html := "<p>whale ship</p>"
	fromHTML := an.Analyze(html)
	fromText := an.AnalyzePlainText("whale ship")

	if fromHTML["whale"] != fromText["whale"] || fromHTML["ship"] != fromText["ship"] {
		t.Fatalf("Analyze/AnalyzePlainText disagree: %#v vs %#v", fromHTML, fromText)
	}
}
