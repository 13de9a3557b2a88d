package engine

import (
	"errors"
	"math"
	"testing"

	apperrors "github.com/proplex/searchd/pkg/errors"
	"github.com/proplex/searchd/pkg/search"
)

func intp(v int) *int { return &v }

func f64p(v float64) *float64 { return &v }

func loaded(docs []search.Document) *Engine {
	e := New(DefaultConfig())
	e.Load(docs)
	return e
}

func twoDocCorpus() []search.Document {
	return []search.Document{
		{ID: "a", Title: "Red House", Content: "A red house with a large garden", Tags: []string{"garden"}, Category: "house"},
		{ID: "b", Title: "Blue Flat", Content: "A blue flat in the city centre", Tags: []string{"city"}, Category: "flat"},
	}
}

// towerCorpus gives "tower" a positive BM25 score: one owner among five
// documents keeps the idf at ln(3).
func towerCorpus() []search.Document {
	return []search.Document{
		{ID: "t", Title: "Old Tower", Content: "a tall tower", Tags: []string{"stone", "stone"}, Category: "keep"},
		{ID: "f1", Title: "Meadow", Content: "green meadow"},
		{ID: "f2", Title: "Lake", Content: "deep lake"},
		{ID: "f3", Title: "Forest", Content: "dark forest"},
		{ID: "f4", Title: "Field", Content: "open field"},
	}
}

func TestSearchExactMatch(t *testing.T) {
	e := loaded(twoDocCorpus())

	res, err := e.Search(search.Query{Text: "house"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || len(res.Documents) != 1 {
		t.Fatalf("Total=%d len=%d, want 1/1", res.Total, len(res.Documents))
	}
	if res.Documents[0].ID != "a" {
		t.Errorf("matched %q, want a", res.Documents[0].ID)
	}
	// One owner in a two-document corpus: idf = ln(1.5/1.5) = 0, so the
	// match scores exactly zero yet is still returned.
	if res.Documents[0].Score != 0 {
		t.Errorf("score = %v, want 0", res.Documents[0].Score)
	}
	if res.Facets != nil {
		t.Error("facets present without filters")
	}
}

func TestSearchEmptyQueryText(t *testing.T) {
	e := loaded(twoDocCorpus())

	res, err := e.Search(search.Query{Text: ""})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 || len(res.Documents) != 0 {
		t.Errorf("empty query matched %d docs, want 0 (no implicit match-all)", res.Total)
	}

	// With filters the empty match set still wins: match precedes filter.
	res, err = e.Search(search.Query{
		Text:    "",
		Filters: &search.Filters{Categories: []string{"flat"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("empty query with filters matched %d docs, want 0", res.Total)
	}
	if res.Facets == nil {
		t.Fatal("filters supplied but facets missing")
	}
	if len(res.Facets.Categories) != 0 || len(res.Facets.Tags) != 0 {
		t.Errorf("facets over empty result = %v, want empty maps", res.Facets)
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	e := New(DefaultConfig())

	res, err := e.Search(search.Query{Text: "anything at all"})
	if err != nil {
		t.Fatalf("search on empty corpus errored: %v", err)
	}
	if res.Total != 0 || len(res.Documents) != 0 {
		t.Errorf("empty corpus returned %d matches", res.Total)
	}
}

func TestSearchFuzzy(t *testing.T) {
	e := loaded(twoDocCorpus())

	// Exact mode: the typo matches nothing.
	res, err := e.Search(search.Query{Text: "hous"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("exact search for typo matched %d, want 0", res.Total)
	}

	// Fuzzy with the default distance (2) reaches "house".
	res, err = e.Search(search.Query{Text: "hous", Fuzzy: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Documents[0].ID != "a" {
		t.Fatalf("fuzzy search Total=%d, want doc a", res.Total)
	}

	// An explicit distance of zero disables the expansion again.
	res, err = e.Search(search.Query{Text: "hous", Fuzzy: true, FuzzyDistance: intp(0)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("fuzzy distance 0 matched %d, want 0", res.Total)
	}
}

func TestSearchFilters(t *testing.T) {
	e := loaded(twoDocCorpus())

	// Both documents match the text; the category narrows to one.
	q := search.Query{
		Text:    "red house blue flat",
		Filters: &search.Filters{Categories: []string{"flat"}},
	}
	res, err := e.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Documents[0].ID != "b" {
		t.Fatalf("category filter: Total=%d, want doc b", res.Total)
	}

	q.Filters = &search.Filters{Tags: []string{"garden"}}
	res, err = e.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Documents[0].ID != "a" {
		t.Fatalf("tag filter: Total=%d, want doc a", res.Total)
	}

	// Category and tag constraints AND together.
	q.Filters = &search.Filters{Categories: []string{"flat"}, Tags: []string{"garden"}}
	res, err = e.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("disjoint AND filter: Total=%d, want 0", res.Total)
	}

	q.Filters = &search.Filters{Categories: []string{"castle"}}
	res, err = e.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("unknown category: Total=%d, want 0", res.Total)
	}
}

func TestSearchThreshold(t *testing.T) {
	e := loaded(towerCorpus())

	base, err := e.Search(search.Query{Text: "tower"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if base.Total != 1 || base.Documents[0].Score <= 0 {
		t.Fatalf("precondition: want one positive-scoring match, got %+v", base)
	}
	score := base.Documents[0].Score

	// The threshold is inclusive.
	res, err := e.Search(search.Query{
		Text:    "tower",
		Filters: &search.Filters{ScoreThreshold: f64p(score)},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("threshold == score dropped the match")
	}

	res, err = e.Search(search.Query{
		Text:    "tower",
		Filters: &search.Filters{ScoreThreshold: f64p(score * 1.01)},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("threshold above score kept the match")
	}

	// Boosts apply before the threshold, so a boost can rescue a match.
	res, err = e.Search(search.Query{
		Text:    "tower",
		Boosts:  map[string]float64{"keep": 4},
		Filters: &search.Filters{ScoreThreshold: f64p(score * 2)},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("boosted score below threshold, want kept")
	}
}

func TestSearchBoosts(t *testing.T) {
	e := loaded(towerCorpus())

	base, err := e.Search(search.Query{Text: "tower"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	baseScore := base.Documents[0].Score

	// Title (query text occurs in "Old Tower"), category value "keep",
	// and the tag value "stone" twice: 2 * 3 * 5 * 5.
	res, err := e.Search(search.Query{
		Text:   "tower",
		Boosts: map[string]float64{"title": 2, "keep": 3, "stone": 5},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := baseScore * 2 * 3 * 5 * 5
	if got := res.Documents[0].Score; math.Abs(got-want) > 1e-9 {
		t.Errorf("boosted score = %v, want %v", got, want)
	}

	// The title factor only applies when the query text is in the title.
	res, err = e.Search(search.Query{
		Text:   "tall",
		Boosts: map[string]float64{"title": 2},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	baseTall, err := e.Search(search.Query{Text: "tall"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := res.Documents[0].Score, baseTall.Documents[0].Score; got != want {
		t.Errorf("title boost applied without a title match: %v != %v", got, want)
	}
}

func TestSearchPagination(t *testing.T) {
	docs := []search.Document{
		{ID: "h0", Title: "House", Content: "plain house"},
		{ID: "h1", Title: "House", Content: "plain house"},
		{ID: "h2", Title: "House", Content: "plain house"},
		{ID: "h3", Title: "House", Content: "plain house"},
	}
	e := loaded(docs)

	// Identical documents tie on score and fall back to internal-id order.
	res, err := e.Search(search.Query{Text: "house", Limit: intp(2), Offset: intp(1)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 4 {
		t.Errorf("Total = %d, want 4", res.Total)
	}
	if len(res.Documents) != 2 || res.Documents[0].ID != "h1" || res.Documents[1].ID != "h2" {
		t.Errorf("page = %v, want [h1 h2]", ids(res.Documents))
	}

	// limit 0 is an explicit empty page, not "use the default".
	res, err = e.Search(search.Query{Text: "house", Limit: intp(0)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 4 || len(res.Documents) != 0 {
		t.Errorf("limit 0: Total=%d page=%d, want 4/0", res.Total, len(res.Documents))
	}

	// Offsets beyond the total clamp to an empty page.
	res, err = e.Search(search.Query{Text: "house", Offset: intp(99)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 4 || len(res.Documents) != 0 {
		t.Errorf("offset past end: Total=%d page=%d, want 4/0", res.Total, len(res.Documents))
	}
}

func TestSearchFacets(t *testing.T) {
	docs := []search.Document{
		{ID: "1", Title: "Casa Uno", Content: "casa", Category: "house", Tags: []string{"garden"}},
		{ID: "2", Title: "Casa Dos", Content: "casa", Category: "house", Tags: []string{"garden", "pool"}},
		{ID: "3", Title: "Casa Tres", Content: "casa", Category: "house", Tags: []string{"pool"}},
		{ID: "4", Title: "Piso", Content: "casa", Category: "flat", Tags: []string{"city"}},
	}
	e := loaded(docs)

	res, err := e.Search(search.Query{
		Text:    "casa",
		Limit:   intp(1),
		Filters: &search.Filters{Categories: []string{"house", "flat"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 4 || len(res.Documents) != 1 {
		t.Fatalf("Total=%d page=%d, want 4/1", res.Total, len(res.Documents))
	}

	// Facets count the pre-pagination set.
	if got := res.Facets.Categories; got["house"] != 3 || got["flat"] != 1 {
		t.Errorf("category facets = %v, want house:3 flat:1", got)
	}
	if got := res.Facets.Tags; got["garden"] != 2 || got["pool"] != 2 || got["city"] != 1 {
		t.Errorf("tag facets = %v, want garden:2 pool:2 city:1", got)
	}

	// Each dimension's counts never exceed the total match count per value.
	for val, n := range res.Facets.Categories {
		if n > res.Total {
			t.Errorf("category %q count %d exceeds total %d", val, n, res.Total)
		}
	}
}

func TestSearchValidation(t *testing.T) {
	e := loaded(twoDocCorpus())

	cases := []search.Query{
		{Text: "house", Limit: intp(-1)},
		{Text: "house", Offset: intp(-5)},
		{Text: "house", Fuzzy: true, FuzzyDistance: intp(-2)},
		{Text: "house", Filters: &search.Filters{DateRange: &search.DateRange{From: "2024-12-31", To: "2024-01-01"}}},
	}
	for i, q := range cases {
		if _, err := e.Search(q); !errors.Is(err, apperrors.ErrInvalidQuery) {
			t.Errorf("case %d: err = %v, want ErrInvalidQuery", i, err)
		}
	}

	// A consistent date range is accepted and does not restrict matches.
	res, err := e.Search(search.Query{
		Text:    "house",
		Filters: &search.Filters{DateRange: &search.DateRange{From: "2024-01-01", To: "2024-12-31"}},
	})
	if err != nil {
		t.Fatalf("valid date range rejected: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("date range restricted matches: Total=%d, want 1", res.Total)
	}
}

func TestLoadReplacesPreviousGeneration(t *testing.T) {
	e := loaded(twoDocCorpus())

	if n := e.Load([]search.Document{{ID: "c", Title: "Stone Castle", Content: "old stone castle"}}); n != 1 {
		t.Fatalf("Load returned %d, want 1", n)
	}

	res, err := e.Search(search.Query{Text: "house"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("term from the previous generation still matches")
	}

	res, err = e.Search(search.Query{Text: "castle"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Documents[0].ID != "c" {
		t.Errorf("new generation not searchable: %+v", res)
	}

	if got := e.Stats().TotalDocuments; got != 1 {
		t.Errorf("TotalDocuments = %d, want 1", got)
	}
}

func TestClearResetsEverything(t *testing.T) {
	e := loaded(twoDocCorpus())
	e.Clear()

	res, err := e.Search(search.Query{Text: "house"})
	if err != nil {
		t.Fatalf("search after clear errored: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("search after clear matched %d", res.Total)
	}

	stats := e.Stats()
	if stats.TotalDocuments != 0 || stats.TotalDistinctTerms != 0 ||
		stats.AvgDocumentLength != 0 || stats.CategoryCount != 0 || stats.TagCount != 0 {
		t.Errorf("stats after clear = %+v, want zeros", stats)
	}
}

func TestStats(t *testing.T) {
	e := loaded(twoDocCorpus())

	got := e.Stats()
	want := search.Stats{
		TotalDocuments:     2,
		TotalDistinctTerms: 11,
		AvgDocumentLength:  8.5,
		CategoryCount:      2,
		TagCount:           2,
	}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestSearchDoesNotMutateStore(t *testing.T) {
	e := loaded(towerCorpus())

	first, err := e.Search(search.Query{Text: "tower", Boosts: map[string]float64{"keep": 3}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := e.Search(search.Query{Text: "tower", Boosts: map[string]float64{"keep": 3}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Documents[0].Score != second.Documents[0].Score {
		t.Errorf("scores drifted between identical searches: %v then %v",
			first.Documents[0].Score, second.Documents[0].Score)
	}
}

func ids(docs []search.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
