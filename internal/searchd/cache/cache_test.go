package cache

import (
	"testing"

	"github.com/proplex/searchd/pkg/config"
	"github.com/proplex/searchd/pkg/search"
)

func intp(v int) *int { return &v }

func f64p(v float64) *float64 { return &v }

func TestCanonicalIgnoresValueOrder(t *testing.T) {
	a := search.Query{
		Text: "Rust Guide",
		Filters: &search.Filters{
			Categories: []string{"books", "articles"},
			Tags:       []string{"beta", "alpha"},
		},
		Boosts: map[string]float64{"title": 2, "books": 1.5},
	}
	b := search.Query{
		Text: "rust guide",
		Filters: &search.Filters{
			Categories: []string{"articles", "books"},
			Tags:       []string{"alpha", "beta"},
		},
		Boosts: map[string]float64{"books": 1.5, "title": 2},
	}
	if Canonical(a) != Canonical(b) {
		t.Fatalf("equivalent queries canonicalize differently:\n%s\n%s", Canonical(a), Canonical(b))
	}
}

func TestCanonicalDistinguishesQueries(t *testing.T) {
	base := search.Query{Text: "rust"}
	variants := []search.Query{
		{Text: "rust", Limit: intp(5)},
		{Text: "rust", Offset: intp(10)},
		{Text: "rust", Fuzzy: true},
		{Text: "rust", Fuzzy: true, FuzzyDistance: intp(1)},
		{Text: "rust", Filters: &search.Filters{Categories: []string{"books"}}},
		{Text: "rust", Filters: &search.Filters{ScoreThreshold: f64p(0.5)}},
		{Text: "rust", Boosts: map[string]float64{"title": 2}},
		{Text: "go"},
	}
	seen := map[string]bool{Canonical(base): true}
	for _, v := range variants {
		key := Canonical(v)
		if seen[key] {
			t.Fatalf("query %+v collides with a previous canonical form %q", v, key)
		}
		seen[key] = true
	}
}

func TestCanonicalFuzzyDistanceOnlyWithFuzzy(t *testing.T) {
	// Distance without the fuzzy flag does not alter matching, so it must
	// not fragment the cache.
	plain := search.Query{Text: "rust"}
	withDist := search.Query{Text: "rust", FuzzyDistance: intp(2)}
	if Canonical(plain) != Canonical(withDist) {
		t.Fatal("fuzzy distance should be ignored when fuzzy is off")
	}
}

func TestStatsStartAtZero(t *testing.T) {
	c := New(nil, config.CacheConfig{}, nil)
	hits, misses := c.Stats()
	if hits != 0 || misses != 0 {
		t.Fatalf("fresh cache should have zero counters, got hits=%d misses=%d", hits, misses)
	}
}
