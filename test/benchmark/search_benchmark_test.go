package benchmark

import (
	"fmt"
	"testing"

	"github.com/proplex/searchd/internal/engine"
	"github.com/proplex/searchd/internal/searchd"
	"github.com/proplex/searchd/pkg/search"
)

func benchCorpus(n int) []search.Document {
	terms := []string{"house", "garden", "kitchen", "window", "river", "mountain", "harbor", "market"}
	categories := []string{"residential", "commercial", "landmark", "nature"}
	tags := []string{"north", "south", "east", "west", "old", "new"}

	docs := make([]search.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, search.Document{
			ID:    fmt.Sprintf("doc-%d", i),
			Title: fmt.Sprintf("%s near the %s", terms[i%len(terms)], terms[(i+1)%len(terms)]),
			Content: fmt.Sprintf("a %s with a view of the %s and the %s quarter",
				terms[i%len(terms)], terms[(i+3)%len(terms)], terms[(i+5)%len(terms)]),
			Category: categories[i%len(categories)],
			Tags:     []string{tags[i%len(tags)], tags[(i+2)%len(tags)]},
		})
	}
	return docs
}

// BenchmarkEngineLoad measures full index rebuild time at varying corpus
// sizes.
func BenchmarkEngineLoad(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			docs := benchCorpus(n)
			eng := engine.New(engine.DefaultConfig())
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				eng.Load(docs)
			}
		})
	}
}

// BenchmarkEngineSearch measures end-to-end pipeline latency for query
// shapes of varying complexity over 10 000 documents.
func BenchmarkEngineSearch(b *testing.B) {
	limit := 10
	offset := 500
	distance := 2
	threshold := 0.5

	queries := []struct {
		name  string
		query search.Query
	}{
		{"single_term", search.Query{Text: "house"}},
		{"multi_term", search.Query{Text: "house garden river market"}},
		{"fuzzy", search.Query{Text: "huose", Fuzzy: true, FuzzyDistance: &distance}},
		{"filtered", search.Query{Text: "house", Filters: &search.Filters{
			Categories: []string{"residential"},
			Tags:       []string{"north", "old"},
		}}},
		{"threshold", search.Query{Text: "house garden", Filters: &search.Filters{
			ScoreThreshold: &threshold,
		}}},
		{"boosted", search.Query{Text: "house", Boosts: map[string]float64{
			search.BoostTitle: 2.0,
			"residential":     1.5,
			"north":           1.2,
		}}},
		{"paginated", search.Query{Text: "house", Limit: &limit, Offset: &offset}},
	}

	eng := engine.New(engine.DefaultConfig())
	eng.Load(benchCorpus(10000))

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				result, err := eng.Search(q.query)
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkServiceSearchParallel measures concurrent read throughput through
// the service lock over 10 000 documents.
func BenchmarkServiceSearchParallel(b *testing.B) {
	svc := searchd.NewService(engine.DefaultConfig())
	svc.Load(benchCorpus(10000))
	q := search.Query{Text: "house garden"}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			result, err := svc.Search(q)
			if err != nil {
				b.Fatal(err)
			}
			_ = result
		}
	})
}

// BenchmarkEngineSuggest measures prefix completion over the vocabulary.
func BenchmarkEngineSuggest(b *testing.B) {
	eng := engine.New(engine.DefaultConfig())
	eng.Load(benchCorpus(10000))

	prefixes := []string{"h", "ga", "riv", ""}
	for _, prefix := range prefixes {
		name := prefix
		if name == "" {
			name = "all"
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				suggestions := eng.Suggest(prefix, 10)
				_ = suggestions
			}
		})
	}
}

// BenchmarkEngineBatchScore measures scoring a batch of queries in one call.
func BenchmarkEngineBatchScore(b *testing.B) {
	eng := engine.New(engine.DefaultConfig())
	eng.Load(benchCorpus(5000))

	queries := []string{
		"house", "garden view", "river market", "mountain harbor",
		"kitchen window", "house garden river", "market quarter", "window view",
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := eng.BatchScore(queries)
		_ = results
	}
}

// BenchmarkEngineChunks measures a full corpus traversal in export-sized
// chunks.
func BenchmarkEngineChunks(b *testing.B) {
	eng := engine.New(engine.DefaultConfig())
	eng.Load(benchCorpus(10000))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		total := 0
		for chunk := range eng.Chunks(500) {
			total += len(chunk)
		}
		_ = total
	}
}
