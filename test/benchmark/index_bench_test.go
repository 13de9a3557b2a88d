// Package benchmark contains Go benchmarks for the tokenizer, inverted
// index, and search pipeline, measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/proplex/searchd/internal/index"
	"github.com/proplex/searchd/internal/index/fuzzy"
)

// BenchmarkInvertedAdd measures per-document insert throughput into the
// inverted index.
func BenchmarkInvertedAdd(b *testing.B) {
	ix := index.NewInverted()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Add(uint32(i), "benchmark document with several recurring terms for measuring raw indexing throughput of the postings layer")
	}
}

func buildIndex(n int) *index.Inverted {
	terms := []string{"house", "garden", "river", "market", "castle", "bridge", "forest", "harbor"}
	ix := index.NewInverted()
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("%s %s document about the %s near the old %s",
			terms[i%len(terms)], terms[(i+1)%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		ix.Add(uint32(i), text)
	}
	return ix
}

// BenchmarkInvertedCandidates measures exact candidate collection over
// posting-list unions of increasing size.
func BenchmarkInvertedCandidates(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			ix := buildIndex(n)
			queryTerms := []string{"house", "garden"}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				candidates := ix.Candidates(queryTerms, false, 0)
				_ = candidates
			}
		})
	}
}

// BenchmarkInvertedCandidatesFuzzy measures the cost of edit-distance
// expansion across the whole vocabulary.
func BenchmarkInvertedCandidatesFuzzy(b *testing.B) {
	ix := buildIndex(10000)
	queryTerms := []string{"huose"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		candidates := ix.Candidates(queryTerms, true, 2)
		_ = candidates
	}
}

// BenchmarkBM25Score measures per-document scoring at different corpus sizes.
func BenchmarkBM25Score(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			ix := buildIndex(n)
			queryTerms := []string{"house", "garden", "river"}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				score := ix.Score(uint32(i%n), queryTerms, index.DefaultK1, index.DefaultB)
				_ = score
			}
		})
	}
}

// BenchmarkAttributesFilter measures bitmap filtering across category and
// tag buckets.
func BenchmarkAttributesFilter(b *testing.B) {
	categories := []string{"residential", "commercial", "landmark", "nature"}
	tags := []string{"north", "south", "east", "west"}
	attrs := index.NewAttributes()
	for i := 0; i < 10000; i++ {
		attrs.Add(uint32(i), categories[i%len(categories)], []string{tags[i%len(tags)], tags[(i+1)%len(tags)]})
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filtered := attrs.Filter([]string{"residential", "landmark"}, []string{"north"})
		_ = filtered
	}
}

// BenchmarkLevenshtein measures edit-distance computation for word pairs of
// varying length.
func BenchmarkLevenshtein(b *testing.B) {
	pairs := []struct {
		name string
		a, b string
	}{
		{"short", "house", "huose"},
		{"medium", "tokenization", "tokenisation"},
		{"long", "internationalization", "internationalisation"},
		{"disjoint", "kitchen", "mountain"},
	}
	for _, pair := range pairs {
		b.Run(pair.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				d := fuzzy.Distance(pair.a, pair.b)
				_ = d
			}
		})
	}
}

// BenchmarkLevenshteinWithinDistance measures the bounded check used during
// fuzzy expansion, which can exit early on length differences.
func BenchmarkLevenshteinWithinDistance(b *testing.B) {
	vocabulary := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		vocabulary = append(vocabulary, fmt.Sprintf("term%d", i))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		matches := 0
		for _, term := range vocabulary {
			if fuzzy.WithinDistance("term42", term, 2) {
				matches++
			}
		}
		_ = matches
	}
}
