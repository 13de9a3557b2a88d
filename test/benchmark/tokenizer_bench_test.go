package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/proplex/searchd/internal/index/tokenizer"
)

// benchTexts covers the tokenizer's interesting regimes: a sentence, a
// paragraph, and a document long enough to dominate any per-call overhead.
var benchTexts = []struct {
	name string
	text string
}{
	{"short", "The quick brown fox jumps over the lazy dog"},
	{"medium", `Full-text search engines tokenize documents into normalized terms
        before indexing. Each term maps to the set of documents containing it,
        and BM25 ranking weighs term frequency against document length so that
        short focused documents are not drowned out by long ones. Fuzzy
        expansion widens recall by admitting terms within a bounded edit
        distance of the query.`},
	{"long", strings.Repeat(`Information retrieval systems form the backbone of modern search
        infrastructure. These systems combine tokenization and normalization to turn
        text into searchable terms. The inverted index maps each term to the documents
        containing it. BM25 ranking considers term frequency, document length
        normalization, and inverse document frequency to produce relevance scores.
        Caching layers reduce latency for repeated queries while circuit breakers
        protect against cascade failures. `, 20)},
}

// BenchmarkTokenize measures single-goroutine tokenization throughput.
func BenchmarkTokenize(b *testing.B) {
	for _, tc := range benchTexts {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(tc.text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(tc.text)
			}
		})
	}
}

// BenchmarkTokenizeParallel checks that Tokenize scales across goroutines,
// since every search request tokenizes its query on the hot path.
func BenchmarkTokenizeParallel(b *testing.B) {
	text := benchTexts[1].text
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tokenizer.Tokenize(text)
		}
	})
}

// BenchmarkTokenizeMixed measures the cost of case folding and separator
// handling on text that is heavy on punctuation and non-ASCII letters.
func BenchmarkTokenizeMixed(b *testing.B) {
	text := `Ö53-Straße: "Čafé" floor_2, ROOM#17; naïve+modèle (работа), done!`
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = tokenizer.Tokenize(text)
	}
}

// BenchmarkTokenizeVaryingSize plots throughput against input size to spot
// superlinear behaviour in the scanner.
func BenchmarkTokenizeVaryingSize(b *testing.B) {
	baseWord := "ranked search index tokenizer pipeline "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(text)
			}
		})
	}
}
