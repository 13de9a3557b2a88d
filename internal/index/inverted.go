// Package index implements the in-memory inverted index, attribute
// indexes, and BM25 scoring that back the search engine.
//
// The structures here are not safe for concurrent use. The engine that
// owns them is single-threaded by contract; callers that share an engine
// across goroutines serialize access at the service layer.
package index

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/proplex/searchd/internal/index/fuzzy"
	"github.com/proplex/searchd/internal/index/tokenizer"
)

// Inverted maps terms to the documents containing them. Postings are
// roaring bitmaps of internal doc ids; term frequencies live in a parallel
// table keyed by term then id. Document lengths are kept in a dense slice
// indexed by internal id, padded with zero-length slots when ids arrive
// out of order, so the slice length doubles as the document count.
type Inverted struct {
	postings    map[string]*roaring.Bitmap
	freqs       map[string]map[uint32]int
	docLengths  []int
	totalTokens int
}

func NewInverted() *Inverted {
	return &Inverted{
		postings: make(map[string]*roaring.Bitmap),
		freqs:    make(map[string]map[uint32]int),
	}
}

// Add tokenizes text and indexes it under the internal id. The document
// length recorded is the total token count, duplicates included. Adding
// the same id again overwrites its length and layers new term entries on
// top of the old ones; callers that need replacement semantics rebuild
// the index instead.
func (ix *Inverted) Add(id uint32, text string) {
	tokens := tokenizer.Tokenize(text)

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	for term, count := range freq {
		bm, ok := ix.postings[term]
		if !ok {
			bm = roaring.New()
			ix.postings[term] = bm
		}
		bm.Add(id)

		tf, ok := ix.freqs[term]
		if !ok {
			tf = make(map[uint32]int)
			ix.freqs[term] = tf
		}
		tf[id] = count
	}

	for int(id) >= len(ix.docLengths) {
		ix.docLengths = append(ix.docLengths, 0)
	}
	ix.totalTokens -= ix.docLengths[id]
	ix.docLengths[id] = len(tokens)
	ix.totalTokens += len(tokens)
}

// Candidates returns the union of postings for every query term, OR
// semantics across terms. With fuzzy enabled, each query term also pulls
// in the postings of every indexed term within maxDistance edits. The
// fuzzy scan walks the whole vocabulary per query term; that is the
// documented cost of fuzzy mode. The returned bitmap is owned by the
// caller.
func (ix *Inverted) Candidates(queryTerms []string, fuzzy bool, maxDistance int) *roaring.Bitmap {
	out := roaring.New()
	for _, term := range queryTerms {
		if bm, ok := ix.postings[term]; ok {
			out.Or(bm)
		}
		if fuzzy {
			ix.orFuzzy(out, term, maxDistance)
		}
	}
	return out
}

func (ix *Inverted) orFuzzy(out *roaring.Bitmap, queryTerm string, maxDistance int) {
	for term, bm := range ix.postings {
		if term == queryTerm {
			continue
		}
		if fuzzy.WithinDistance(queryTerm, term, maxDistance) {
			out.Or(bm)
		}
	}
}

// Terms iterates over every indexed term and the number of distinct
// documents containing it. Iteration order is map order; callers that
// need determinism sort what they collect.
func (ix *Inverted) Terms() iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		for term, bm := range ix.postings {
			if !yield(term, int(bm.GetCardinality())) {
				return
			}
		}
	}
}

// DocCount is the length-table size: real documents plus any padding
// slots created by sparse ids.
func (ix *Inverted) DocCount() int {
	return len(ix.docLengths)
}

func (ix *Inverted) TermCount() int {
	return len(ix.postings)
}

func (ix *Inverted) DocLength(id uint32) int {
	if int(id) >= len(ix.docLengths) {
		return 0
	}
	return ix.docLengths[id]
}

func (ix *Inverted) AvgDocLength() float64 {
	if len(ix.docLengths) == 0 {
		return 0
	}
	return float64(ix.totalTokens) / float64(len(ix.docLengths))
}

func (ix *Inverted) Clear() {
	ix.postings = make(map[string]*roaring.Bitmap)
	ix.freqs = make(map[string]map[uint32]int)
	ix.docLengths = nil
	ix.totalTokens = 0
}
