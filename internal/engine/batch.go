package engine

import (
	"sort"

	"github.com/proplex/searchd/internal/index/tokenizer"
	"github.com/proplex/searchd/pkg/search"
)

// BatchScore ranks every query independently against the corpus: exact
// term matching only, BM25 with the engine parameters, no fuzzy
// expansion, filters, boosts, or pagination. Output preserves request
// order; each hit list sorts by score descending with internal-id order
// breaking ties.
func (e *Engine) BatchScore(queries []string) []search.BatchQueryResult {
	results := make([]search.BatchQueryResult, 0, len(queries))
	for _, q := range queries {
		terms := tokenizer.Tokenize(q)
		hits := []search.BatchHit{}
		if len(terms) > 0 {
			candidates := e.inv.Candidates(terms, false, 0)
			it := candidates.Iterator()
			for it.HasNext() {
				id := it.Next()
				doc, ok := e.store.Get(id)
				if !ok {
					continue
				}
				hits = append(hits, search.BatchHit{
					ID:    doc.ID,
					Score: e.inv.Score(id, terms, e.cfg.K1, e.cfg.B),
				})
			}
			// The bitmap iterates ids ascending, so a stable sort keeps
			// that order within equal scores.
			sort.SliceStable(hits, func(i, j int) bool {
				return hits[i].Score > hits[j].Score
			})
		}
		results = append(results, search.BatchQueryResult{Query: q, Hits: hits})
	}
	return results
}
