package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/proplex/searchd/internal/index/tokenizer"
	"github.com/proplex/searchd/pkg/errors"
	"github.com/proplex/searchd/pkg/search"
)

type scoredDoc struct {
	id    uint32
	score float64
}

// Search runs the full query pipeline. Stage order is fixed: match,
// filter, score, boost, threshold, sort, paginate, facet. An empty query
// text matches nothing; an empty corpus yields an empty result. The only
// errors are validation errors, returned before any work is done.
func (e *Engine) Search(q search.Query) (*search.Result, error) {
	start := time.Now()
	if err := validate(q); err != nil {
		return nil, err
	}

	limit := e.cfg.DefaultLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	offset := 0
	if q.Offset != nil {
		offset = *q.Offset
	}
	maxDistance := e.cfg.DefaultFuzzyDistance
	if q.FuzzyDistance != nil {
		maxDistance = *q.FuzzyDistance
	}

	terms := tokenizer.Tokenize(q.Text)

	var scored []scoredDoc
	if len(terms) > 0 {
		candidates := e.inv.Candidates(terms, q.Fuzzy, maxDistance)
		if q.Filters != nil {
			if bm := e.attrs.Filter(q.Filters.Categories, q.Filters.Tags); bm != nil {
				candidates.And(bm)
			}
		}

		// Scoring always uses the original query terms; fuzzy expansion
		// widens the candidate set only.
		scored = make([]scoredDoc, 0, candidates.GetCardinality())
		it := candidates.Iterator()
		for it.HasNext() {
			id := it.Next()
			s := e.inv.Score(id, terms, e.cfg.K1, e.cfg.B)
			scored = append(scored, scoredDoc{id: id, score: e.boost(id, s, q)})
		}

		if q.Filters != nil && q.Filters.ScoreThreshold != nil {
			scored = applyThreshold(scored, *q.Filters.ScoreThreshold)
		}

		sortByScore(scored)
	}

	total := len(scored)
	page := paginate(scored, offset, limit)

	docs := make([]search.Document, 0, len(page))
	for _, sd := range page {
		doc, ok := e.store.Get(sd.id)
		if !ok {
			continue
		}
		doc.Score = sd.score
		docs = append(docs, doc)
	}

	result := &search.Result{
		Documents: docs,
		Total:     total,
		ElapsedMs: float64(time.Since(start)) / float64(time.Millisecond),
	}
	if q.Filters != nil {
		result.Facets = e.facets(scored)
	}
	return result, nil
}

func validate(q search.Query) error {
	if q.Limit != nil && *q.Limit < 0 {
		return errors.InvalidQuery("limit must not be negative, got %d", *q.Limit)
	}
	if q.Offset != nil && *q.Offset < 0 {
		return errors.InvalidQuery("offset must not be negative, got %d", *q.Offset)
	}
	if q.FuzzyDistance != nil && *q.FuzzyDistance < 0 {
		return errors.InvalidQuery("fuzzy distance must not be negative, got %d", *q.FuzzyDistance)
	}
	if q.Filters != nil && q.Filters.DateRange != nil {
		dr := q.Filters.DateRange
		if dr.From != "" && dr.To != "" && dr.From > dr.To {
			return errors.InvalidQuery("date range from %q is after to %q", dr.From, dr.To)
		}
	}
	return nil
}

// boost multiplies the score by every matching boost factor: the reserved
// "title" key when the query text occurs in the title, then the key equal
// to the document's category, then the key equal to each tag in tag order.
func (e *Engine) boost(id uint32, score float64, q search.Query) float64 {
	if len(q.Boosts) == 0 {
		return score
	}
	doc, ok := e.store.Get(id)
	if !ok {
		return score
	}

	if factor, ok := q.Boosts[search.BoostTitle]; ok && titleMatches(doc.Title, q.Text) {
		score *= factor
	}
	if factor, ok := q.Boosts[doc.Category]; ok {
		score *= factor
	}
	for _, tag := range doc.Tags {
		if factor, ok := q.Boosts[tag]; ok {
			score *= factor
		}
	}
	return score
}

func titleMatches(title, queryText string) bool {
	qt := strings.TrimSpace(strings.ToLower(queryText))
	if qt == "" {
		return false
	}
	return strings.Contains(strings.ToLower(title), qt)
}

func applyThreshold(scored []scoredDoc, threshold float64) []scoredDoc {
	kept := scored[:0]
	for _, sd := range scored {
		if sd.score >= threshold {
			kept = append(kept, sd)
		}
	}
	return kept
}

func sortByScore(scored []scoredDoc) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		// Ties order by internal id so identical corpora rank identically.
		return scored[i].id < scored[j].id
	})
}

func paginate(scored []scoredDoc, offset, limit int) []scoredDoc {
	start := min(offset, len(scored))
	remaining := len(scored) - start
	if limit > remaining {
		limit = remaining
	}
	return scored[start : start+limit]
}

// facets counts category and tag occurrences over the post-threshold,
// pre-pagination result set. The empty category string counts like any
// other value.
func (e *Engine) facets(scored []scoredDoc) *search.Facets {
	f := &search.Facets{
		Categories: make(map[string]int),
		Tags:       make(map[string]int),
	}
	for _, sd := range scored {
		doc, ok := e.store.Get(sd.id)
		if !ok {
			continue
		}
		f.Categories[doc.Category]++
		for _, tag := range doc.Tags {
			f.Tags[tag]++
		}
	}
	return f
}
