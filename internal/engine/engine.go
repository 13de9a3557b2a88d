// Package engine implements the query pipeline over the inverted index,
// attribute indexes, and document store: match, filter, score, boost,
// threshold, sort, paginate, facet.
//
// An Engine holds exactly one generation of loaded state and performs no
// locking or I/O of its own. It is not safe for concurrent use; the
// service layer serializes loads against queries with a read-write lock.
package engine

import (
	"github.com/proplex/searchd/internal/docstore"
	"github.com/proplex/searchd/internal/index"
	"github.com/proplex/searchd/pkg/search"
)

// Config carries the tunable engine parameters. Start from DefaultConfig;
// the zero value is usable but scores with k1 = b = 0.
type Config struct {
	K1                   float64
	B                    float64
	DefaultLimit         int
	DefaultFuzzyDistance int
	SuggestLimit         int
}

func DefaultConfig() Config {
	return Config{
		K1:                   index.DefaultK1,
		B:                    index.DefaultB,
		DefaultLimit:         10,
		DefaultFuzzyDistance: 2,
		SuggestLimit:         10,
	}
}

type Engine struct {
	cfg   Config
	inv   *index.Inverted
	attrs *index.Attributes
	store *docstore.Store
}

func New(cfg Config) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.DefaultFuzzyDistance < 0 {
		cfg.DefaultFuzzyDistance = 2
	}
	if cfg.SuggestLimit <= 0 {
		cfg.SuggestLimit = 10
	}
	return &Engine{
		cfg:   cfg,
		inv:   index.NewInverted(),
		attrs: index.NewAttributes(),
		store: docstore.New(),
	}
}

// Load replaces all engine state with the given corpus. Internal ids are
// assigned by position. The new structures are built aside and swapped in
// together, so a caller never observes a half-loaded generation. Returns
// the number of documents indexed.
func (e *Engine) Load(docs []search.Document) int {
	inv := index.NewInverted()
	attrs := index.NewAttributes()
	for i, doc := range docs {
		id := uint32(i)
		inv.Add(id, doc.IndexableText())
		attrs.Add(id, doc.Category, doc.Tags)
	}

	e.inv = inv
	e.attrs = attrs
	e.store.Replace(docs)
	return len(docs)
}

// Clear resets the engine to empty. Searches against a cleared engine
// return empty results, never errors.
func (e *Engine) Clear() {
	e.inv.Clear()
	e.attrs.Clear()
	e.store.Clear()
}

// Stats reports the current index contents.
func (e *Engine) Stats() search.Stats {
	return search.Stats{
		TotalDocuments:     e.store.Len(),
		TotalDistinctTerms: e.inv.TermCount(),
		AvgDocumentLength:  e.inv.AvgDocLength(),
		CategoryCount:      e.attrs.CategoryCount(),
		TagCount:           e.attrs.TagCount(),
	}
}
