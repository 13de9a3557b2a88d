// Package searchd hosts the query service: a concurrency-safe wrapper around
// the ranking engine plus the HTTP and RPC surfaces that expose it.
package searchd

import (
	"sync"

	"github.com/proplex/searchd/internal/engine"
	"github.com/proplex/searchd/pkg/search"
)

// Service guards a single engine with a readers-writer lock. Queries,
// suggestions, batch scoring, and stats take the read lock and run
// concurrently; Load and Clear take the write lock and are exclusive.
type Service struct {
	mu  sync.RWMutex
	eng *engine.Engine
}

// NewService creates a Service around a fresh engine.
func NewService(cfg engine.Config) *Service {
	return &Service{eng: engine.New(cfg)}
}

// Search runs a query against the current index generation.
func (s *Service) Search(q search.Query) (*search.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.Search(q)
}

// Suggest returns autocomplete candidates for the given prefix.
func (s *Service) Suggest(prefix string, limit int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.Suggest(prefix, limit)
}

// BatchScore scores each query independently against the corpus.
func (s *Service) BatchScore(queries []string) []search.BatchQueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.BatchScore(queries)
}

// Stats reports the current index statistics.
func (s *Service) Stats() search.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.Stats()
}

// Load replaces the whole corpus and returns the number of documents
// indexed. In-flight readers finish against the old generation first.
func (s *Service) Load(docs []search.Document) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Load(docs)
}

// Clear empties the index and document store.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng.Clear()
}

// Export walks the corpus in chunks of the given size, invoking fn for each
// chunk. The read lock is held for the whole traversal so the snapshot is
// consistent. Traversal stops at the first error from fn.
func (s *Service) Export(size int, fn func(chunk []search.Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for chunk := range s.eng.Chunks(size) {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}
