// Package docstore owns the canonical document records for one load
// generation. Internal ids are dense, zero-based, and equal to the
// document's position in the loaded sequence; every other index structure
// references documents only through these ids.
package docstore

import "github.com/proplex/searchd/pkg/search"

type Store struct {
	docs       []search.Document
	byExternal map[string]uint32
}

func New() *Store {
	return &Store{byExternal: make(map[string]uint32)}
}

// Replace swaps in a new corpus. Ids are assigned by position; if two
// documents share an external id the later position wins the external
// lookup while both remain retrievable by internal id.
func (s *Store) Replace(docs []search.Document) {
	s.docs = docs
	s.byExternal = make(map[string]uint32, len(docs))
	for i, doc := range docs {
		s.byExternal[doc.ID] = uint32(i)
	}
}

// Get returns a copy of the document at the internal id. Slice and map
// fields alias the stored document; callers treat them as read-only.
func (s *Store) Get(id uint32) (search.Document, bool) {
	if int(id) >= len(s.docs) {
		return search.Document{}, false
	}
	return s.docs[id], true
}

// InternalID resolves an external document id.
func (s *Store) InternalID(external string) (uint32, bool) {
	id, ok := s.byExternal[external]
	return id, ok
}

func (s *Store) Len() int {
	return len(s.docs)
}

// All exposes the corpus in internal-id order for iteration. Callers must
// not mutate the returned slice or its elements.
func (s *Store) All() []search.Document {
	return s.docs
}

func (s *Store) Clear() {
	s.docs = nil
	s.byExternal = make(map[string]uint32)
}
