package engine

import (
	"iter"
	"slices"

	"github.com/proplex/searchd/pkg/search"
)

// Chunks returns a lazy, finite iterator over the loaded corpus in
// internal-id order, yielding slices of at most size documents. The
// sequence is restartable: ranging over it again starts from the
// beginning. It binds to the generation loaded at call time; a later
// reload does not disturb an iteration already handed out. A size below
// one is treated as one.
func (e *Engine) Chunks(size int) iter.Seq[[]search.Document] {
	if size < 1 {
		size = 1
	}
	return slices.Chunk(e.store.All(), size)
}
