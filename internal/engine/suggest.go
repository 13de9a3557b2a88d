package engine

import (
	"container/heap"
	"strings"
)

// Suggest returns up to limit indexed terms starting with prefix,
// case-insensitive, ranked by the number of documents containing each
// term, most first; ties order lexicographically. An empty prefix ranks
// the entire vocabulary. A non-positive limit falls back to the
// configured default.
func (e *Engine) Suggest(prefix string, limit int) []string {
	if limit <= 0 {
		limit = e.cfg.SuggestLimit
	}
	prefix = strings.ToLower(prefix)

	// Bounded min-heap: the worst surviving candidate sits at the root
	// and is evicted as better terms arrive.
	h := &termHeap{}
	heap.Init(h)
	for term, docs := range e.inv.Terms() {
		if !strings.HasPrefix(term, prefix) {
			continue
		}
		heap.Push(h, termCount{term: term, docs: docs})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}

	out := make([]string, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(termCount).term
	}
	return out
}

type termCount struct {
	term string
	docs int
}

type termHeap []termCount

func (h termHeap) Len() int { return len(h) }

func (h termHeap) Less(i, j int) bool {
	if h[i].docs != h[j].docs {
		return h[i].docs < h[j].docs
	}
	return h[i].term > h[j].term
}

func (h termHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *termHeap) Push(x interface{}) {
	*h = append(*h, x.(termCount))
}

func (h *termHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
