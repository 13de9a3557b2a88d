package index

import "github.com/RoaringBitmap/roaring/v2"

// Attributes indexes documents by category and tag for filtering.
// Categories are single-valued per document; tags are multi-valued.
type Attributes struct {
	categories map[string]*roaring.Bitmap
	tags       map[string]*roaring.Bitmap
}

func NewAttributes() *Attributes {
	return &Attributes{
		categories: make(map[string]*roaring.Bitmap),
		tags:       make(map[string]*roaring.Bitmap),
	}
}

// Add records the document's category and tags verbatim. An empty
// category string is a bucket like any other.
func (a *Attributes) Add(id uint32, category string, tags []string) {
	a.bucket(a.categories, category).Add(id)
	for _, tag := range tags {
		a.bucket(a.tags, tag).Add(id)
	}
}

func (a *Attributes) bucket(m map[string]*roaring.Bitmap, key string) *roaring.Bitmap {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	return bm
}

// Filter builds the bitmap of documents satisfying the requested values:
// OR within each dimension, AND across dimensions. A nil return means no
// constraint was requested and the caller keeps its candidate set intact.
// Requests naming only unknown values produce an empty bitmap, which
// correctly empties the result.
func (a *Attributes) Filter(categories, tags []string) *roaring.Bitmap {
	var out *roaring.Bitmap
	if len(categories) > 0 {
		out = unionOf(a.categories, categories)
	}
	if len(tags) > 0 {
		tagged := unionOf(a.tags, tags)
		if out == nil {
			out = tagged
		} else {
			out.And(tagged)
		}
	}
	return out
}

func unionOf(buckets map[string]*roaring.Bitmap, keys []string) *roaring.Bitmap {
	out := roaring.New()
	for _, key := range keys {
		if bm, ok := buckets[key]; ok {
			out.Or(bm)
		}
	}
	return out
}

// CategoryCount is the number of distinct indexed categories.
func (a *Attributes) CategoryCount() int {
	return len(a.categories)
}

// TagCount is the number of distinct indexed tags.
func (a *Attributes) TagCount() int {
	return len(a.tags)
}

func (a *Attributes) Clear() {
	a.categories = make(map[string]*roaring.Bitmap)
	a.tags = make(map[string]*roaring.Bitmap)
}
