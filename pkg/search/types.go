// Package search defines the document, query, and result types shared by
// the ranking engine, the HTTP API, and the internal RPC layer.
//
// All types are hand-written with JSON struct tags so the same shapes serve
// both transports (see pkg/rpc for the JSON-over-TCP layer). Pointer fields
// on Query distinguish "absent" from an explicit zero value.
package search

// ---------- Documents ----------

// Document is a searchable unit. Score is an output field: the engine
// overwrites it with the computed rank score on returned copies and never
// reads it as a ranking input.
type Document struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Tags     []string          `json:"tags,omitempty"`
	Category string            `json:"category,omitempty"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IndexableText returns the text the engine tokenizes for this document:
// title, content, and tags joined by single spaces. Category is not part
// of the indexed text; it is matched through filters instead.
func (d Document) IndexableText() string {
	text := d.Title + " " + d.Content
	for _, tag := range d.Tags {
		text += " " + tag
	}
	return text
}

// ---------- Queries ----------

// Query is the input to a search. Limit, Offset, and FuzzyDistance are
// pointers so callers can omit them and receive the engine defaults.
//
// Boosts maps boost keys to multiplicative factors. The key "title" boosts
// documents whose title contains the query text; every other key is matched
// against a document's category value and tag values, compounding once per
// match in title, category, tag order.
type Query struct {
	Text          string             `json:"query"`
	Filters       *Filters           `json:"filters,omitempty"`
	Limit         *int               `json:"limit,omitempty"`
	Offset        *int               `json:"offset,omitempty"`
	Boosts        map[string]float64 `json:"boost_fields,omitempty"`
	Fuzzy         bool               `json:"fuzzy,omitempty"`
	FuzzyDistance *int               `json:"fuzzy_distance,omitempty"`
}

// BoostTitle is the reserved Boosts key for title matching.
const BoostTitle = "title"

// Filters restricts the candidate set. Within a dimension the listed values
// are OR-ed; across dimensions the constraints are AND-ed. An empty or nil
// dimension places no constraint.
type Filters struct {
	Categories     []string   `json:"categories,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DateRange      *DateRange `json:"date_range,omitempty"`
	ScoreThreshold *float64   `json:"score_threshold,omitempty"`
}

// DateRange is accepted and validated (From must not exceed To) but does
// not restrict matching: documents carry no date field. It exists for wire
// compatibility with callers that send it.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ---------- Results ----------

// Result is the output of a search. Total is the match count before
// pagination; ElapsedMs measures the in-engine pipeline only.
type Result struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	ElapsedMs float64    `json:"elapsed_ms"`
	Facets    *Facets    `json:"facets,omitempty"`
}

// Facets holds per-value match counts over the full (pre-pagination)
// result set. Present only when the query carried filters. Map keys are
// serialized in sorted order by encoding/json, so output is deterministic.
type Facets struct {
	Categories map[string]int `json:"categories"`
	Tags       map[string]int `json:"tags"`
}

// Stats summarizes the current index contents.
type Stats struct {
	TotalDocuments     int     `json:"total_documents"`
	TotalDistinctTerms int     `json:"total_distinct_terms"`
	AvgDocumentLength  float64 `json:"avg_document_length"`
	CategoryCount      int     `json:"category_count"`
	TagCount           int     `json:"tag_count"`
}

// BatchHit is one scored document in a batch-score result list.
type BatchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// BatchQueryResult holds the ranked hits for one query of a batch,
// in the same position as the query appeared in the request.
type BatchQueryResult struct {
	Query string     `json:"query"`
	Hits  []BatchHit `json:"hits"`
}

// ---------- Service ----------

// LoadRequest replaces the entire corpus with the given documents.
type LoadRequest struct {
	Documents []Document `json:"documents"`
}

// LoadResponse reports the outcome of a corpus load.
type LoadResponse struct {
	Indexed   int     `json:"indexed"`
	ElapsedMs float64 `json:"elapsed_ms"`
}

// BatchScoreRequest scores each query against the corpus independently.
type BatchScoreRequest struct {
	Queries []string `json:"queries"`
}

// BatchScoreResponse carries one result list per request query, in order.
type BatchScoreResponse struct {
	Results []BatchQueryResult `json:"results"`
}

// SuggestResponse carries autocomplete candidates, best first.
type SuggestResponse struct {
	Prefix      string   `json:"prefix"`
	Suggestions []string `json:"suggestions"`
}
