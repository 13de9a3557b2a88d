package index

import "math"

// Okapi BM25 defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Score computes the BM25 score of one document against the query terms.
// Terms absent from the document contribute zero, so a document sharing no
// terms with the query scores exactly 0. Duplicate query terms contribute
// once per occurrence. An empty index or zero average length yields 0
// rather than NaN.
func (ix *Inverted) Score(id uint32, queryTerms []string, k1, b float64) float64 {
	totalDocs := float64(len(ix.docLengths))
	avgLen := ix.AvgDocLength()
	if totalDocs == 0 || avgLen == 0 {
		return 0
	}

	docLen := float64(ix.DocLength(id))
	var score float64
	for _, term := range queryTerms {
		tf, ok := ix.freqs[term]
		if !ok {
			continue
		}
		count, ok := tf[id]
		if !ok {
			continue
		}
		docFreq := float64(len(tf))
		score += computeIDF(totalDocs, docFreq) * computeTFNorm(float64(count), docLen, avgLen, k1, b)
	}
	return score
}

// computeIDF is the unsmoothed Okapi form: zero when a term appears in
// exactly half the corpus, negative beyond that. Neither case is clamped.
func computeIDF(totalDocs, docFreq float64) float64 {
	return math.Log((totalDocs - docFreq + 0.5) / (docFreq + 0.5))
}

func computeTFNorm(termFreq, docLength, avgDocLength, k1, b float64) float64 {
	lengthRatio := docLength / avgDocLength
	return (termFreq * (k1 + 1)) / (termFreq + k1*(1-b+b*lengthRatio))
}
