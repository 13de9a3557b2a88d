// Package fuzzy implements the edit-distance primitive behind fuzzy term
// matching.
package fuzzy

import "unicode/utf8"

// Distance returns the Levenshtein distance between a and b: the minimum
// number of single-rune insertions, deletions, and substitutions turning
// one into the other. It operates on runes, not bytes, so multi-byte
// characters count as single edits. Symmetric, non-negative, zero iff the
// strings are equal.
//
// Classic row-swap dynamic program: O(len(a)*len(b)) time and one row of
// O(min(len(a), len(b))) ints.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	// Keep the row sized by the shorter string.
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cur := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return row[len(rb)]
}

// WithinDistance reports whether Distance(a, b) <= max. The rune-length
// difference is checked first so fuzzy index scans can reject most
// candidates without running the full dynamic program.
func WithinDistance(a, b string, max int) bool {
	if max < 0 {
		return false
	}
	diff := utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return false
	}
	return Distance(a, b) <= max
}
