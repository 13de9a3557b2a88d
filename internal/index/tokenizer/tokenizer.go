// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on non-alphanumeric boundaries. There is
// deliberately no stemming, stop-word removal, or de-duplication: downstream
// frequency counting needs every surviving token in original order.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into lowercase alphanumeric runs. Runs shorter than
// two bytes are dropped. The result preserves order and duplicates; callers
// count term frequencies from it. Never fails; empty or all-separator input
// yields a nil slice.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		tokens = append(tokens, word)
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}
