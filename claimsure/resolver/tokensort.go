package resolver

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// TokenSortRatio is the default lexical scorer: fuzzywuzzy's
// token-sort similarity on a 0-100 scale. Case, punctuation, and word
// order do not affect the score.
type TokenSortRatio struct{}

var _ LexicalScorer = TokenSortRatio{}

func (TokenSortRatio) Ratio(query, candidate string) int {
	return fuzzy.TokenSortRatio(query, candidate)
}
