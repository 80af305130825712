// Package search implements the relevance ranking used by text queries.
//
// A query is decomposed into tokens: the whole query followed by each of its
// whitespace-separated words. Earlier tokens weigh more; with n tokens the
// token at index i has coefficient n-i.
//
// Each token is tested against a text five times, from strictest to
// loosest, and every passing test adds its weight times the token's
// coefficient:
//
//	test         raw   folded
//	exact        100   95
//	prefix        90   85
//	whole word    70   65
//	word prefix   50   45
//	substring     40   35
//
// The folded column applies to the diacritic-stripped copies of both the
// token and the text, so "Royàl" still finds "Royal" but ranks slightly
// below an exact-accent match. All tests are case-insensitive.
package search

// MatchType names one of the five tests a token goes through
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchPrefix     MatchType = "prefix"
	MatchWord       MatchType = "word"
	MatchWordPrefix MatchType = "word_prefix"
	MatchSubstring  MatchType = "substring"
)

// matchOrder is the order tests are evaluated and weighted in
var matchOrder = [...]MatchType{MatchExact, MatchPrefix, MatchWord, MatchWordPrefix, MatchSubstring}

// Weights holds one weight per MatchType, in matchOrder
type Weights [5]float64

var (
	// RawWeights apply to matches on the text as written
	RawWeights = Weights{100, 90, 70, 50, 40}

	// FoldedWeights apply to matches on diacritic-stripped text
	FoldedWeights = Weights{95, 85, 65, 45, 35}
)

// Token is one weighted piece of a query
type Token struct {
	Text   string
	Folded string
	Coef   float64
}

// Result is a ranked item with its relevance score
type Result[T any] struct {
	Item  T
	Score float64
}
