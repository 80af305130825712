package search

import (
	"regexp"
	"sort"
	"strings"
)

// wordBoundary matches what may sit on either side of a word. Letters are
// matched with \p{L} so accented words keep their boundaries.
const wordBoundary = `[^\p{L}\p{N}_]`

// Tokenize splits a query into the whole trimmed query plus each word,
// dropping empties, and assigns coefficients n-i.
func Tokenize(query string) []Token {
	whole := strings.TrimSpace(query)
	if whole == "" {
		return nil
	}

	texts := append([]string{whole}, strings.Fields(whole)...)
	tokens := make([]Token, 0, len(texts))
	for i, text := range texts {
		tokens = append(tokens, Token{
			Text:   text,
			Folded: Fold(text),
			Coef:   float64(len(texts) - i),
		})
	}
	return tokens
}

// patterns compiles the five tests for term, in matchOrder
func patterns(term string) [5]*regexp.Regexp {
	q := regexp.QuoteMeta(term)
	return [5]*regexp.Regexp{
		regexp.MustCompile(`(?i)^` + q + `$`),
		regexp.MustCompile(`(?i)^` + q),
		regexp.MustCompile(`(?i)(?:^|` + wordBoundary + `)` + q + `(?:$|` + wordBoundary + `)`),
		regexp.MustCompile(`(?i)(?:^|` + wordBoundary + `)` + q),
		regexp.MustCompile(`(?i)` + q),
	}
}

type matcher struct {
	token  Token
	raw    [5]*regexp.Regexp
	folded [5]*regexp.Regexp
}

// Scorer scores texts against one query. Build it once per query: the
// regular expressions are compiled up front.
type Scorer struct {
	matchers []matcher
}

// NewScorer compiles a scorer for query
func NewScorer(query string) *Scorer {
	tokens := Tokenize(query)
	s := &Scorer{matchers: make([]matcher, 0, len(tokens))}
	for _, token := range tokens {
		s.matchers = append(s.matchers, matcher{
			token:  token,
			raw:    patterns(token.Text),
			folded: patterns(token.Folded),
		})
	}
	return s
}

// Empty reports whether the query had no tokens
func (s *Scorer) Empty() bool {
	return len(s.matchers) == 0
}

// Score sums the weighted test results of every token over every text
func (s *Scorer) Score(texts ...string) float64 {
	total := 0.0
	for _, text := range texts {
		if text == "" {
			continue
		}
		folded := Fold(text)
		for _, m := range s.matchers {
			for i := range matchOrder {
				if m.raw[i].MatchString(text) {
					total += RawWeights[i] * m.token.Coef
				}
				if m.folded[i].MatchString(folded) {
					total += FoldedWeights[i] * m.token.Coef
				}
			}
		}
	}
	return total
}

// Matches lists which tests the text passes for the whole query, strictest
// first. Used to explain a ranking.
func (s *Scorer) Matches(text string) []MatchType {
	if len(s.matchers) == 0 {
		return nil
	}
	m := s.matchers[0]
	folded := Fold(text)
	var out []MatchType
	for i, mt := range matchOrder {
		if m.raw[i].MatchString(text) || m.folded[i].MatchString(folded) {
			out = append(out, mt)
		}
	}
	return out
}

// Score is a convenience wrapper scoring texts against query
func Score(query string, texts ...string) float64 {
	return NewScorer(query).Score(texts...)
}

// Rank scores every item, drops those scoring zero and orders the rest by
// descending score. Ties keep their input order.
func Rank[T any](items []T, query string, texts func(T) []string) []Result[T] {
	scorer := NewScorer(query)
	results := make([]Result[T], 0, len(items))
	if scorer.Empty() {
		return results
	}

	for _, item := range items {
		score := scorer.Score(texts(item)...)
		if score == 0 {
			continue
		}
		results = append(results, Result[T]{Item: item, Score: score})
	}

	// Sort by score (highest first)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Highlight wraps every case-insensitive occurrence of the query's words in
// text with the given markers. Markers default to "**".
func Highlight(text, query, startMarker, endMarker string) string {
	if startMarker == "" {
		startMarker = "**"
	}
	if endMarker == "" {
		endMarker = "**"
	}

	words := strings.Fields(query)
	if len(words) == 0 {
		return text
	}

	// Longest first so "royale" wins over "royal" in the alternation
	sort.SliceStable(words, func(i, j int) bool {
		return len(words[i]) > len(words[j])
	})
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}

	re := regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
	return re.ReplaceAllStringFunc(text, func(match string) string {
		return startMarker + match + endMarker
	})
}
