package normalize

import "strings"

// TrigramSimilarity returns the Jaccard similarity of the character trigram
// sets of a and b. Inputs shorter than three runes are padded the way a
// trigram index pads, so short strings still compare sensibly.
func TrigramSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for g := range ta {
		if tb[g] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]bool {
	if s == "" {
		return nil
	}
	padded := "  " + s + " "
	runes := []rune(padded)
	out := make(map[string]bool, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = true
	}
	return out
}

// LCSRatio returns the length of the longest common subsequence of a and b
// divided by the length of the longer input.
func LCSRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	return float64(prev[len(rb)]) / float64(longer)
}

// Score combines trigram similarity and LCS ratio against a candidate's
// normalized alias, taking the higher of the two.
func Score(query, candidate string) float64 {
	q := Normalize(query)
	c := Normalize(candidate)
	tri := TrigramSimilarity(q, c)
	lcs := LCSRatio(q, c)
	if lcs > tri {
		return lcs
	}
	return tri
}

// confidence thresholds for local resolution.
const (
	confidentScore     = 0.3
	aggregateConfident = 0.78
)

// Confident reports whether candidate is a confident match for query: the
// combined score must reach the floor and the two must share meaningful
// tokens. Single-token queries need one shared token; multi-token queries
// need two, or an aggregate ratio of at least 0.78.
func Confident(query, candidate string) bool {
	score := Score(query, candidate)
	if score < confidentScore {
		return false
	}

	qTokens := MeaningfulTokens(query)
	cTokens := MeaningfulTokens(candidate)
	shared := SharedTokenCount(qTokens, cTokens)

	switch {
	case len(qTokens) <= 1:
		// Single meaningful token: one fuzzy token match suffices.
		return shared >= 1 || score >= aggregateConfident
	case shared >= 2:
		return true
	default:
		return score >= aggregateConfident
	}
}

// SharedTokenCount counts tokens of a that fuzzily appear in b. A token
// matches when equal, containing, or trigram-similar above 0.5.
func SharedTokenCount(a, b []string) int {
	count := 0
	for _, ta := range a {
		for _, tb := range b {
			if tokenMatch(ta, tb) {
				count++
				break
			}
		}
	}
	return count
}

func tokenMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 4 && len(b) >= 4 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	return TrigramSimilarity(a, b) >= 0.5
}

// TokenOverlapRatio returns the share of a's tokens that appear in b.
func TokenOverlapRatio(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(SharedTokenCount(a, b)) / float64(len(a))
}
