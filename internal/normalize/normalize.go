// Package normalize implements text folding, alias generation and the
// similarity scoring used by the local-first resolver.
//
// Normalization lowercases, strips accents via canonical decomposition,
// collapses every run of non-alphanumeric characters to a single space and
// trims. Aliases add spelling variants (space-removed, duplicate-collapsed,
// vowel-stripped, phonetic substitutions) so that queries like "metalica"
// still land on "Metallica".
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical lookup form of s: lowercased, accents
// stripped, non-alphanumeric runs collapsed to single spaces. Idempotent.
func Normalize(s string) string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// phoneticSubs are applied in order; each result is re-collapsed and
// vowel-stripped to widen the alias net.
var phoneticSubs = [][2]string{
	{"ph", "f"},
	{"ck", "k"},
	{"qu", "k"},
	{"kk", "k"},
	{"sch", "sh"},
	{"sh", "s"},
	{"y", "i"},
}

// GenerateAliases returns the normalized form of name plus spelling variants.
// The result always contains Normalize(name); duplicates are removed and
// order is deterministic.
func GenerateAliases(name string) []string {
	base := Normalize(name)
	if base == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(base)
	add(strings.ReplaceAll(base, " ", ""))
	add(collapseRuns(base))
	add(stripVowels(collapseRuns(base)))

	variant := base
	for _, sub := range phoneticSubs {
		variant = strings.ReplaceAll(variant, sub[0], sub[1])
		add(variant)
		add(collapseRuns(variant))
		add(stripVowels(collapseRuns(variant)))
	}

	return out
}

// collapseRuns squeezes consecutive duplicate letters: "metallica" → "metalica".
func collapseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r != prev {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

// stripVowels removes vowels except a leading one: "metalica" → "mtlc".
func stripVowels(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if i > 0 && strings.ContainsRune("aeiou", r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// stopWords are ignored when counting meaningful shared tokens.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"de": true, "del": true, "la": true, "el": true, "los": true, "las": true,
	"y": true,
}

// Tokens splits a normalized string into tokens.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// MeaningfulTokens returns tokens of length ≥ 3 that are not stop words.
func MeaningfulTokens(s string) []string {
	var out []string
	for _, tok := range Tokens(s) {
		if len(tok) >= 3 && !stopWords[tok] {
			out = append(out, tok)
		}
	}
	return out
}
