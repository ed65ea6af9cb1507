package search

import "strings"

// genreKeywords is a small keyword table mapping a canonical genre to the
// substrings that identify it in provider tags. Queries that name one of
// these genres gate tag-top enrichment to on-genre artists.
var genreKeywords = map[string][]string{
	"rock":       {"rock", "grunge", "punk"},
	"metal":      {"metal", "core", "thrash", "doom"},
	"pop":        {"pop", "synth"},
	"hip hop":    {"hip hop", "hip-hop", "rap", "drill", "trap"},
	"electronic": {"electronic", "house", "techno", "edm", "dubstep", "trance", "idm", "dance"},
	"jazz":       {"jazz", "bebop", "swing"},
	"country":    {"country", "bluegrass", "americana"},
	"latin":      {"latin", "reggaeton", "salsa", "cumbia", "bachata"},
	"r&b":        {"r&b", "rnb", "soul", "funk"},
	"indie":      {"indie", "alternative", "shoegaze", "lo-fi"},
	"folk":       {"folk", "acoustic", "singer-songwriter"},
	"classical":  {"classical", "orchestra", "baroque", "piano"},
	"reggae":     {"reggae", "dub", "ska", "dancehall"},
}

// queryGenre returns the canonical genre a query names, or "" when the
// query is not a genre term.
func queryGenre(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return ""
	}
	if _, ok := genreKeywords[q]; ok {
		return q
	}
	for genre, keywords := range genreKeywords {
		for _, kw := range keywords {
			if q == kw {
				return genre
			}
		}
	}
	return ""
}

// onGenre reports whether an artist's tags fit the genre. Artists with no
// tags pass; the filter only drops positively off-genre results.
func onGenre(artistGenres []string, genre string) bool {
	if genre == "" || len(artistGenres) == 0 {
		return true
	}
	keywords := genreKeywords[genre]
	for _, tag := range artistGenres {
		tag = strings.ToLower(tag)
		for _, kw := range keywords {
			if strings.Contains(tag, kw) {
				return true
			}
		}
	}
	return false
}
