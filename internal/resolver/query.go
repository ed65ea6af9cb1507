package resolver

import (
	"sort"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
)

// noiseTokens are stripped from titles before token-overlap scoring. They
// carry no identity: every upload slaps some subset of these on.
var noiseTokens = map[string]bool{
	"official": true, "video": true, "music": true, "audio": true,
	"lyric": true, "lyrics": true, "hd": true, "hq": true, "4k": true,
	"remastered": true, "remaster": true, "live": true, "remix": true,
	"topic": true, "records": true, "visualizer": true, "premiere": true,
	"explicit": true, "clean": true, "full": true, "version": true,
}

// candidate passing thresholds and ranking bonuses
const (
	passTokenRatio = 0.6
	passFuzzy      = 0.6
	bonusPhrase    = 30.0
	bonusOfficial  = 10.0
	bonusVevo      = 8.0
	bonusMusicHint = 6.0
)

// BuildQueries returns the search queries for a track, most specific first.
// The album form is skipped when no album name is known.
func BuildQueries(artist, track, album string) []string {
	artist = strings.TrimSpace(artist)
	track = strings.TrimSpace(track)
	album = strings.TrimSpace(album)

	var queries []string
	if album != "" {
		queries = append(queries, artist+" "+track+" "+album+" official video")
	}
	queries = append(queries,
		artist+" "+track+" official video",
		artist+" "+track,
	)
	return queries
}

func stripNoise(tokens []string) []string {
	kept := tokens[:0:0]
	for _, tok := range tokens {
		if !noiseTokens[tok] {
			kept = append(kept, tok)
		}
	}
	return kept
}

// Candidate is a scored video search result.
type Candidate struct {
	Video models.Video
	Score float64
}

// scoreCandidate evaluates one search result against the target track.
// A candidate passes when its stripped title covers at least 60% of the
// track tokens or is fuzzily at least 60% similar to the track name.
func scoreCandidate(v models.Video, artist, track string) (float64, bool) {
	normTitle := normalize.Normalize(v.Title)
	normTrack := normalize.Normalize(track)
	normArtist := normalize.Normalize(artist)

	titleTokens := stripNoise(normalize.Tokens(normTitle))
	trackTokens := stripNoise(normalize.Tokens(normTrack))

	ratio := normalize.TokenOverlapRatio(trackTokens, titleTokens)
	fuzzy := normalize.Score(normTrack, normTitle)
	if ratio < passTokenRatio && fuzzy < passFuzzy {
		return 0, false
	}

	score := ratio * 100
	if normTrack != "" && strings.Contains(normTitle, normTrack) {
		score += bonusPhrase
	}
	if strings.Contains(normTitle, "official") {
		score += bonusOfficial
	}

	channel := strings.ToLower(v.ChannelTitle)
	if strings.Contains(channel, "vevo") {
		score += bonusVevo
	}
	if isMusicChannel(channel, normArtist) {
		score += bonusMusicHint
	}
	return score, true
}

// isMusicChannel reports whether the channel name looks like an artist or
// label channel rather than a random uploader.
func isMusicChannel(channel, normArtist string) bool {
	if channel == "" {
		return false
	}
	if strings.HasSuffix(channel, " - topic") || strings.Contains(channel, "official") ||
		strings.Contains(channel, "music") || strings.Contains(channel, "records") {
		return true
	}
	return normArtist != "" && strings.Contains(normalize.Normalize(channel), normArtist)
}

// RankCandidates scores and orders search results, dropping failures and
// duplicate video ids.
func RankCandidates(videos []models.Video, artist, track string) []Candidate {
	seen := make(map[string]bool, len(videos))
	var ranked []Candidate
	for _, v := range videos {
		if v.VideoID == "" || seen[v.VideoID] {
			continue
		}
		score, ok := scoreCandidate(v, artist, track)
		if !ok {
			continue
		}
		seen[v.VideoID] = true
		ranked = append(ranked, Candidate{Video: v, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
