package tasks

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/services"
)

const (
	genreBackfillInterval = 2 * time.Hour
	genreBackfillBatch    = 100
	genreSampleTracks     = 3
	genreKeepTop          = 6
)

// GenreBackfill fills empty artist genre lists from listener tags. It samples
// a few of the artist's stored tracks, pulls each track's tags from the
// stats provider, drops noise, and keeps the most frequent survivors.
type GenreBackfill struct {
	writer *catalog.Writer
	lastfm services.StatsProvider
	logger *log.Logger
}

// NewGenreBackfill creates the genre backfill task.
func NewGenreBackfill(writer *catalog.Writer, lastfm services.StatsProvider, logger *log.Logger) *GenreBackfill {
	return &GenreBackfill{writer: writer, lastfm: lastfm, logger: logger}
}

func (g *GenreBackfill) Name() string            { return "genre-backfill" }
func (g *GenreBackfill) Interval() time.Duration { return genreBackfillInterval }

func (g *GenreBackfill) Run(ctx context.Context) error {
	artists, err := g.writer.Artists().ListWithEmptyGenres(genreBackfillBatch)
	if err != nil {
		return err
	}

	for _, artist := range artists {
		if err := ctx.Err(); err != nil {
			return err
		}
		genres, err := g.collectGenres(ctx, artist)
		if err != nil {
			g.logger.Debug("tag collection failed", "artist", artist.Name, "error", err)
			continue
		}
		if len(genres) == 0 {
			continue
		}
		if err := g.writer.SetArtistGenres(artist.ID, genres); err != nil {
			g.logger.Warn("genre update failed", "artist", artist.Name, "error", err)
		}
	}
	return nil
}

func (g *GenreBackfill) collectGenres(ctx context.Context, artist *models.Artist) ([]string, error) {
	tracks, err := g.writer.Tracks().ListByArtist(artist.ID, genreSampleTracks)
	if err != nil {
		return nil, err
	}

	trackNames := make(map[string]bool, len(tracks))
	for _, track := range tracks {
		trackNames[normalize.Normalize(track.Name)] = true
	}

	counts := make(map[string]int)
	order := make(map[string]int)
	for _, track := range tracks {
		info, err := g.lastfm.GetTrackInfo(ctx, artist.Name, track.Name)
		if err != nil {
			g.logger.Debug("track info failed", "track", track.Name, "error", err)
			continue
		}
		for _, tag := range info.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if !usableTag(tag, artist.Name, trackNames) {
				continue
			}
			if _, seen := counts[tag]; !seen {
				order[tag] = len(order)
			}
			counts[tag]++
		}
	}

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return order[tags[i]] < order[tags[j]]
	})
	if len(tags) > genreKeepTop {
		tags = tags[:genreKeepTop]
	}
	return tags, nil
}

// usableTag drops listener-tag noise: generic tags, pure digits, the artist's
// own name, and tags repeating a sampled track name.
func usableTag(tag, artistName string, trackNames map[string]bool) bool {
	if tag == "" || tag == "live" || tag == "favourite" || tag == "favorites" {
		return false
	}
	if isDigits(tag) {
		return false
	}
	normalized := normalize.Normalize(tag)
	if normalized == normalize.Normalize(artistName) {
		return false
	}
	return !trackNames[normalized]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
