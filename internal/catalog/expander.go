package catalog

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/sync/singleflight"
)

// ExpandResult summarizes one expansion run.
type ExpandResult struct {
	ArtistID       int64
	Albums         int
	Tracks         int
	SimilarArtists int
}

// Expander pulls an artist's full discography into the catalog. Overlapping
// expansions for the same provider id collapse into one in-flight call.
type Expander struct {
	writer  *Writer
	spotify services.MetadataProvider
	lastfm  services.StatsProvider
	group   singleflight.Group
	logger  *log.Logger
}

// NewExpander creates an expander. The stats provider may be nil, disabling
// similar-artist expansion.
func NewExpander(writer *Writer, spotify services.MetadataProvider, lastfm services.StatsProvider, logger *log.Logger) *Expander {
	return &Expander{
		writer:  writer,
		spotify: spotify,
		lastfm:  lastfm,
		logger:  logger,
	}
}

// ExpandFromSeed saves the seed artist, every album across all release
// groups and every album track. Concurrent calls for the same provider id
// share a single execution.
func (e *Expander) ExpandFromSeed(ctx context.Context, providerID string) (*ExpandResult, error) {
	if providerID == "" {
		return nil, fmt.Errorf("seed provider id: %w", shared.ErrInvalidInput)
	}

	v, err, _ := e.group.Do(providerID, func() (any, error) {
		return e.expandOne(ctx, providerID, 0)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ExpandResult), nil
}

// ExpandWithSimilar expands the seed, then enumerates up to k similar
// artists from the stats provider and expands each unseen one a single level
// deep, capping saved tracks per similar artist.
func (e *Expander) ExpandWithSimilar(ctx context.Context, providerID string, k, tracksPerArtist int) (*ExpandResult, error) {
	result, err := e.ExpandFromSeed(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if e.lastfm == nil || k <= 0 {
		return result, nil
	}

	seed, err := e.writer.Artists().Get(result.ArtistID)
	if err != nil {
		return nil, err
	}

	similar, err := e.lastfm.GetSimilarArtists(ctx, seed.Name, k)
	if err != nil {
		e.logger.Warn("similar artist lookup failed", "artist", seed.Name, "error", err)
		return result, nil
	}

	for _, candidate := range similar {
		if candidate.Name == "" {
			continue
		}
		normalized := normalize.Normalize(candidate.Name)
		if _, err := e.writer.Artists().GetByNormalizedName(normalized); err == nil {
			continue
		} else if !shared.IsNotFound(err) {
			return result, err
		}

		matches, err := e.spotify.SearchArtists(ctx, candidate.Name, 1)
		if err != nil || len(matches) == 0 {
			continue
		}

		v, err, _ := e.group.Do(matches[0].ID, func() (any, error) {
			return e.expandOne(ctx, matches[0].ID, tracksPerArtist)
		})
		if err != nil {
			e.logger.Warn("similar expansion failed", "artist", candidate.Name, "error", err)
			continue
		}
		sub := v.(*ExpandResult)
		result.Albums += sub.Albums
		result.Tracks += sub.Tracks
		result.SimilarArtists++
	}
	return result, nil
}

// expandOne is the single-artist expansion body. trackCap limits saved
// tracks when positive.
func (e *Expander) expandOne(ctx context.Context, providerID string, trackCap int) (*ExpandResult, error) {
	payload, err := e.spotify.GetArtist(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", providerID, err)
	}

	artist, err := e.writer.SaveArtist(*payload)
	if err != nil {
		return nil, err
	}
	result := &ExpandResult{ArtistID: artist.ID}

	albums, err := e.spotify.GetArtistAlbums(ctx, providerID, nil, true)
	if err != nil {
		return nil, fmt.Errorf("expand %s albums: %w", providerID, err)
	}

	for _, albumPayload := range albums {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		album, err := e.writer.SaveAlbum(albumPayload, artist.ID)
		if err != nil {
			e.logger.Warn("album save failed", "album", albumPayload.Name, "error", err)
			continue
		}
		result.Albums++

		tracks, err := e.spotify.GetAlbumTracks(ctx, albumPayload.ID)
		if err != nil {
			e.logger.Warn("album tracks fetch failed", "album", albumPayload.Name, "error", err)
			continue
		}
		for _, trackPayload := range tracks {
			if trackCap > 0 && result.Tracks >= trackCap {
				return result, nil
			}
			if _, err := e.writer.SaveTrack(trackPayload, artist.ID, &album.ID); err != nil {
				e.logger.Warn("track save failed", "track", trackPayload.Name, "error", err)
				continue
			}
			result.Tracks++
		}
	}
	return result, nil
}
