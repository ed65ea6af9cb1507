package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
)

// bulkRefreshPause spaces provider calls inside a bulk refresh pass.
const bulkRefreshPause = 500 * time.Millisecond

// MaxAges holds the per-kind staleness horizons.
type MaxAges struct {
	Artist time.Duration
	Album  time.Duration
	Track  time.Duration
}

// MaxAgesFromConfig converts the configured hour counts, applying the
// defaults for missing values.
func MaxAgesFromConfig(cfg shared.FreshnessConfig) MaxAges {
	ages := MaxAges{
		Artist: time.Duration(cfg.ArtistMaxAgeHours) * time.Hour,
		Album:  time.Duration(cfg.AlbumMaxAgeHours) * time.Hour,
		Track:  time.Duration(cfg.TrackMaxAgeHours) * time.Hour,
	}
	if ages.Artist <= 0 {
		ages.Artist = 24 * time.Hour
	}
	if ages.Album <= 0 {
		ages.Album = 168 * time.Hour
	}
	if ages.Track <= 0 {
		ages.Track = 168 * time.Hour
	}
	return ages
}

// Freshness decides when stored entities need a provider round-trip and
// performs the refreshes.
type Freshness struct {
	writer  *Writer
	spotify services.MetadataProvider
	lastfm  services.StatsProvider
	ages    MaxAges
	logger  *log.Logger
	now     func() time.Time
}

// NewFreshness creates a freshness manager. The stats provider may be nil,
// in which case bio enrichment is skipped.
func NewFreshness(writer *Writer, spotify services.MetadataProvider, lastfm services.StatsProvider, ages MaxAges, logger *log.Logger) *Freshness {
	return &Freshness{
		writer:  writer,
		spotify: spotify,
		lastfm:  lastfm,
		ages:    ages,
		logger:  logger,
		now:     time.Now,
	}
}

// IsStale reports whether an entity of the given kind is past its maximum
// age. A zero timestamp is always stale.
func (f *Freshness) IsStale(kind models.EntityKind, updatedAt time.Time) bool {
	if updatedAt.IsZero() {
		return true
	}
	age := f.now().UTC().Sub(updatedAt)
	switch kind {
	case models.KindAlbum:
		return age > f.ages.Album
	case models.KindTrack:
		return age > f.ages.Track
	default:
		return age > f.ages.Artist
	}
}

// RefreshArtistData re-fetches an artist from the metadata provider, saves
// it, then best-effort enriches the bio from the stats provider.
func (f *Freshness) RefreshArtistData(ctx context.Context, providerID string) (*models.Artist, error) {
	payload, err := f.spotify.GetArtist(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("refresh artist %s: %w", providerID, err)
	}

	artist, err := f.writer.SaveArtist(*payload)
	if err != nil {
		return nil, err
	}

	if f.lastfm != nil {
		info, err := f.lastfm.GetArtistInfo(ctx, artist.Name)
		if err != nil {
			f.logger.Debug("bio enrichment skipped", "artist", artist.Name, "error", err)
		} else if err := f.writer.UpdateArtistBio(artist.ID, info); err != nil {
			f.logger.Warn("bio update failed", "artist", artist.Name, "error", err)
		}
	}

	return f.writer.Artists().Get(artist.ID)
}

// CheckForNewArtistContent lists the artist's full discography and saves any
// unseen albums and their tracks. Returns the counts of new albums and
// tracks.
func (f *Freshness) CheckForNewArtistContent(ctx context.Context, providerID string) (int, int, error) {
	artist, err := f.writer.Artists().GetBySpotifyID(providerID)
	if err != nil {
		return 0, 0, err
	}

	albums, err := f.spotify.GetArtistAlbums(ctx, providerID, nil, true)
	if err != nil {
		return 0, 0, fmt.Errorf("list albums for %s: %w", providerID, err)
	}

	newAlbums, newTracks := 0, 0
	for _, payload := range albums {
		if payload.ID != "" {
			if _, err := f.writer.Albums().GetBySpotifyID(payload.ID); err == nil {
				continue
			} else if !shared.IsNotFound(err) {
				return newAlbums, newTracks, err
			}
		}

		album, err := f.writer.SaveAlbum(payload, artist.ID)
		if err != nil {
			f.logger.Warn("album save failed", "album", payload.Name, "error", err)
			continue
		}
		newAlbums++

		tracks, err := f.spotify.GetAlbumTracks(ctx, payload.ID)
		if err != nil {
			f.logger.Warn("album tracks fetch failed", "album", payload.Name, "error", err)
			continue
		}
		for _, track := range tracks {
			if track.ID != "" {
				if _, err := f.writer.Tracks().GetBySpotifyID(track.ID); err == nil {
					continue
				} else if !shared.IsNotFound(err) {
					return newAlbums, newTracks, err
				}
			}
			if _, err := f.writer.SaveTrack(track, artist.ID, &album.ID); err != nil {
				f.logger.Warn("track save failed", "track", track.Name, "error", err)
				continue
			}
			newTracks++
		}
	}
	return newAlbums, newTracks, nil
}

// BulkRefreshStaleArtists refreshes up to max stale artists, oldest first,
// pausing briefly between provider round-trips. Returns the refreshed count.
func (f *Freshness) BulkRefreshStaleArtists(ctx context.Context, max int) (int, error) {
	if max <= 0 {
		max = 30
	}
	cutoff := f.now().UTC().Add(-f.ages.Artist)
	stale, err := f.writer.Artists().ListStale(cutoff, max)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, artist := range stale {
		if artist.SpotifyID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		if _, err := f.RefreshArtistData(ctx, artist.SpotifyID); err != nil {
			f.logger.Warn("stale refresh failed", "artist", artist.Name, "error", err)
			continue
		}
		if _, _, err := f.CheckForNewArtistContent(ctx, artist.SpotifyID); err != nil {
			f.logger.Warn("content check failed", "artist", artist.Name, "error", err)
		}
		refreshed++

		timer := time.NewTimer(bulkRefreshPause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return refreshed, ctx.Err()
		case <-timer.C:
		}
	}
	return refreshed, nil
}
