package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/services"
)

const (
	dailyRefreshInterval   = 24 * time.Hour
	dailyMetadataBatch     = 50
	libraryRefreshInterval = 6 * time.Hour
	libraryRefreshBatch    = 30
)

// DailyRefresh expands every favorited artist's discography once a day, then
// opportunistically fills artists missing a bio, genres, or image.
type DailyRefresh struct {
	writer    *catalog.Writer
	expander  *catalog.Expander
	freshness *catalog.Freshness
	lastfm    services.StatsProvider
	logger    *log.Logger
}

// NewDailyRefresh creates the daily refresh task.
func NewDailyRefresh(writer *catalog.Writer, expander *catalog.Expander, freshness *catalog.Freshness, lastfm services.StatsProvider, logger *log.Logger) *DailyRefresh {
	return &DailyRefresh{writer: writer, expander: expander, freshness: freshness, lastfm: lastfm, logger: logger}
}

func (d *DailyRefresh) Name() string            { return "daily-refresh" }
func (d *DailyRefresh) Interval() time.Duration { return dailyRefreshInterval }

func (d *DailyRefresh) Run(ctx context.Context) error {
	if err := d.expandFavorites(ctx); err != nil {
		return err
	}
	return d.fillMissingMetadata(ctx)
}

func (d *DailyRefresh) expandFavorites(ctx context.Context) error {
	ids, err := d.writer.Favorites().ListFavoritedArtistIDs()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		artist, err := d.writer.Artists().Get(id)
		if err != nil || artist.SpotifyID == "" {
			continue
		}
		if _, err := d.expander.ExpandFromSeed(ctx, artist.SpotifyID); err != nil {
			d.logger.Warn("favorite expansion failed", "artist", artist.Name, "error", err)
		}
	}
	return nil
}

func (d *DailyRefresh) fillMissingMetadata(ctx context.Context) error {
	artists, err := d.writer.Artists().ListMissingMetadata(dailyMetadataBatch)
	if err != nil {
		return err
	}

	for _, artist := range artists {
		if err := ctx.Err(); err != nil {
			return err
		}
		if artist.SpotifyID != "" {
			if _, err := d.freshness.RefreshArtistData(ctx, artist.SpotifyID); err != nil {
				d.logger.Warn("metadata fill failed", "artist", artist.Name, "error", err)
				continue
			}
		} else if d.lastfm != nil {
			info, err := d.lastfm.GetArtistInfo(ctx, artist.Name)
			if err != nil {
				d.logger.Debug("metadata fill skipped", "artist", artist.Name, "error", err)
				continue
			}
			if err := d.writer.UpdateArtistBio(artist.ID, info); err != nil {
				d.logger.Warn("bio update failed", "artist", artist.Name, "error", err)
			}
		}
	}
	return nil
}

// LibraryRefresh re-pulls a batch of the stalest artists every few hours,
// refreshing their metadata and picking up unseen albums and tracks.
type LibraryRefresh struct {
	freshness *catalog.Freshness
	logger    *log.Logger
}

// NewLibraryRefresh creates the library refresh task.
func NewLibraryRefresh(freshness *catalog.Freshness, logger *log.Logger) *LibraryRefresh {
	return &LibraryRefresh{freshness: freshness, logger: logger}
}

func (l *LibraryRefresh) Name() string            { return "library-refresh" }
func (l *LibraryRefresh) Interval() time.Duration { return libraryRefreshInterval }

func (l *LibraryRefresh) Run(ctx context.Context) error {
	refreshed, err := l.freshness.BulkRefreshStaleArtists(ctx, libraryRefreshBatch)
	if refreshed > 0 {
		l.logger.Info("stale artists refreshed", "count", refreshed)
	}
	return err
}
