package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	cacheSize = 2000
	cacheTTL  = 6 * time.Hour

	// ErrorCooldown and NotFoundCooldown gate re-resolution of failed links.
	ErrorCooldown    = 12 * time.Hour
	NotFoundCooldown = 7 * 24 * time.Hour

	defaultMaxResults = 5
)

// Resolver walks a track through the link lifecycle: pending, a search that
// lands on link_found or video_not_found, an optional download to completed,
// and error with a retry cooldown. API search results come from the video
// provider; when its quota is exhausted or it returns nothing, the resolver
// falls back to the media fetcher's search mode.
type Resolver struct {
	writer     *catalog.Writer
	video      services.VideoProvider
	fetcher    services.MediaFetcher
	cache      *expirable.LRU[string, []Candidate]
	maxResults int
	logger     *log.Logger
	now        func() time.Time

	// OnFallback, when set, is invoked once per fetcher search.
	OnFallback func()
}

// New creates a resolver. A non-positive maxResults selects the default of
// 5. The fetcher may be nil, disabling the fallback path.
func New(writer *catalog.Writer, video services.VideoProvider, fetcher services.MediaFetcher, maxResults int, logger *log.Logger) *Resolver {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Resolver{
		writer:     writer,
		video:      video,
		fetcher:    fetcher,
		cache:      expirable.NewLRU[string, []Candidate](cacheSize, nil, cacheTTL),
		maxResults: maxResults,
		logger:     logger,
		now:        time.Now,
	}
}

func cacheKey(artist, track, album string, maxResults int) string {
	return strings.ToLower(artist) + "|" + strings.ToLower(track) + "|" +
		strings.ToLower(album) + "|" + strconv.Itoa(maxResults)
}

// SearchCandidates returns scored video candidates for a track tuple. The
// API client is tried first, the fetcher only when the API is disabled or
// came back empty. Results, including empty ones, are cached for the TTL.
func (r *Resolver) SearchCandidates(ctx context.Context, artist, track, album string) ([]Candidate, error) {
	if track == "" {
		return nil, fmt.Errorf("search track name: %w", shared.ErrInvalidInput)
	}

	key := cacheKey(artist, track, album, r.maxResults)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	queries := BuildQueries(artist, track, album)
	candidates, apiErr := r.searchAPI(ctx, queries, artist, track)
	if apiErr != nil && !errors.Is(apiErr, shared.ErrQuotaExhausted) {
		return nil, apiErr
	}

	fallbackReady := r.fetcher != nil && r.fetcher.Available()
	if len(candidates) == 0 && fallbackReady {
		candidates = r.searchFallback(ctx, queries, artist, track)
	}
	// quota exhaustion only surfaces when no fallback could run
	if len(candidates) == 0 && apiErr != nil && !fallbackReady {
		return nil, apiErr
	}

	r.cache.Add(key, candidates)
	return candidates, nil
}

// searchAPI runs the query ladder against the video provider, stopping at
// the first query that yields passing candidates.
func (r *Resolver) searchAPI(ctx context.Context, queries []string, artist, track string) ([]Candidate, error) {
	if r.video == nil || !r.video.Available() {
		return nil, nil
	}

	for _, q := range queries {
		videos, err := r.video.SearchVideos(ctx, q, r.maxResults)
		if err != nil {
			if errors.Is(err, shared.ErrQuotaExhausted) {
				r.logger.Warn("video api quota exhausted, deferring to fallback")
				return nil, err
			}
			return nil, fmt.Errorf("video search %q: %w", q, err)
		}
		if ranked := RankCandidates(videos, artist, track); len(ranked) > 0 {
			return ranked, nil
		}
	}
	return nil, nil
}

// searchFallback runs the query ladder through the fetcher's search mode.
// Fetcher errors are soft; the ladder just moves on.
func (r *Resolver) searchFallback(ctx context.Context, queries []string, artist, track string) []Candidate {
	for _, q := range queries {
		if r.OnFallback != nil {
			r.OnFallback()
		}
		video, err := r.fetcher.SearchVideo(ctx, q)
		if err != nil {
			if !shared.IsNotFound(err) {
				r.logger.Warn("fallback search failed", "query", q, "error", err)
			}
			continue
		}
		if ranked := RankCandidates([]models.Video{*video}, artist, track); len(ranked) > 0 {
			return ranked
		}
	}
	return nil
}

// ShouldRetry reports whether a stored link is due for another resolution
// attempt. Resolved links never retry; error and video_not_found retry after
// their cooldowns; everything else retries immediately.
func (r *Resolver) ShouldRetry(link *models.YouTubeLink) bool {
	if link == nil {
		return true
	}
	switch link.EffectiveStatus() {
	case models.LinkCompleted, models.LinkFound:
		return false
	case models.LinkError:
		return r.now().UTC().Sub(link.UpdatedAt) >= ErrorCooldown
	case models.LinkVideoNotFound:
		return r.now().UTC().Sub(link.UpdatedAt) >= NotFoundCooldown
	default:
		return true
	}
}

// ResolveTrack runs one resolution attempt for a stored track. Cooldowns are
// honored unless force is set. The returned link reflects the stored row
// after the attempt.
func (r *Resolver) ResolveTrack(ctx context.Context, trackID int64, force bool) (*models.YouTubeLink, error) {
	track, err := r.writer.Tracks().Get(trackID)
	if err != nil {
		return nil, err
	}
	if track.SpotifyID == "" {
		return nil, fmt.Errorf("track %d has no provider id: %w", trackID, shared.ErrInvalidInput)
	}

	existing, err := r.writer.Links().Get(track.SpotifyID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}
	if !force && !r.ShouldRetry(existing) {
		return existing, nil
	}

	artist, err := r.writer.Artists().Get(track.ArtistID)
	if err != nil {
		return nil, err
	}
	albumName := ""
	if track.AlbumID != nil {
		if album, err := r.writer.Albums().Get(*track.AlbumID); err == nil {
			albumName = album.Name
		}
	}

	candidates, err := r.SearchCandidates(ctx, artist.Name, track.Name, albumName)
	if err != nil {
		link := &models.YouTubeLink{
			SpotifyTrackID: track.SpotifyID,
			Status:         models.LinkError,
			ErrorMessage:   err.Error(),
		}
		if saveErr := r.writer.SaveLink(link); saveErr != nil {
			return nil, saveErr
		}
		return link, err
	}

	link := &models.YouTubeLink{SpotifyTrackID: track.SpotifyID}
	if len(candidates) == 0 {
		link.Status = models.LinkVideoNotFound
	} else {
		link.Status = models.LinkFound
		link.VideoID = candidates[0].Video.VideoID
		r.logger.Info("link found",
			"track", track.Name, "video_id", link.VideoID, "score", candidates[0].Score)
	}
	if err := r.writer.SaveLink(link); err != nil {
		return nil, err
	}
	return r.writer.Links().Get(track.SpotifyID)
}

// DownloadTrack downloads the resolved video's audio through the fetcher and
// marks the link completed. The track must already be in link_found, or
// resolvable in one attempt.
func (r *Resolver) DownloadTrack(ctx context.Context, trackID int64, format string) (*models.YouTubeLink, error) {
	if r.fetcher == nil || !r.fetcher.Available() {
		return nil, fmt.Errorf("media fetcher: %w", shared.ErrServiceUnavailable)
	}
	if format == "" {
		format = "mp3"
	}

	link, err := r.ResolveTrack(ctx, trackID, false)
	if err != nil {
		return nil, err
	}
	if link.VideoID == "" {
		return link, fmt.Errorf("track %d has no resolved video: %w", trackID, shared.ErrNotFound)
	}
	if link.Status == models.LinkCompleted && link.DownloadPath != "" {
		return link, nil
	}

	path, size, err := r.fetcher.DownloadAudio(ctx, link.VideoID, format)
	if err != nil {
		return link, fmt.Errorf("download %s: %w", link.VideoID, err)
	}

	link.Status = models.LinkCompleted
	link.DownloadPath = path
	link.FileSize = &size
	if err := r.writer.SaveLink(link); err != nil {
		return nil, err
	}

	track, err := r.writer.Tracks().Get(trackID)
	if err == nil && track.DownloadPath != path {
		track.DownloadPath = path
		if err := r.writer.Tracks().Update(track); err != nil {
			r.logger.Warn("track download path update failed", "track_id", trackID, "error", err)
		}
	}
	return r.writer.Links().Get(link.SpotifyTrackID)
}
