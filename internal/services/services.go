package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

// MetadataProvider is the catalog metadata surface consumed by the writer,
// expander and orchestrator. SpotifyClient implements it.
type MetadataProvider interface {
	SearchArtists(ctx context.Context, q string, limit int) ([]models.ProviderArtist, error)
	GetArtist(ctx context.Context, id string) (*models.ProviderArtist, error)
	GetArtistAlbums(ctx context.Context, id string, groups []string, fetchAll bool) ([]models.ProviderAlbum, error)
	GetAlbum(ctx context.Context, id string) (*models.ProviderAlbum, error)
	GetAlbumTracks(ctx context.Context, id string) ([]models.ProviderTrack, error)
	SearchTracks(ctx context.Context, q string, limit int) ([]models.ProviderTrack, error)
	GetRecommendations(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]models.ProviderTrack, error)
}

// StatsProvider is the tag/similarity surface. LastFMClient implements it.
type StatsProvider interface {
	GetArtistInfo(ctx context.Context, name string) (*models.ArtistInfo, error)
	GetSimilarArtists(ctx context.Context, name string, limit int) ([]models.SimilarArtist, error)
	GetTrackInfo(ctx context.Context, artist, track string) (*models.TrackInfo, error)
	GetTopArtistsByTag(ctx context.Context, tag string, limit, page int) ([]models.SimilarArtist, error)
}

// VideoProvider is the video search surface. YouTubeClient implements it.
type VideoProvider interface {
	SearchVideos(ctx context.Context, query string, maxResults int) ([]models.Video, error)
	GetVideoDetails(ctx context.Context, videoID string) (*models.Video, error)
	Available() bool
	RequestsToday() int
}

var (
	_ MetadataProvider = (*SpotifyClient)(nil)
	_ StatsProvider    = (*LastFMClient)(nil)
	_ VideoProvider    = (*YouTubeClient)(nil)
	_ MediaFetcher     = (*YTDLPFetcher)(nil)
)

// newPace returns a limiter enforcing a minimum interval between requests.
// A zero or negative interval disables pacing.
func newPace(minInterval time.Duration) *rate.Limiter {
	if minInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minInterval), 1)
}

// DayQuota counts requests inside a calendar-day window anchored at a local
// hour. The window rolls over lazily on the next call after the anchor.
type DayQuota struct {
	mu          sync.Mutex
	anchorHour  int
	limit       int // 0 means uncounted, track usage only
	windowStart time.Time
	used        int
	exhausted   bool
	now         func() time.Time
}

// NewDayQuota creates a quota window anchored at the given local hour.
func NewDayQuota(anchorHour, limit int) *DayQuota {
	return &DayQuota{anchorHour: anchorHour, limit: limit, now: time.Now}
}

func (q *DayQuota) roll() {
	start := shared.DayWindowStart(q.now(), q.anchorHour)
	if start.After(q.windowStart) {
		q.windowStart = start
		q.used = 0
		q.exhausted = false
	}
}

// TryAcquire consumes one unit of quota. It returns false when the window is
// exhausted, either by hitting the local limit or by an explicit mark.
func (q *DayQuota) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if q.exhausted {
		return false
	}
	if q.limit > 0 && q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// MarkExhausted disables the quota until the next anchor rollover. Used when
// the provider reports quotaExceeded regardless of the local count.
func (q *DayQuota) MarkExhausted() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	q.exhausted = true
}

// Available reports whether the window has quota left without consuming any.
func (q *DayQuota) Available() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if q.exhausted {
		return false
	}
	return q.limit <= 0 || q.used < q.limit
}

// Used returns the request count inside the current window.
func (q *DayQuota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	return q.used
}

// Remaining returns the units left in the current window, or -1 when the
// quota is uncounted.
func (q *DayQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if q.limit <= 0 {
		return -1
	}
	if q.exhausted {
		return 0
	}
	n := q.limit - q.used
	if n < 0 {
		n = 0
	}
	return n
}

// classifyResponse maps an HTTP response to a sentinel error, draining up to
// a small prefix of the body for quota-reason detection.
func classifyResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	text := string(body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", resp.StatusCode, shared.ErrRateLimited)
	case resp.StatusCode == http.StatusForbidden && isQuotaReason(text):
		return fmt.Errorf("status %d: %w", resp.StatusCode, shared.ErrQuotaExhausted)
	case resp.StatusCode >= 500:
		return fmt.Errorf("status %d: %w", resp.StatusCode, shared.ErrServiceUnavailable)
	default:
		return fmt.Errorf("status %d: %w", resp.StatusCode, shared.ErrAPIRequest)
	}
}

func isQuotaReason(body string) bool {
	return strings.Contains(body, "quotaExceeded") ||
		strings.Contains(body, "dailyLimitExceeded") ||
		strings.Contains(body, "rateLimitExceeded")
}

// retryAfter reads a Retry-After header in seconds, defaulting when absent
// or unparsable.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	var secs int
	if _, err := fmt.Sscanf(raw, "%d", &secs); err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// sleepCtx waits d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
