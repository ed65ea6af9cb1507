// YouTube Data API v3 client, response types based on
// https://developers.google.com/youtube/v3/docs
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

type youtubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type youtubeSnippet struct {
	Title        string                      `json:"title"`
	Description  string                      `json:"description"`
	ChannelTitle string                      `json:"channelTitle"`
	PublishedAt  string                      `json:"publishedAt"`
	Thumbnails   map[string]youtubeThumbnail `json:"thumbnails"`
}

type youtubeSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

type youtubeSearchResponse struct {
	Items []youtubeSearchItem `json:"items"`
}

type youtubeVideoItem struct {
	ID      string         `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

type youtubeVideosResponse struct {
	Items []youtubeVideoItem `json:"items"`
}

// YouTubeClient is the video search client. It rotates through a ring of API
// keys on quota errors and disables itself until the next day-window anchor
// once the ring is exhausted.
type YouTubeClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	quota      *DayQuota

	mu     sync.Mutex
	keys   []string
	keyIdx int
}

// YouTubeConfig carries the client knobs.
type YouTubeConfig struct {
	Keys        []string
	AnchorHour  int
	MinInterval time.Duration
}

// NewYouTubeClient creates a client over a non-empty key ring.
func NewYouTubeClient(cfg YouTubeConfig) (*YouTubeClient, error) {
	if len(cfg.Keys) == 0 {
		return nil, fmt.Errorf("youtube: %w", shared.ErrMissingCredentials)
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Second
	}
	return &YouTubeClient{
		baseURL:    youtubeBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    newPace(cfg.MinInterval),
		quota:      NewDayQuota(cfg.AnchorHour, 0),
		keys:       cfg.Keys,
	}, nil
}

// Available reports whether the API path has quota left in the current
// window.
func (y *YouTubeClient) Available() bool {
	return y.quota.Available()
}

// RequestsToday returns the request count inside the current day window.
func (y *YouTubeClient) RequestsToday() int {
	return y.quota.Used()
}

func (y *YouTubeClient) currentKey() (string, int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.keys[y.keyIdx], y.keyIdx
}

// rotateKey advances past the given index. Returns false when the ring has
// wrapped, meaning every key was tried.
func (y *YouTubeClient) rotateKey(fromIdx int) bool {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.keyIdx != fromIdx {
		// another caller already rotated
		return true
	}
	y.keyIdx = (y.keyIdx + 1) % len(y.keys)
	return y.keyIdx != fromIdx
}

// doRequest performs a GET against the API, rotating keys on quota errors
// until the ring is exhausted.
func (y *YouTubeClient) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	if !y.quota.Available() {
		return fmt.Errorf("youtube %s: %w", endpoint, shared.ErrQuotaExhausted)
	}

	attempts := 0
	for {
		if err := y.limiter.Wait(ctx); err != nil {
			return err
		}

		key, idx := y.currentKey()
		params.Set("key", key)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			y.baseURL+endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := y.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("youtube request failed: %w", err)
		}
		y.quota.TryAcquire()

		if resp.StatusCode == http.StatusForbidden {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			if isQuotaReason(string(body)) {
				attempts++
				if attempts < len(y.keys) && y.rotateKey(idx) {
					continue
				}
				y.quota.MarkExhausted()
				return fmt.Errorf("youtube %s: all keys exhausted: %w", endpoint, shared.ErrQuotaExhausted)
			}
			return fmt.Errorf("youtube %s: status 403: %w", endpoint, shared.ErrAPIRequest)
		}

		if err := classifyResponse(resp); err != nil {
			resp.Body.Close()
			return fmt.Errorf("youtube %s: %w", endpoint, err)
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode youtube response: %w", err)
		}
		return nil
	}
}

// SearchVideos returns up to maxResults video candidates for a free-text
// query, restricted to the music category.
func (y *YouTubeClient) SearchVideos(ctx context.Context, query string, maxResults int) ([]models.Video, error) {
	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{
		"part":            {"snippet"},
		"q":               {query},
		"type":            {"video"},
		"videoCategoryId": {"10"},
		"maxResults":      {strconv.Itoa(maxResults)},
	}

	var response youtubeSearchResponse
	if err := y.doRequest(ctx, "/search", params, &response); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	videos := make([]models.Video, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, convertYouTubeSnippet(item.ID.VideoID, item.Snippet))
	}
	return videos, nil
}

// SearchMusicVideos builds the standard music query from track fields and
// searches for it.
func (y *YouTubeClient) SearchMusicVideos(ctx context.Context, artist, track, album string, maxResults int) ([]models.Video, error) {
	parts := []string{artist, track}
	if album != "" {
		parts = append(parts, album)
	}
	parts = append(parts, "official video")
	return y.SearchVideos(ctx, strings.Join(parts, " "), maxResults)
}

// GetVideoDetails retrieves one video's snippet by id.
func (y *YouTubeClient) GetVideoDetails(ctx context.Context, videoID string) (*models.Video, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video id: %w", shared.ErrInvalidInput)
	}

	params := url.Values{
		"part": {"snippet"},
		"id":   {videoID},
	}

	var response youtubeVideosResponse
	if err := y.doRequest(ctx, "/videos", params, &response); err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, shared.ErrNotFound)
	}

	video := convertYouTubeSnippet(response.Items[0].ID, response.Items[0].Snippet)
	return &video, nil
}

func convertYouTubeSnippet(videoID string, snippet youtubeSnippet) models.Video {
	video := models.Video{
		VideoID:      videoID,
		Title:        snippet.Title,
		ChannelTitle: snippet.ChannelTitle,
		Description:  snippet.Description,
	}
	if snippet.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, snippet.PublishedAt); err == nil {
			video.PublishedAt = &ts
		}
	}
	for _, thumb := range snippet.Thumbnails {
		video.Thumbnails = append(video.Thumbnails, models.ProviderImage{
			URL: thumb.URL, Width: thumb.Width, Height: thumb.Height,
		})
	}
	return video
}
