// Last.fm API client, response types based on https://www.last.fm/api
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

const (
	lastfmBaseURL     = "https://ws.audioscrobbler.com/2.0/"
	lastfmMinInterval = time.Second
)

type lastfmTag struct {
	Name string `json:"name"`
}

type lastfmImage struct {
	Text string `json:"#text"`
	Size string `json:"size"`
}

type lastfmArtistInfo struct {
	Artist struct {
		Name  string `json:"name"`
		URL   string `json:"url"`
		Stats struct {
			Listeners string `json:"listeners"`
		} `json:"stats"`
		Tags struct {
			Tag []lastfmTag `json:"tag"`
		} `json:"tags"`
		Bio struct {
			Summary string `json:"summary"`
			Content string `json:"content"`
		} `json:"bio"`
		Similar struct {
			Artist []struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"similar"`
	} `json:"artist"`
}

type lastfmSimilarArtists struct {
	SimilarArtists struct {
		Artist []struct {
			Name  string        `json:"name"`
			Match string        `json:"match"`
			URL   string        `json:"url"`
			Image []lastfmImage `json:"image"`
		} `json:"artist"`
	} `json:"similarartists"`
}

type lastfmTrackInfo struct {
	Track struct {
		Name   string `json:"name"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
		Duration string `json:"duration"`
		TopTags  struct {
			Tag []lastfmTag `json:"tag"`
		} `json:"toptags"`
	} `json:"track"`
}

type lastfmTopArtists struct {
	TopArtists struct {
		Artist []struct {
			Name  string        `json:"name"`
			URL   string        `json:"url"`
			Image []lastfmImage `json:"image"`
		} `json:"artist"`
	} `json:"topartists"`
}

type lastfmError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// LastFMClient is the stats and similarity client. It authenticates with an
// API key alone and paces requests at roughly one per second.
type LastFMClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewLastFMClient creates a client from an API key.
func NewLastFMClient(apiKey string) (*LastFMClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("lastfm: %w", shared.ErrMissingCredentials)
	}
	return &LastFMClient{
		baseURL:    lastfmBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    newPace(lastfmMinInterval),
	}, nil
}

func (l *LastFMClient) doRequest(ctx context.Context, method string, params url.Values, result any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("method", method)
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lastfm request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyResponse(resp); err != nil {
		return fmt.Errorf("lastfm %s: %w", method, err)
	}

	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode lastfm response: %w", err)
	}

	// Last.fm signals many failures as 200 with an error document.
	var apiErr lastfmError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != 0 {
		if apiErr.Error == 6 {
			return fmt.Errorf("lastfm %s: %s: %w", method, apiErr.Message, shared.ErrNotFound)
		}
		return fmt.Errorf("lastfm %s: %s: %w", method, apiErr.Message, shared.ErrAPIRequest)
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to decode lastfm response: %w", err)
	}
	return nil
}

// GetArtistInfo retrieves the artist biography, tags and similar names.
func (l *LastFMClient) GetArtistInfo(ctx context.Context, name string) (*models.ArtistInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("artist name: %w", shared.ErrInvalidInput)
	}

	params := url.Values{"artist": {name}, "autocorrect": {"1"}}
	var response lastfmArtistInfo
	if err := l.doRequest(ctx, "artist.getInfo", params, &response); err != nil {
		return nil, err
	}

	info := &models.ArtistInfo{
		Name:    response.Artist.Name,
		URL:     response.Artist.URL,
		Summary: response.Artist.Bio.Summary,
		Content: response.Artist.Bio.Content,
	}
	info.Listeners, _ = strconv.Atoi(response.Artist.Stats.Listeners)
	for _, tag := range response.Artist.Tags.Tag {
		info.Tags = append(info.Tags, strings.ToLower(tag.Name))
	}
	for _, similar := range response.Artist.Similar.Artist {
		info.Similar = append(info.Similar, similar.Name)
	}
	return info, nil
}

// GetSimilarArtists retrieves up to limit artists similar to the given name.
func (l *LastFMClient) GetSimilarArtists(ctx context.Context, name string, limit int) ([]models.SimilarArtist, error) {
	if name == "" {
		return nil, fmt.Errorf("artist name: %w", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"artist":      {name},
		"limit":       {strconv.Itoa(limit)},
		"autocorrect": {"1"},
	}
	var response lastfmSimilarArtists
	if err := l.doRequest(ctx, "artist.getSimilar", params, &response); err != nil {
		return nil, err
	}

	artists := make([]models.SimilarArtist, 0, len(response.SimilarArtists.Artist))
	for _, a := range response.SimilarArtists.Artist {
		artist := models.SimilarArtist{
			Name:  a.Name,
			URL:   a.URL,
			Image: largestLastFMImage(a.Image),
		}
		artist.Match, _ = strconv.ParseFloat(a.Match, 64)
		artists = append(artists, artist)
	}
	return artists, nil
}

// GetTrackInfo retrieves a track's top tags and duration.
func (l *LastFMClient) GetTrackInfo(ctx context.Context, artist, track string) (*models.TrackInfo, error) {
	if artist == "" || track == "" {
		return nil, fmt.Errorf("artist and track names: %w", shared.ErrInvalidInput)
	}

	params := url.Values{"artist": {artist}, "track": {track}, "autocorrect": {"1"}}
	var response lastfmTrackInfo
	if err := l.doRequest(ctx, "track.getInfo", params, &response); err != nil {
		return nil, err
	}

	info := &models.TrackInfo{
		Name:   response.Track.Name,
		Artist: response.Track.Artist.Name,
	}
	info.Duration, _ = strconv.Atoi(response.Track.Duration)
	for _, tag := range response.Track.TopTags.Tag {
		info.Tags = append(info.Tags, strings.ToLower(tag.Name))
	}
	return info, nil
}

// GetTopArtistsByTag retrieves a page of the most listened artists for a tag.
func (l *LastFMClient) GetTopArtistsByTag(ctx context.Context, tag string, limit, page int) ([]models.SimilarArtist, error) {
	if tag == "" {
		return nil, fmt.Errorf("tag: %w", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	params := url.Values{
		"tag":   {tag},
		"limit": {strconv.Itoa(limit)},
		"page":  {strconv.Itoa(page)},
	}
	var response lastfmTopArtists
	if err := l.doRequest(ctx, "tag.getTopArtists", params, &response); err != nil {
		return nil, err
	}

	artists := make([]models.SimilarArtist, 0, len(response.TopArtists.Artist))
	for _, a := range response.TopArtists.Artist {
		artists = append(artists, models.SimilarArtist{
			Name:  a.Name,
			URL:   a.URL,
			Image: largestLastFMImage(a.Image),
		})
	}
	return artists, nil
}

func largestLastFMImage(images []lastfmImage) string {
	best := ""
	for _, img := range images {
		if img.Text == "" {
			continue
		}
		best = img.Text
		if img.Size == "extralarge" || img.Size == "mega" {
			return img.Text
		}
	}
	return best
}
