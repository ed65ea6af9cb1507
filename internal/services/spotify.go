// Spotify Web API client, response types based on
// https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageLimit = 50
)

type spotifyFollowers struct {
	Total int `json:"total"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyArtist struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Genres     []string         `json:"genres"`
	Images     []spotifyImage   `json:"images"`
	Popularity int              `json:"popularity"`
	Followers  spotifyFollowers `json:"followers"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumGroup  string          `json:"album_group"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Label       string          `json:"label"`
	Images      []spotifyImage  `json:"images"`
	Artists     []spotifyArtist `json:"artists"`
}

type spotifyExternalURLs struct {
	Spotify string `json:"spotify"`
}

type spotifyTrack struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Artists      []spotifyArtist     `json:"artists"`
	Album        *spotifyAlbum       `json:"album"`
	DurationMS   int                 `json:"duration_ms"`
	Popularity   int                 `json:"popularity"`
	PreviewURL   string              `json:"preview_url"`
	Explicit     bool                `json:"explicit"`
	ExternalURLs spotifyExternalURLs `json:"external_urls"`
}

type spotifyPage[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// SpotifyClient is the catalog metadata client. Tokens come from the
// client-credentials flow, cached until expiry and re-acquired on 401.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu     sync.Mutex
	config clientcredentials.Config
	source oauth2.TokenSource
}

// NewSpotifyClient creates a client from application credentials.
func NewSpotifyClient(clientID, clientSecret string) (*SpotifyClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify: %w", shared.ErrMissingCredentials)
	}
	return &SpotifyClient{
		baseURL:    spotifyBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    newPace(0),
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
	}, nil
}

func (s *SpotifyClient) token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	if s.source == nil {
		s.source = s.config.TokenSource(context.WithoutCancel(ctx))
	}
	source := s.source
	s.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("spotify token exchange: %w", err)
	}
	return token, nil
}

func (s *SpotifyClient) dropToken() {
	s.mu.Lock()
	s.source = nil
	s.mu.Unlock()
}

// doRequest performs an authenticated GET, retrying once after a token
// refresh on 401 and once after back-off on 429.
func (s *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	refreshed := false
	backedOff := false

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		token, err := s.token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("spotify request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && !refreshed {
			resp.Body.Close()
			s.dropToken()
			refreshed = true
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests && !backedOff {
			wait := retryAfter(resp, 2*time.Second)
			resp.Body.Close()
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			backedOff = true
			continue
		}

		if err := classifyResponse(resp); err != nil {
			resp.Body.Close()
			return fmt.Errorf("spotify %s: %w", endpoint, err)
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode spotify response: %w", err)
		}
		return nil
	}
}

// SearchArtists searches the provider catalog by free-text query.
func (s *SpotifyClient) SearchArtists(ctx context.Context, q string, limit int) ([]models.ProviderArtist, error) {
	if q == "" {
		return nil, nil
	}
	if limit <= 0 || limit > spotifyPageLimit {
		limit = 10
	}

	var response struct {
		Artists spotifyPage[spotifyArtist] `json:"artists"`
	}
	endpoint := fmt.Sprintf("/search?q=%s&type=artist&limit=%d", url.QueryEscape(q), limit)
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	artists := make([]models.ProviderArtist, 0, len(response.Artists.Items))
	for _, a := range response.Artists.Items {
		artists = append(artists, convertSpotifyArtist(a))
	}
	return artists, nil
}

// GetArtist retrieves one artist by provider id.
func (s *SpotifyClient) GetArtist(ctx context.Context, id string) (*models.ProviderArtist, error) {
	var raw spotifyArtist
	if err := s.doRequest(ctx, "/artists/"+url.PathEscape(id), &raw); err != nil {
		return nil, err
	}
	artist := convertSpotifyArtist(raw)
	return &artist, nil
}

// GetArtistAlbums lists an artist's albums filtered by release groups. With
// fetchAll the full listing is paged through, otherwise one page is
// returned.
func (s *SpotifyClient) GetArtistAlbums(ctx context.Context, id string, groups []string, fetchAll bool) ([]models.ProviderAlbum, error) {
	if len(groups) == 0 {
		groups = []string{"album", "single", "compilation"}
	}

	var albums []models.ProviderAlbum
	offset := 0
	for {
		endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=%s&limit=%d&offset=%d",
			url.PathEscape(id), url.QueryEscape(strings.Join(groups, ",")), spotifyPageLimit, offset)

		var page spotifyPage[spotifyAlbum]
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, a := range page.Items {
			albums = append(albums, convertSpotifyAlbum(a))
		}

		if !fetchAll || page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += spotifyPageLimit
	}
	return albums, nil
}

// GetAlbum retrieves one album by provider id, including the label.
func (s *SpotifyClient) GetAlbum(ctx context.Context, id string) (*models.ProviderAlbum, error) {
	var raw spotifyAlbum
	if err := s.doRequest(ctx, "/albums/"+url.PathEscape(id), &raw); err != nil {
		return nil, err
	}
	album := convertSpotifyAlbum(raw)
	return &album, nil
}

// GetAlbumTracks lists an album's tracks, paging through the full listing.
func (s *SpotifyClient) GetAlbumTracks(ctx context.Context, id string) ([]models.ProviderTrack, error) {
	var tracks []models.ProviderTrack
	offset := 0
	for {
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d&offset=%d",
			url.PathEscape(id), spotifyPageLimit, offset)

		var page spotifyPage[spotifyTrack]
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Items {
			tracks = append(tracks, convertSpotifyTrack(t))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += spotifyPageLimit
	}
	return tracks, nil
}

// SearchTracks searches the provider catalog for tracks.
func (s *SpotifyClient) SearchTracks(ctx context.Context, q string, limit int) ([]models.ProviderTrack, error) {
	if q == "" {
		return nil, nil
	}
	if limit <= 0 || limit > spotifyPageLimit {
		limit = 10
	}

	var response struct {
		Tracks spotifyPage[spotifyTrack] `json:"tracks"`
	}
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(q), limit)
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.ProviderTrack, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		tracks = append(tracks, convertSpotifyTrack(t))
	}
	return tracks, nil
}

// GetRecommendations returns recommended tracks for seed artist and track
// ids (up to 5 seeds combined).
func (s *SpotifyClient) GetRecommendations(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]models.ProviderTrack, error) {
	if len(seedArtists) == 0 && len(seedTracks) == 0 {
		return nil, fmt.Errorf("recommendations need at least one seed: %w", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	if len(seedArtists) > 0 {
		params.Set("seed_artists", strings.Join(seedArtists, ","))
	}
	if len(seedTracks) > 0 {
		params.Set("seed_tracks", strings.Join(seedTracks, ","))
	}

	var response struct {
		Tracks []spotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, "/recommendations?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	tracks := make([]models.ProviderTrack, 0, len(response.Tracks))
	for _, t := range response.Tracks {
		tracks = append(tracks, convertSpotifyTrack(t))
	}
	return tracks, nil
}

func convertSpotifyArtist(a spotifyArtist) models.ProviderArtist {
	return models.ProviderArtist{
		ID:         a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Images:     convertSpotifyImages(a.Images),
		Popularity: a.Popularity,
		Followers:  a.Followers.Total,
	}
}

func convertSpotifyAlbum(a spotifyAlbum) models.ProviderAlbum {
	album := models.ProviderAlbum{
		ID:          a.ID,
		Name:        a.Name,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.TotalTracks,
		Images:      convertSpotifyImages(a.Images),
		Label:       a.Label,
	}
	for _, artist := range a.Artists {
		album.Artists = append(album.Artists, convertSpotifyArtist(artist))
	}
	return album
}

func convertSpotifyTrack(t spotifyTrack) models.ProviderTrack {
	track := models.ProviderTrack{
		ID:         t.ID,
		Name:       t.Name,
		DurationMS: t.DurationMS,
		Popularity: t.Popularity,
		PreviewURL: t.PreviewURL,
		Explicit:   t.Explicit,
		URL:        t.ExternalURLs.Spotify,
	}
	for _, artist := range t.Artists {
		track.Artists = append(track.Artists, convertSpotifyArtist(artist))
	}
	if t.Album != nil {
		album := convertSpotifyAlbum(*t.Album)
		track.Album = &album
	}
	return track
}

func convertSpotifyImages(images []spotifyImage) []models.ProviderImage {
	if len(images) == 0 {
		return nil
	}
	out := make([]models.ProviderImage, 0, len(images))
	for _, img := range images {
		out = append(out, models.ProviderImage{URL: img.URL, Width: img.Width, Height: img.Height})
	}
	return out
}
