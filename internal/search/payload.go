package search

import (
	"github.com/desertthunder/crate/internal/models"
)

// ArtistPair joins the two provider views of one artist. Either side may be
// missing when the artist was only seen on one provider.
type ArtistPair struct {
	Spotify *models.ProviderArtist `json:"spotify,omitempty"`
	LastFM  *models.SimilarArtist  `json:"lastfm,omitempty"`
}

// Name returns the display name from whichever side is present.
func (p ArtistPair) Name() string {
	if p.Spotify != nil {
		return p.Spotify.Name
	}
	if p.LastFM != nil {
		return p.LastFM.Name
	}
	return ""
}

// Payload is the orchestrated search response shape.
type Payload struct {
	Query          string                 `json:"query"`
	Page           int                    `json:"page"`
	Limit          int                    `json:"limit"`
	HasMoreArtists bool                   `json:"has_more_artists"`
	HasMoreLastFM  bool                   `json:"has_more_lastfm"`
	Main           *ArtistPair            `json:"main,omitempty"`
	Artists        []ArtistPair           `json:"artists"`
	Related        []ArtistPair           `json:"related"`
	Tracks         []models.ProviderTrack `json:"tracks"`
	LastFMTop      []models.SimilarArtist `json:"lastfm_top"`
}

// ProfilePayload is the artist-profile response shape.
type ProfilePayload struct {
	Query   string                 `json:"query"`
	Mode    string                 `json:"mode"`
	Main    *ArtistPair            `json:"main,omitempty"`
	Similar []ArtistPair           `json:"similar"`
	Tracks  []models.ProviderTrack `json:"tracks"`
}

// TracksPayload is the tracks-quick response shape.
type TracksPayload struct {
	Query  string                 `json:"query"`
	Tracks []models.ProviderTrack `json:"tracks"`
}

// artistToProvider converts a stored artist row back into the uniform
// provider shape used throughout the payloads.
func artistToProvider(a *models.Artist) *models.ProviderArtist {
	p := &models.ProviderArtist{
		ID:         a.SpotifyID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
		Followers:  a.Followers,
	}
	if a.ImageURL != "" {
		p.Images = []models.ProviderImage{{URL: a.ImageURL}}
	}
	return p
}

// trackToProvider converts a stored track row into the trimmed track shape.
func trackToProvider(t *models.Track, artist *models.Artist, album *models.Album) models.ProviderTrack {
	p := models.ProviderTrack{
		ID:         t.SpotifyID,
		Name:       t.Name,
		DurationMS: t.DurationMS,
		Popularity: t.Popularity,
		PreviewURL: t.PreviewURL,
		URL:        t.ExternalURL,
	}
	if artist != nil {
		p.Artists = []models.ProviderArtist{*artistToProvider(artist)}
	}
	if album != nil {
		converted := models.ProviderAlbum{
			ID:          album.SpotifyID,
			Name:        album.Name,
			ReleaseDate: album.ReleaseDate,
			TotalTracks: album.TotalTracks,
		}
		if album.ImageURL != "" {
			converted.Images = []models.ProviderImage{{URL: album.ImageURL}}
		}
		p.Album = &converted
	}
	return p
}
