package models

import "time"

// ProviderImage is an image resource attached to a provider entity.
type ProviderImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ProviderArtist is the uniform artist shape produced by provider clients.
type ProviderArtist struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Genres     []string        `json:"genres"`
	Images     []ProviderImage `json:"images"`
	Popularity int             `json:"popularity"`
	Followers  int             `json:"followers"`
}

// ProviderAlbum is the uniform album shape produced by provider clients.
type ProviderAlbum struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	ReleaseDate string           `json:"release_date"`
	TotalTracks int              `json:"total_tracks"`
	Images      []ProviderImage  `json:"images"`
	Artists     []ProviderArtist `json:"artists"`
	Label       string           `json:"label,omitempty"`
}

// ProviderTrack is the uniform track shape produced by provider clients.
type ProviderTrack struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Artists    []ProviderArtist `json:"artists"`
	Album      *ProviderAlbum   `json:"album,omitempty"`
	DurationMS int              `json:"duration_ms"`
	Popularity int              `json:"popularity"`
	PreviewURL string           `json:"preview_url,omitempty"`
	Explicit   bool             `json:"explicit"`
	URL        string           `json:"url,omitempty"`
}

// SimilarArtist is one row from the stats provider's similar-artist or
// tag-top-artist listings.
type SimilarArtist struct {
	Name      string  `json:"name"`
	Match     float64 `json:"match,omitempty"`
	URL       string  `json:"url,omitempty"`
	Image     string  `json:"image,omitempty"`
	Listeners int     `json:"listeners,omitempty"`
}

// ArtistInfo is the stats provider's artist biography payload.
type ArtistInfo struct {
	Name      string   `json:"name"`
	URL       string   `json:"url,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Listeners int      `json:"listeners,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Content   string   `json:"content,omitempty"`
	Similar   []string `json:"similar,omitempty"`
}

// TrackInfo is the stats provider's track payload, used for tag collection.
type TrackInfo struct {
	Name     string   `json:"name"`
	Artist   string   `json:"artist"`
	Tags     []string `json:"tags,omitempty"`
	Duration int      `json:"duration,omitempty"`
}

// Video is the uniform shape for a video search result or detail lookup.
type Video struct {
	VideoID      string          `json:"video_id"`
	Title        string          `json:"title"`
	ChannelTitle string          `json:"channel_title"`
	Description  string          `json:"description,omitempty"`
	PublishedAt  *time.Time      `json:"published_at,omitempty"`
	Thumbnails   []ProviderImage `json:"thumbnails,omitempty"`
}

// PrimaryArtistName returns the first credited artist name, or "".
func (t ProviderTrack) PrimaryArtistName() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// LargestImage returns the URL of the largest image, or "" when none exist.
func LargestImage(images []ProviderImage) string {
	best := ""
	bestArea := -1
	for _, img := range images {
		area := img.Width * img.Height
		if area > bestArea {
			best = img.URL
			bestArea = area
		}
	}
	return best
}
