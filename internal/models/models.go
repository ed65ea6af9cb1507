package models

import (
	"fmt"
	"time"
)

// EntityKind discriminates alias and favorite rows.
type EntityKind string

const (
	KindArtist EntityKind = "artist"
	KindAlbum  EntityKind = "album"
	KindTrack  EntityKind = "track"
)

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindArtist, KindAlbum, KindTrack:
		return true
	}
	return false
}

// Artist is a catalog artist row.
type Artist struct {
	ID              int64
	SpotifyID       string // provider id, unique when non-empty
	Name            string
	NormalizedName  string
	Genres          []string
	ImageURL        string
	Popularity      int
	Followers       int
	BioSummary      string
	BioContent      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastRefreshedAt *time.Time
}

// Validate checks invariants before persistence.
func (a *Artist) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("artist name is required")
	}
	if a.NormalizedName == "" {
		return fmt.Errorf("artist normalized name is required")
	}
	if a.Popularity < 0 || a.Popularity > 100 {
		return fmt.Errorf("artist popularity out of range: %d", a.Popularity)
	}
	if a.Followers < 0 {
		return fmt.Errorf("artist followers negative: %d", a.Followers)
	}
	return nil
}

// Album is a catalog album row. Each album belongs to exactly one artist.
type Album struct {
	ID             int64
	SpotifyID      string
	Name           string
	NormalizedName string
	ArtistID       int64
	ReleaseDate    string // ISO date, possibly truncated to year or year-month
	TotalTracks    int
	Label          string
	ImageURL       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *Album) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("album name is required")
	}
	if a.ArtistID == 0 {
		return fmt.Errorf("album artist reference is required")
	}
	return nil
}

// Track is a catalog track row.
type Track struct {
	ID             int64
	SpotifyID      string
	Name           string
	NormalizedName string
	ArtistID       int64
	AlbumID        *int64
	DurationMS     int
	Popularity     int
	PreviewURL     string
	ExternalURL    string
	DownloadPath   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t *Track) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("track name is required")
	}
	if t.ArtistID == 0 {
		return fmt.Errorf("track artist reference is required")
	}
	if t.Popularity < 0 || t.Popularity > 100 {
		return fmt.Errorf("track popularity out of range: %d", t.Popularity)
	}
	return nil
}

// Alias is one fuzzy-lookup row for an entity.
type Alias struct {
	ID         int64
	EntityKind EntityKind
	EntityID   int64
	Alias      string
	Normalized string
	Source     string
}

func (a *Alias) Validate() error {
	if !a.EntityKind.Valid() {
		return fmt.Errorf("invalid alias entity kind: %q", a.EntityKind)
	}
	if a.EntityID == 0 {
		return fmt.Errorf("alias entity reference is required")
	}
	if a.Normalized == "" {
		return fmt.Errorf("alias normalized form is required")
	}
	return nil
}

// Favorite marks an entity as favorited by a user. Favorited entities are
// protected from deletion and drive the daily refresh loop.
type Favorite struct {
	ID         int64
	UserID     string
	EntityKind EntityKind
	EntityID   int64
	CreatedAt  time.Time
}
