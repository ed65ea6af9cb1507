package repositories

import (
	"database/sql"
	"testing"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func createTestArtist(t *testing.T, db *sql.DB, name, spotifyID string) *models.Artist {
	t.Helper()

	artist := &models.Artist{
		SpotifyID:      spotifyID,
		Name:           name,
		NormalizedName: normalize.Normalize(name),
		Genres:         []string{"rock"},
		Popularity:     70,
		Followers:      100000,
	}
	if err := NewArtistRepository(db).Create(artist); err != nil {
		t.Fatalf("failed to create test artist: %v", err)
	}
	return artist
}

func createTestTrack(t *testing.T, db *sql.DB, artistID int64, name, spotifyID string) *models.Track {
	t.Helper()

	track := &models.Track{
		SpotifyID:      spotifyID,
		Name:           name,
		NormalizedName: normalize.Normalize(name),
		ArtistID:       artistID,
		DurationMS:     210000,
		Popularity:     60,
	}
	if err := NewTrackRepository(db).Create(track); err != nil {
		t.Fatalf("failed to create test track: %v", err)
	}
	return track
}
