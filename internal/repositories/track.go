package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// TrackRepository handles track rows and the scans the link prefetch loop and
// curated lists depend on.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `
	id, spotify_id, name, normalized_name, artist_id, album_id, duration_ms,
	popularity, preview_url, external_url, download_path, created_at, updated_at
`

// Create inserts a new track and assigns its local id.
func (r *TrackRepository) Create(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := shared.NowUTC()
	if track.CreatedAt.IsZero() {
		track.CreatedAt = now
	}
	track.UpdatedAt = now

	query := `
		INSERT INTO tracks (spotify_id, name, normalized_name, artist_id, album_id,
			duration_ms, popularity, preview_url, external_url, download_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		nullString(track.SpotifyID),
		track.Name,
		track.NormalizedName,
		track.ArtistID,
		nullInt64(track.AlbumID),
		track.DurationMS,
		track.Popularity,
		nullString(track.PreviewURL),
		nullString(track.ExternalURL),
		nullString(track.DownloadPath),
		track.CreatedAt,
		track.UpdatedAt,
	)
	if err != nil {
		return wrapConstraint(err, "failed to insert track")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read track id: %w", err)
	}
	track.ID = id
	return nil
}

// Update rewrites all mutable columns of an existing track.
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	track.UpdatedAt = shared.NowUTC()

	query := `
		UPDATE tracks
		SET spotify_id = ?, name = ?, normalized_name = ?, artist_id = ?, album_id = ?,
			duration_ms = ?, popularity = ?, preview_url = ?, external_url = ?,
			download_path = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		nullString(track.SpotifyID),
		track.Name,
		track.NormalizedName,
		track.ArtistID,
		nullInt64(track.AlbumID),
		track.DurationMS,
		track.Popularity,
		nullString(track.PreviewURL),
		nullString(track.ExternalURL),
		nullString(track.DownloadPath),
		track.UpdatedAt,
		track.ID,
	)
	if err != nil {
		return wrapConstraint(err, "failed to update track")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track %d: %w", track.ID, shared.ErrNotFound)
	}
	return nil
}

// Get retrieves a track by local id.
func (r *TrackRepository) Get(id int64) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves a track by provider id.
func (r *TrackRepository) GetBySpotifyID(spotifyID string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRow(query, spotifyID))
}

// GetByArtistAndName retrieves a track by artist and normalized title.
func (r *TrackRepository) GetByArtistAndName(artistID int64, normalized string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE artist_id = ? AND normalized_name = ?
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, artistID, normalized))
}

// ListByArtist returns up to limit tracks of an artist, most popular first.
func (r *TrackRepository) ListByArtist(artistID int64, limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE artist_id = ?
		ORDER BY popularity DESC, id ASC
		LIMIT ?`
	return r.list(query, artistID, limit)
}

// ListByAlbum returns all tracks of an album.
func (r *TrackRepository) ListByAlbum(albumID int64) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE album_id = ?
		ORDER BY id ASC`
	return r.list(query, albumID)
}

// ListDownloaded returns tracks with a stored audio file, newest first.
func (r *TrackRepository) ListDownloaded(limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE download_path IS NOT NULL AND download_path != ''
		ORDER BY updated_at DESC
		LIMIT ?`
	return r.list(query, limit)
}

// ListWithoutLink returns tracks carrying a provider id but no youtube_links
// row, most popular first, for the prefetch loop.
func (r *TrackRepository) ListWithoutLink(limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks t
		WHERE t.spotify_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM youtube_links l WHERE l.spotify_track_id = t.spotify_id)
		ORDER BY t.popularity DESC, t.id ASC
		LIMIT ?`
	return r.list(query, limit)
}

// ListRecentlyAdded returns the newest catalog tracks, for discovery lists.
func (r *TrackRepository) ListRecentlyAdded(limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	return r.list(query, limit)
}

// ListByReleaseYear returns tracks whose album was released in the given
// year, most popular first.
func (r *TrackRepository) ListByReleaseYear(year int, limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks t
		JOIN albums a ON a.id = t.album_id
		WHERE a.release_date LIKE ?
		ORDER BY t.popularity DESC, t.id ASC
		LIMIT ?`
	return r.list(query, fmt.Sprintf("%04d%%", year), limit)
}

// ListByPopularity returns the most popular tracks across the catalog.
func (r *TrackRepository) ListByPopularity(limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		ORDER BY popularity DESC, id ASC
		LIMIT ?`
	return r.list(query, limit)
}

func (r *TrackRepository) list(query string, args ...any) ([]*models.Track, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		track        models.Track
		spotifyID    sql.NullString
		albumID      sql.NullInt64
		previewURL   sql.NullString
		externalURL  sql.NullString
		downloadPath sql.NullString
	)

	err := row.Scan(
		&track.ID, &spotifyID, &track.Name, &track.NormalizedName, &track.ArtistID,
		&albumID, &track.DurationMS, &track.Popularity, &previewURL,
		&externalURL, &downloadPath, &track.CreatedAt, &track.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	track.SpotifyID = scanNullString(spotifyID)
	if albumID.Valid {
		track.AlbumID = &albumID.Int64
	}
	track.PreviewURL = scanNullString(previewURL)
	track.ExternalURL = scanNullString(externalURL)
	track.DownloadPath = scanNullString(downloadPath)
	return &track, nil
}

func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	track, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return track, nil
}

func (r *TrackRepository) scanRow(rows *sql.Rows) (*models.Track, error) {
	track, err := scanTrack(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return track, nil
}
