package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// AlbumRepository handles album rows.
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new AlbumRepository with the given database connection
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

const albumColumns = `
	id, spotify_id, name, normalized_name, artist_id, release_date,
	total_tracks, label, image_url, created_at, updated_at
`

// Create inserts a new album and assigns its local id.
func (r *AlbumRepository) Create(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := shared.NowUTC()
	if album.CreatedAt.IsZero() {
		album.CreatedAt = now
	}
	album.UpdatedAt = now

	query := `
		INSERT INTO albums (spotify_id, name, normalized_name, artist_id, release_date,
			total_tracks, label, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		nullString(album.SpotifyID),
		album.Name,
		album.NormalizedName,
		album.ArtistID,
		nullString(album.ReleaseDate),
		album.TotalTracks,
		nullString(album.Label),
		nullString(album.ImageURL),
		album.CreatedAt,
		album.UpdatedAt,
	)
	if err != nil {
		return wrapConstraint(err, "failed to insert album")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read album id: %w", err)
	}
	album.ID = id
	return nil
}

// Update rewrites all mutable columns of an existing album.
func (r *AlbumRepository) Update(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	album.UpdatedAt = shared.NowUTC()

	query := `
		UPDATE albums
		SET spotify_id = ?, name = ?, normalized_name = ?, artist_id = ?,
			release_date = ?, total_tracks = ?, label = ?, image_url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		nullString(album.SpotifyID),
		album.Name,
		album.NormalizedName,
		album.ArtistID,
		nullString(album.ReleaseDate),
		album.TotalTracks,
		nullString(album.Label),
		nullString(album.ImageURL),
		album.UpdatedAt,
		album.ID,
	)
	if err != nil {
		return wrapConstraint(err, "failed to update album")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("album %d: %w", album.ID, shared.ErrNotFound)
	}
	return nil
}

// Get retrieves an album by local id.
func (r *AlbumRepository) Get(id int64) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves an album by provider id.
func (r *AlbumRepository) GetBySpotifyID(spotifyID string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRow(query, spotifyID))
}

// GetByArtistAndName retrieves an album by artist and normalized name, the
// fallback key when a provider id is absent.
func (r *AlbumRepository) GetByArtistAndName(artistID int64, normalized string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums
		WHERE artist_id = ? AND normalized_name = ?
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, artistID, normalized))
}

// ListByArtist returns all albums of an artist, newest release first.
func (r *AlbumRepository) ListByArtist(artistID int64) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums
		WHERE artist_id = ?
		ORDER BY release_date DESC, id ASC`

	rows, err := r.db.Query(query, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		album, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return albums, nil
}

func scanAlbum(row rowScanner) (*models.Album, error) {
	var (
		album       models.Album
		spotifyID   sql.NullString
		releaseDate sql.NullString
		label       sql.NullString
		imageURL    sql.NullString
	)

	err := row.Scan(
		&album.ID, &spotifyID, &album.Name, &album.NormalizedName, &album.ArtistID,
		&releaseDate, &album.TotalTracks, &label, &imageURL,
		&album.CreatedAt, &album.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	album.SpotifyID = scanNullString(spotifyID)
	album.ReleaseDate = scanNullString(releaseDate)
	album.Label = scanNullString(label)
	album.ImageURL = scanNullString(imageURL)
	return &album, nil
}

func (r *AlbumRepository) scanOne(row *sql.Row) (*models.Album, error) {
	album, err := scanAlbum(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("album: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}
	return album, nil
}

func (r *AlbumRepository) scanRow(rows *sql.Rows) (*models.Album, error) {
	album, err := scanAlbum(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}
	return album, nil
}
