package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// ArtistRepository handles artist rows and the indexed lookups the resolver
// and background loops depend on.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new ArtistRepository with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

const artistColumns = `
	id, spotify_id, name, normalized_name, genres, image_url, popularity,
	followers, bio_summary, bio_content, created_at, updated_at, last_refreshed_at
`

// Create inserts a new artist and assigns its local id.
func (r *ArtistRepository) Create(artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := shared.NowUTC()
	if artist.CreatedAt.IsZero() {
		artist.CreatedAt = now
	}
	artist.UpdatedAt = now

	query := `
		INSERT INTO artists (spotify_id, name, normalized_name, genres, image_url,
			popularity, followers, bio_summary, bio_content, created_at, updated_at, last_refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastRefreshed any
	if artist.LastRefreshedAt != nil {
		lastRefreshed = *artist.LastRefreshedAt
	}

	result, err := r.db.Exec(query,
		nullString(artist.SpotifyID),
		artist.Name,
		artist.NormalizedName,
		encodeGenres(artist.Genres),
		nullString(artist.ImageURL),
		artist.Popularity,
		artist.Followers,
		nullString(artist.BioSummary),
		nullString(artist.BioContent),
		artist.CreatedAt,
		artist.UpdatedAt,
		lastRefreshed,
	)
	if err != nil {
		return wrapConstraint(err, "failed to insert artist")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read artist id: %w", err)
	}
	artist.ID = id
	return nil
}

// Update rewrites all mutable columns of an existing artist.
func (r *ArtistRepository) Update(artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artist.UpdatedAt = shared.NowUTC()

	query := `
		UPDATE artists
		SET spotify_id = ?, name = ?, normalized_name = ?, genres = ?, image_url = ?,
			popularity = ?, followers = ?, bio_summary = ?, bio_content = ?,
			updated_at = ?, last_refreshed_at = ?
		WHERE id = ?
	`

	var lastRefreshed any
	if artist.LastRefreshedAt != nil {
		lastRefreshed = *artist.LastRefreshedAt
	}

	result, err := r.db.Exec(query,
		nullString(artist.SpotifyID),
		artist.Name,
		artist.NormalizedName,
		encodeGenres(artist.Genres),
		nullString(artist.ImageURL),
		artist.Popularity,
		artist.Followers,
		nullString(artist.BioSummary),
		nullString(artist.BioContent),
		artist.UpdatedAt,
		lastRefreshed,
		artist.ID,
	)
	if err != nil {
		return wrapConstraint(err, "failed to update artist")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("artist %d: %w", artist.ID, shared.ErrNotFound)
	}
	return nil
}

// Get retrieves an artist by local id.
func (r *ArtistRepository) Get(id int64) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves an artist by provider id.
func (r *ArtistRepository) GetBySpotifyID(spotifyID string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRow(query, spotifyID))
}

// GetByNormalizedName retrieves the best artist row for a normalized name,
// preferring the most popular when duplicates exist.
func (r *ArtistRepository) GetByNormalizedName(normalized string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists
		WHERE normalized_name = ?
		ORDER BY popularity DESC, id ASC
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, normalized))
}

// ListStale returns up to limit artists whose updated_at is missing or older
// than cutoff, ordered oldest first, popular first within a timestamp.
func (r *ArtistRepository) ListStale(cutoff time.Time, limit int) ([]*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists
		WHERE updated_at IS NULL OR updated_at < ?
		ORDER BY updated_at ASC, popularity DESC
		LIMIT ?`
	return r.list(query, cutoff, limit)
}

// ListWithEmptyGenres returns up to limit artists without genre tags, most
// popular first, for the genre backfill loop.
func (r *ArtistRepository) ListWithEmptyGenres(limit int) ([]*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists
		WHERE genres = '[]' OR genres = '' OR genres IS NULL
		ORDER BY popularity DESC, id ASC
		LIMIT ?`
	return r.list(query, limit)
}

// ListMissingMetadata returns artists lacking a bio, genres or an image,
// most popular first, for the daily refresh gap fill.
func (r *ArtistRepository) ListMissingMetadata(limit int) ([]*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists
		WHERE bio_summary IS NULL OR genres = '[]' OR image_url IS NULL
		ORDER BY popularity DESC, id ASC
		LIMIT ?`
	return r.list(query, limit)
}

// ListByGenres returns artists sharing any of the given genre tags, excluding
// excludeID, most popular first.
func (r *ArtistRepository) ListByGenres(genres []string, excludeID int64, limit int) ([]*models.Artist, error) {
	if len(genres) == 0 {
		return nil, nil
	}

	query := `SELECT ` + artistColumns + ` FROM artists WHERE id != ? AND (`
	args := []any{excludeID}
	for i, g := range genres {
		if i > 0 {
			query += " OR "
		}
		query += "genres LIKE ?"
		args = append(args, `%"`+g+`"%`)
	}
	query += `) ORDER BY popularity DESC, id ASC LIMIT ?`
	args = append(args, limit)

	return r.list(query, args...)
}

// Delete removes an artist; albums, tracks and aliases cascade via foreign
// keys. The favorite protection rule lives in the catalog writer.
func (r *ArtistRepository) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM aliases WHERE entity_kind = 'artist' AND entity_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete artist aliases: %w", err)
	}

	result, err := r.db.Exec(`DELETE FROM artists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("artist %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *ArtistRepository) list(query string, args ...any) ([]*models.Artist, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtist(row rowScanner) (*models.Artist, error) {
	var (
		artist        models.Artist
		spotifyID     sql.NullString
		genres        string
		imageURL      sql.NullString
		bioSummary    sql.NullString
		bioContent    sql.NullString
		lastRefreshed sql.NullTime
	)

	err := row.Scan(
		&artist.ID, &spotifyID, &artist.Name, &artist.NormalizedName, &genres,
		&imageURL, &artist.Popularity, &artist.Followers, &bioSummary,
		&bioContent, &artist.CreatedAt, &artist.UpdatedAt, &lastRefreshed,
	)
	if err != nil {
		return nil, err
	}

	artist.SpotifyID = scanNullString(spotifyID)
	artist.Genres = decodeGenres(genres)
	artist.ImageURL = scanNullString(imageURL)
	artist.BioSummary = scanNullString(bioSummary)
	artist.BioContent = scanNullString(bioContent)
	if lastRefreshed.Valid {
		artist.LastRefreshedAt = &lastRefreshed.Time
	}
	return &artist, nil
}

func (r *ArtistRepository) scanOne(row *sql.Row) (*models.Artist, error) {
	artist, err := scanArtist(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artist: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}
	return artist, nil
}

func (r *ArtistRepository) scanRow(rows *sql.Rows) (*models.Artist, error) {
	artist, err := scanArtist(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}
	return artist, nil
}
