package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// YouTubeLinkRepository stores per-track video resolution state keyed by
// provider track id.
type YouTubeLinkRepository struct {
	db *sql.DB
}

// NewYouTubeLinkRepository creates a new YouTubeLinkRepository with the given database connection
func NewYouTubeLinkRepository(db *sql.DB) *YouTubeLinkRepository {
	return &YouTubeLinkRepository{db: db}
}

const linkColumns = `
	spotify_track_id, video_id, download_path, status, file_size, error_message, updated_at
`

// Get retrieves the link row for a provider track id.
func (r *YouTubeLinkRepository) Get(spotifyTrackID string) (*models.YouTubeLink, error) {
	query := `SELECT ` + linkColumns + ` FROM youtube_links WHERE spotify_track_id = ?`
	link, err := scanLink(r.db.QueryRow(query, spotifyTrackID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("youtube link %s: %w", spotifyTrackID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan youtube link: %w", err)
	}
	return link, nil
}

// statusRank mirrors models.LinkStatus precedence for in-statement merges.
const statusRank = `
	CASE %s
		WHEN 'error' THEN 1
		WHEN 'missing' THEN 2
		WHEN 'video_not_found' THEN 3
		WHEN 'link_found' THEN 4
		WHEN 'completed' THEN 5
		ELSE 0
	END
`

// Upsert writes a link row, keeping the stored status when it outranks the
// incoming one. A new video id always lands, and error messages are cleared
// whenever the row leaves the error state. The merge happens inside the
// conflict clause so concurrent writers cannot lose each other's state.
func (r *YouTubeLinkRepository) Upsert(link *models.YouTubeLink) error {
	if link.SpotifyTrackID == "" {
		return fmt.Errorf("youtube link track id: %w", shared.ErrInvalidInput)
	}

	incoming := *link
	if incoming.Status != models.LinkError {
		incoming.ErrorMessage = ""
	}
	incoming.UpdatedAt = shared.NowUTC()

	existingRank := fmt.Sprintf(statusRank, "youtube_links.status")
	incomingRank := fmt.Sprintf(statusRank, "excluded.status")
	mergedStatus := `CASE WHEN ` + existingRank + ` > ` + incomingRank + ` THEN youtube_links.status ELSE excluded.status END`

	query := `
		INSERT INTO youtube_links (spotify_track_id, video_id, download_path, status, file_size, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_track_id) DO UPDATE SET
			video_id = COALESCE(excluded.video_id, youtube_links.video_id),
			download_path = COALESCE(excluded.download_path, youtube_links.download_path),
			status = ` + mergedStatus + `,
			file_size = COALESCE(excluded.file_size, youtube_links.file_size),
			error_message = CASE WHEN (` + mergedStatus + `) = 'error' THEN excluded.error_message ELSE NULL END,
			updated_at = excluded.updated_at
	`

	var fileSize any
	if incoming.FileSize != nil {
		fileSize = *incoming.FileSize
	}
	_, err := r.db.Exec(query,
		incoming.SpotifyTrackID,
		nullString(incoming.VideoID),
		nullString(incoming.DownloadPath),
		string(incoming.Status),
		fileSize,
		nullString(incoming.ErrorMessage),
		incoming.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert youtube link: %w", err)
	}

	merged, err := r.Get(incoming.SpotifyTrackID)
	if err != nil {
		return err
	}
	*link = *merged
	return nil
}

// Overwrite replaces a link row unconditionally, bypassing precedence. Used
// by forced refreshes.
func (r *YouTubeLinkRepository) Overwrite(link *models.YouTubeLink) error {
	if link.SpotifyTrackID == "" {
		return fmt.Errorf("youtube link track id: %w", shared.ErrInvalidInput)
	}
	link.UpdatedAt = shared.NowUTC()

	query := `
		INSERT INTO youtube_links (spotify_track_id, video_id, download_path, status, file_size, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_track_id) DO UPDATE SET
			video_id = excluded.video_id,
			download_path = excluded.download_path,
			status = excluded.status,
			file_size = excluded.file_size,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`

	var fileSize any
	if link.FileSize != nil {
		fileSize = *link.FileSize
	}
	_, err := r.db.Exec(query,
		link.SpotifyTrackID,
		nullString(link.VideoID),
		nullString(link.DownloadPath),
		string(link.Status),
		fileSize,
		nullString(link.ErrorMessage),
		link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write youtube link: %w", err)
	}
	return nil
}

// ListByStatus returns links in the given state, oldest first.
func (r *YouTubeLinkRepository) ListByStatus(status models.LinkStatus, limit int) ([]*models.YouTubeLink, error) {
	query := `SELECT ` + linkColumns + ` FROM youtube_links
		WHERE status = ?
		ORDER BY updated_at ASC
		LIMIT ?`
	return r.list(query, string(status), limit)
}

// ListRetryable returns error and not-found links whose cooldown has lapsed.
func (r *YouTubeLinkRepository) ListRetryable(status models.LinkStatus, before time.Time, limit int) ([]*models.YouTubeLink, error) {
	query := `SELECT ` + linkColumns + ` FROM youtube_links
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?`
	return r.list(query, string(status), before, limit)
}

// CountByStatus returns row counts grouped by status.
func (r *YouTubeLinkRepository) CountByStatus() (map[models.LinkStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM youtube_links GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count youtube links: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.LinkStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan link count: %w", err)
		}
		counts[models.LinkStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

func (r *YouTubeLinkRepository) list(query string, args ...any) ([]*models.YouTubeLink, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query youtube links: %w", err)
	}
	defer rows.Close()

	var links []*models.YouTubeLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan youtube link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return links, nil
}

func scanLink(row rowScanner) (*models.YouTubeLink, error) {
	var (
		link         models.YouTubeLink
		videoID      sql.NullString
		downloadPath sql.NullString
		fileSize     sql.NullInt64
		errorMessage sql.NullString
		status       string
	)

	err := row.Scan(
		&link.SpotifyTrackID, &videoID, &downloadPath, &status,
		&fileSize, &errorMessage, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.VideoID = scanNullString(videoID)
	link.DownloadPath = scanNullString(downloadPath)
	link.Status = models.LinkStatus(status)
	if fileSize.Valid {
		link.FileSize = &fileSize.Int64
	}
	link.ErrorMessage = scanNullString(errorMessage)
	return &link, nil
}
