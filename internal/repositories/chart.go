package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// ChartRepository stores raw scraped chart rows, their catalog matches and
// the derived per-track aggregates.
type ChartRepository struct {
	db *sql.DB
}

// NewChartRepository creates a new ChartRepository with the given database connection
func NewChartRepository(db *sql.DB) *ChartRepository {
	return &ChartRepository{db: db}
}

// SaveEntries inserts scraped chart rows, ignoring weeks already stored.
// Returns the number of newly inserted rows.
func (r *ChartRepository) SaveEntries(entries []*models.ChartEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin chart transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR IGNORE INTO chart_entries (source, chart, chart_date, rank, title, artist)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	inserted := 0
	for _, e := range entries {
		result, err := tx.Exec(query, e.Source, e.Chart, e.ChartDate, e.Rank, e.Title, e.Artist)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chart entry: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chart entries: %w", err)
	}
	return inserted, nil
}

// ListUnmatchedEntries returns raw chart rows without a track_chart_entries
// row for the same week, oldest weeks first.
func (r *ChartRepository) ListUnmatchedEntries(source, chart string, limit int) ([]*models.ChartEntry, error) {
	query := `
		SELECT e.id, e.source, e.chart, e.chart_date, e.rank, e.title, e.artist
		FROM chart_entries e
		WHERE e.source = ? AND e.chart = ?
			AND NOT EXISTS (
				SELECT 1 FROM track_chart_entries t
				WHERE t.source = e.source AND t.chart = e.chart
					AND t.chart_date = e.chart_date AND t.rank = e.rank
			)
		ORDER BY e.chart_date ASC, e.rank ASC
		LIMIT ?
	`

	rows, err := r.db.Query(query, source, chart, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ChartEntry
	for rows.Next() {
		var e models.ChartEntry
		if err := rows.Scan(&e.ID, &e.Source, &e.Chart, &e.ChartDate, &e.Rank, &e.Title, &e.Artist); err != nil {
			return nil, fmt.Errorf("failed to scan chart entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// HasWeek reports whether any rows exist for the given week.
func (r *ChartRepository) HasWeek(source, chart, chartDate string) (bool, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM chart_entries WHERE source = ? AND chart = ? AND chart_date = ?`,
		source, chart, chartDate,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count chart week: %w", err)
	}
	return n > 0, nil
}

// SaveMatch records a matched chart row and refreshes the track aggregate.
func (r *ChartRepository) SaveMatch(match *models.TrackChartEntry) error {
	query := `
		INSERT OR IGNORE INTO track_chart_entries (track_id, source, chart, chart_date, rank)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, match.TrackID, match.Source, match.Chart, match.ChartDate, match.Rank); err != nil {
		return fmt.Errorf("failed to insert chart match: %w", err)
	}
	return r.RecomputeStats(match.TrackID, match.Source, match.Chart)
}

// RecomputeStats rebuilds the (track, source, chart) aggregate from its
// matched rows. A track can occupy several rank slots in one week (remaster
// duplicates on the raw chart), so week counters count distinct weeks.
func (r *ChartRepository) RecomputeStats(trackID int64, source, chart string) error {
	query := `
		INSERT INTO track_chart_stats (track_id, source, chart, best_position,
			weeks_on_chart, weeks_at_one, weeks_top5, weeks_top10,
			first_chart_date, last_chart_date)
		SELECT track_id, source, chart, MIN(rank),
			COUNT(DISTINCT chart_date),
			COUNT(DISTINCT CASE WHEN rank = 1 THEN chart_date END),
			COUNT(DISTINCT CASE WHEN rank <= 5 THEN chart_date END),
			COUNT(DISTINCT CASE WHEN rank <= 10 THEN chart_date END),
			MIN(chart_date), MAX(chart_date)
		FROM track_chart_entries
		WHERE track_id = ? AND source = ? AND chart = ?
		GROUP BY track_id, source, chart
		ON CONFLICT(track_id, source, chart) DO UPDATE SET
			best_position = excluded.best_position,
			weeks_on_chart = excluded.weeks_on_chart,
			weeks_at_one = excluded.weeks_at_one,
			weeks_top5 = excluded.weeks_top5,
			weeks_top10 = excluded.weeks_top10,
			first_chart_date = excluded.first_chart_date,
			last_chart_date = excluded.last_chart_date
	`
	if _, err := r.db.Exec(query, trackID, source, chart); err != nil {
		return fmt.Errorf("failed to recompute chart stats: %w", err)
	}
	return nil
}

// GetStats returns all chart aggregates for a track by local id.
func (r *ChartRepository) GetStats(trackID int64) ([]*models.TrackChartStats, error) {
	query := `
		SELECT track_id, source, chart, best_position, weeks_on_chart,
			weeks_at_one, weeks_top5, weeks_top10, first_chart_date, last_chart_date
		FROM track_chart_stats
		WHERE track_id = ?
		ORDER BY source, chart
	`
	return r.listStats(query, trackID)
}

// GetStatsBySpotifyID returns chart aggregates resolved through the track's
// provider id.
func (r *ChartRepository) GetStatsBySpotifyID(spotifyID string) ([]*models.TrackChartStats, error) {
	query := `
		SELECT s.track_id, s.source, s.chart, s.best_position, s.weeks_on_chart,
			s.weeks_at_one, s.weeks_top5, s.weeks_top10, s.first_chart_date, s.last_chart_date
		FROM track_chart_stats s
		JOIN tracks t ON t.id = s.track_id
		WHERE t.spotify_id = ?
		ORDER BY s.source, s.chart
	`
	return r.listStats(query, spotifyID)
}

// ListTopCharting returns the track ids with the strongest chart history.
func (r *ChartRepository) ListTopCharting(limit int) ([]int64, error) {
	query := `
		SELECT track_id FROM track_chart_stats
		ORDER BY weeks_at_one DESC, best_position ASC, weeks_on_chart DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top charting tracks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

func (r *ChartRepository) listStats(query string, args ...any) ([]*models.TrackChartStats, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.TrackChartStats
	for rows.Next() {
		var (
			s     models.TrackChartStats
			first sql.NullString
			last  sql.NullString
		)
		err := rows.Scan(&s.TrackID, &s.Source, &s.Chart, &s.BestPosition,
			&s.WeeksOnChart, &s.WeeksAtOne, &s.WeeksTop5, &s.WeeksTop10, &first, &last)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chart stats: %w", err)
		}
		s.FirstChartDate = scanNullString(first)
		s.LastChartDate = scanNullString(last)
		stats = append(stats, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stats, nil
}

// GetScanState returns the scraper cursor for a chart, or ErrNotFound.
func (r *ChartRepository) GetScanState(source, chart string) (*models.ChartScanState, error) {
	query := `SELECT source, chart, last_scanned_date, backfill_complete
		FROM chart_scan_state WHERE source = ? AND chart = ?`

	var (
		state    models.ChartScanState
		lastDate sql.NullString
	)
	err := r.db.QueryRow(query, source, chart).Scan(
		&state.Source, &state.Chart, &lastDate, &state.BackfillComplete,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chart scan state %s/%s: %w", source, chart, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chart state: %w", err)
	}
	state.LastScannedDate = scanNullString(lastDate)
	return &state, nil
}

// SaveScanState writes the scraper cursor for a chart.
func (r *ChartRepository) SaveScanState(state *models.ChartScanState) error {
	query := `
		INSERT INTO chart_scan_state (source, chart, last_scanned_date, backfill_complete)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source, chart) DO UPDATE SET
			last_scanned_date = excluded.last_scanned_date,
			backfill_complete = excluded.backfill_complete
	`
	_, err := r.db.Exec(query, state.Source, state.Chart,
		nullString(state.LastScannedDate), state.BackfillComplete)
	if err != nil {
		return fmt.Errorf("failed to save chart scan state: %w", err)
	}
	return nil
}
