package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// SearchCacheRepository persists orchestrated-search payloads across
// restarts. Entries are upserted by cache key and expired at read time.
type SearchCacheRepository struct {
	db *sql.DB
}

// NewSearchCacheRepository creates a new SearchCacheRepository with the given database connection
func NewSearchCacheRepository(db *sql.DB) *SearchCacheRepository {
	return &SearchCacheRepository{db: db}
}

// Get retrieves a cache entry by key.
func (r *SearchCacheRepository) Get(cacheKey string) (*models.SearchCacheEntry, error) {
	query := `SELECT cache_key, id, payload, context, created_at, updated_at
		FROM search_cache WHERE cache_key = ?`

	var (
		entry   models.SearchCacheEntry
		payload string
		ctx     sql.NullString
	)
	err := r.db.QueryRow(query, cacheKey).Scan(
		&entry.CacheKey, &entry.ID, &payload, &ctx, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("search cache %s: %w", cacheKey, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan search cache entry: %w", err)
	}
	entry.Payload = []byte(payload)
	entry.Context = scanNullString(ctx)
	return &entry, nil
}

// Put upserts a cache entry, preserving created_at on overwrite.
func (r *SearchCacheRepository) Put(entry *models.SearchCacheEntry) error {
	if entry.CacheKey == "" {
		return fmt.Errorf("search cache key: %w", shared.ErrInvalidInput)
	}
	now := shared.NowUTC()
	if entry.ID == "" {
		entry.ID = shared.GenerateID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := `
		INSERT INTO search_cache (cache_key, id, payload, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			context = excluded.context,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, entry.CacheKey, entry.ID, string(entry.Payload),
		nullString(entry.Context), entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to write search cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry by key.
func (r *SearchCacheRepository) Delete(cacheKey string) error {
	if _, err := r.db.Exec(`DELETE FROM search_cache WHERE cache_key = ?`, cacheKey); err != nil {
		return fmt.Errorf("failed to delete search cache entry: %w", err)
	}
	return nil
}

// Prune removes entries last written before the cutoff and returns the count.
func (r *SearchCacheRepository) Prune(before time.Time) (int, error) {
	result, err := r.db.Exec(`DELETE FROM search_cache WHERE updated_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune search cache: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}
