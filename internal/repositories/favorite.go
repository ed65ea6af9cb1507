package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// FavoriteRepository stores per-user favorites. Favorited entities are
// protected from deletion and feed the daily refresh loop.
type FavoriteRepository struct {
	db *sql.DB
}

// NewFavoriteRepository creates a new FavoriteRepository with the given database connection
func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add marks an entity as favorited by a user. Re-favoriting is a no-op.
func (r *FavoriteRepository) Add(userID string, kind models.EntityKind, entityID int64) error {
	if userID == "" {
		return fmt.Errorf("favorite user id: %w", shared.ErrInvalidInput)
	}
	if !kind.Valid() {
		return fmt.Errorf("favorite entity kind %q: %w", kind, shared.ErrInvalidInput)
	}

	query := `
		INSERT OR IGNORE INTO favorites (user_id, entity_kind, entity_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, userID, string(kind), entityID, shared.NowUTC()); err != nil {
		return fmt.Errorf("failed to insert favorite: %w", err)
	}
	return nil
}

// Remove unmarks an entity for a user.
func (r *FavoriteRepository) Remove(userID string, kind models.EntityKind, entityID int64) error {
	query := `DELETE FROM favorites WHERE user_id = ? AND entity_kind = ? AND entity_id = ?`
	result, err := r.db.Exec(query, userID, string(kind), entityID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("favorite: %w", shared.ErrNotFound)
	}
	return nil
}

// IsFavorited reports whether any user has favorited the entity.
func (r *FavoriteRepository) IsFavorited(kind models.EntityKind, entityID int64) (bool, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM favorites WHERE entity_kind = ? AND entity_id = ?`,
		string(kind), entityID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count favorites: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns a user's favorites, newest first.
func (r *FavoriteRepository) ListByUser(userID string) ([]*models.Favorite, error) {
	query := `SELECT id, user_id, entity_kind, entity_id, created_at
		FROM favorites
		WHERE user_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []*models.Favorite
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.EntityKind, &f.EntityID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return favorites, nil
}

// ListFavoritedArtistIDs returns distinct artist ids favorited by any user,
// the working set of the daily refresh loop.
func (r *FavoriteRepository) ListFavoritedArtistIDs() ([]int64, error) {
	query := `SELECT DISTINCT entity_id FROM favorites WHERE entity_kind = ? ORDER BY entity_id`

	rows, err := r.db.Query(query, string(models.KindArtist))
	if err != nil {
		return nil, fmt.Errorf("failed to query favorited artists: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artist id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}
