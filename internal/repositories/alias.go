package repositories

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/shared"
)

// AliasRepository maintains the fuzzy-lookup index over catalog entities.
type AliasRepository struct {
	db *sql.DB
}

// NewAliasRepository creates a new AliasRepository with the given database connection
func NewAliasRepository(db *sql.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

// AliasMatch is one scored hit from a fuzzy alias lookup.
type AliasMatch struct {
	EntityKind models.EntityKind
	EntityID   int64
	Alias      string
	Normalized string
	Score      float64
}

// EnsureAliases inserts the given normalized forms for an entity, skipping
// rows that already exist. The canonical display form is recorded on the
// first variant only.
func (r *AliasRepository) EnsureAliases(kind models.EntityKind, entityID int64, display, source string, normalized []string) error {
	if !kind.Valid() {
		return fmt.Errorf("alias entity kind %q: %w", kind, shared.ErrInvalidInput)
	}
	if len(normalized) == 0 {
		return nil
	}

	query := `
		INSERT OR IGNORE INTO aliases (entity_kind, entity_id, alias, normalized, source)
		VALUES (?, ?, ?, ?, ?)
	`

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin alias transaction: %w", err)
	}
	defer tx.Rollback()

	for _, n := range normalized {
		if n == "" {
			continue
		}
		if _, err := tx.Exec(query, string(kind), entityID, display, n, source); err != nil {
			return fmt.Errorf("failed to insert alias %q: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aliases: %w", err)
	}
	return nil
}

// DeleteForEntity removes all alias rows of an entity.
func (r *AliasRepository) DeleteForEntity(kind models.EntityKind, entityID int64) error {
	query := `DELETE FROM aliases WHERE entity_kind = ? AND entity_id = ?`
	if _, err := r.db.Exec(query, string(kind), entityID); err != nil {
		return fmt.Errorf("failed to delete aliases: %w", err)
	}
	return nil
}

// LookupExact returns entity ids whose alias set contains the normalized form.
func (r *AliasRepository) LookupExact(kind models.EntityKind, normalized string) ([]int64, error) {
	query := `SELECT DISTINCT entity_id FROM aliases
		WHERE entity_kind = ? AND normalized = ?`

	rows, err := r.db.Query(query, string(kind), normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alias id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// candidateLimit caps the rows similarity scoring walks per lookup.
const candidateLimit = 400

// Search returns candidate entities ranked by similarity to the query. The
// normalized query is matched exactly first, then scored against a prefix and
// substring prefiltered candidate set, best score per entity kept.
func (r *AliasRepository) Search(kind models.EntityKind, query string, limit int) ([]AliasMatch, error) {
	normalized := normalize.Normalize(query)
	if normalized == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	candidates, err := r.candidates(kind, normalized)
	if err != nil {
		return nil, err
	}

	best := make(map[int64]AliasMatch, len(candidates))
	for _, c := range candidates {
		score := normalize.Score(normalized, c.Normalized)
		if score < 0.2 && strings.Contains(c.Normalized, normalized) {
			// substring-only hit, kept with a floor score
			score = 0.2
		}
		if score < 0.2 {
			continue
		}
		c.Score = score
		if prev, ok := best[c.EntityID]; !ok || score > prev.Score {
			best[c.EntityID] = c
		}
	}

	matches := make([]AliasMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].EntityID < matches[j].EntityID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// candidates pulls a bounded prefiltered slice of alias rows: exact matches,
// then prefix matches, then rows sharing the first meaningful token.
func (r *AliasRepository) candidates(kind models.EntityKind, normalized string) ([]AliasMatch, error) {
	patterns := []string{normalized, normalized + "%", "%" + normalized + "%"}
	if tokens := normalize.MeaningfulTokens(normalized); len(tokens) > 0 && tokens[0] != normalized {
		patterns = append(patterns, "%"+tokens[0]+"%")
	}

	seen := make(map[int64]bool)
	var out []AliasMatch
	for _, p := range patterns {
		if len(out) >= candidateLimit {
			break
		}
		rows, err := r.db.Query(
			`SELECT entity_kind, entity_id, alias, normalized FROM aliases
				WHERE entity_kind = ? AND normalized LIKE ?
				LIMIT ?`,
			string(kind), p, candidateLimit-len(out),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query alias candidates: %w", err)
		}
		for rows.Next() {
			var m AliasMatch
			if err := rows.Scan(&m.EntityKind, &m.EntityID, &m.Alias, &m.Normalized); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan alias candidate: %w", err)
			}
			if seen[m.EntityID] && p != normalized {
				continue
			}
			seen[m.EntityID] = true
			out = append(out, m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		rows.Close()
	}
	return out, nil
}
