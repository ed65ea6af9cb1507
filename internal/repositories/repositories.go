// package repositories provides the persistence layer over SQLite.
//
// Each repository wraps a *sql.DB and exposes the indexed lookups, scans and
// transactional writes one entity needs. Upserts are left to the catalog
// writer; repositories surface constraint violations as [shared.ErrConflict]
// so the writer can re-read and merge.
package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/crate/internal/shared"
)

// wrapConstraint maps SQLite unique/foreign-key violations to ErrConflict so
// callers can distinguish retryable merge conflicts from real failures.
func wrapConstraint(err error, op string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "constraint") || strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("%s: %w: %v", op, shared.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// encodeGenres serializes a genre list to the JSON column form.
func encodeGenres(genres []string) string {
	if len(genres) == 0 {
		return "[]"
	}
	data, err := json.Marshal(genres)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeGenres parses the JSON column form back into a genre list.
func decodeGenres(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var genres []string
	if err := json.Unmarshal([]byte(raw), &genres); err != nil {
		return nil
	}
	return genres
}

// nullString converts an optional column value for insertion.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 converts an optional integer for insertion.
func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// scanNullString reads an optional text column.
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
