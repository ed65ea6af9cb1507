package repositories

import (
	"testing"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
)

func TestAliasRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAliasRepository(db)
	artist := createTestArtist(t, db, "Metallica", "spotify-metallica")

	aliases := normalize.GenerateAliases("Metallica")
	if err := repo.EnsureAliases(models.KindArtist, artist.ID, "Metallica", "spotify", aliases); err != nil {
		t.Fatalf("EnsureAliases failed: %v", err)
	}

	t.Run("ensure is idempotent", func(t *testing.T) {
		if err := repo.EnsureAliases(models.KindArtist, artist.ID, "Metallica", "spotify", aliases); err != nil {
			t.Fatalf("second EnsureAliases failed: %v", err)
		}

		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM aliases WHERE entity_id = ?`, artist.ID).Scan(&n); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != len(aliases) {
			t.Errorf("expected %d alias rows, got %d", len(aliases), n)
		}
	})

	t.Run("exact lookup", func(t *testing.T) {
		ids, err := repo.LookupExact(models.KindArtist, "metallica")
		if err != nil {
			t.Fatalf("LookupExact failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != artist.ID {
			t.Errorf("expected [%d], got %v", artist.ID, ids)
		}
	})

	t.Run("misspelling resolves through similarity", func(t *testing.T) {
		matches, err := repo.Search(models.KindArtist, "metalica", 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(matches) == 0 {
			t.Fatal("expected at least one match")
		}
		if matches[0].EntityID != artist.ID {
			t.Errorf("expected artist %d first, got %d", artist.ID, matches[0].EntityID)
		}
		if matches[0].Score < 0.3 {
			t.Errorf("expected confident score, got %f", matches[0].Score)
		}
	})

	t.Run("unrelated query finds nothing", func(t *testing.T) {
		matches, err := repo.Search(models.KindArtist, "wolfgang amadeus", 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("expected no matches, got %d", len(matches))
		}
	})

	t.Run("best alias per entity wins", func(t *testing.T) {
		other := createTestArtist(t, db, "Metric", "spotify-metric")
		if err := repo.EnsureAliases(models.KindArtist, other.ID, "Metric", "spotify", normalize.GenerateAliases("Metric")); err != nil {
			t.Fatalf("EnsureAliases failed: %v", err)
		}

		matches, err := repo.Search(models.KindArtist, "metallica", 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(matches) == 0 || matches[0].EntityID != artist.ID {
			t.Fatalf("expected exact artist first, got %v", matches)
		}
		seen := make(map[int64]int)
		for _, m := range matches {
			seen[m.EntityID]++
		}
		for id, count := range seen {
			if count > 1 {
				t.Errorf("entity %d appears %d times", id, count)
			}
		}
	})

	t.Run("delete for entity", func(t *testing.T) {
		if err := repo.DeleteForEntity(models.KindArtist, artist.ID); err != nil {
			t.Fatalf("DeleteForEntity failed: %v", err)
		}
		ids, err := repo.LookupExact(models.KindArtist, "metallica")
		if err != nil {
			t.Fatalf("LookupExact failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no aliases after delete, got %v", ids)
		}
	})
}
