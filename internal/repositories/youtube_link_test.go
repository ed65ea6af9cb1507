package repositories

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

func TestYouTubeLinkRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewYouTubeLinkRepository(db)

	t.Run("upsert creates pending row", func(t *testing.T) {
		link := &models.YouTubeLink{SpotifyTrackID: "track-1", Status: models.LinkPending}
		if err := repo.Upsert(link); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		got, err := repo.Get("track-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.LinkPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
	})

	t.Run("higher status replaces lower", func(t *testing.T) {
		link := &models.YouTubeLink{
			SpotifyTrackID: "track-1",
			VideoID:        "vid-abc",
			Status:         models.LinkFound,
		}
		if err := repo.Upsert(link); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		got, err := repo.Get("track-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.LinkFound || got.VideoID != "vid-abc" {
			t.Errorf("expected link_found/vid-abc, got %s/%s", got.Status, got.VideoID)
		}
	})

	t.Run("lower status does not demote", func(t *testing.T) {
		link := &models.YouTubeLink{
			SpotifyTrackID: "track-1",
			Status:         models.LinkError,
			ErrorMessage:   "quota",
		}
		if err := repo.Upsert(link); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		got, err := repo.Get("track-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.LinkFound {
			t.Errorf("expected link_found kept, got %s", got.Status)
		}
		if got.VideoID != "vid-abc" {
			t.Errorf("expected video id kept, got %s", got.VideoID)
		}
		if got.ErrorMessage != "" {
			t.Errorf("expected error message cleared, got %q", got.ErrorMessage)
		}
	})

	t.Run("completed outranks everything", func(t *testing.T) {
		size := int64(4_200_000)
		link := &models.YouTubeLink{
			SpotifyTrackID: "track-1",
			Status:         models.LinkCompleted,
			DownloadPath:   "/music/track-1.mp3",
			FileSize:       &size,
		}
		if err := repo.Upsert(link); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		got, err := repo.Get("track-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.LinkCompleted {
			t.Errorf("expected completed, got %s", got.Status)
		}
		if got.FileSize == nil || *got.FileSize != size {
			t.Errorf("expected file size %d, got %v", size, got.FileSize)
		}
	})

	t.Run("overwrite bypasses precedence", func(t *testing.T) {
		link := &models.YouTubeLink{SpotifyTrackID: "track-1", Status: models.LinkPending}
		if err := repo.Overwrite(link); err != nil {
			t.Fatalf("Overwrite failed: %v", err)
		}

		got, err := repo.Get("track-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.LinkPending {
			t.Errorf("expected pending after overwrite, got %s", got.Status)
		}
	})

	t.Run("missing link", func(t *testing.T) {
		_, err := repo.Get("nope")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list retryable honors cooldown", func(t *testing.T) {
		if err := repo.Overwrite(&models.YouTubeLink{
			SpotifyTrackID: "track-err",
			Status:         models.LinkError,
			ErrorMessage:   "timeout",
		}); err != nil {
			t.Fatalf("Overwrite failed: %v", err)
		}

		links, err := repo.ListRetryable(models.LinkError, time.Now().UTC().Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("ListRetryable failed: %v", err)
		}
		if len(links) != 0 {
			t.Errorf("expected fresh error inside cooldown, got %d rows", len(links))
		}

		links, err = repo.ListRetryable(models.LinkError, time.Now().UTC().Add(time.Hour), 10)
		if err != nil {
			t.Fatalf("ListRetryable failed: %v", err)
		}
		if len(links) != 1 || links[0].SpotifyTrackID != "track-err" {
			t.Errorf("expected the errored link, got %d rows", len(links))
		}
	})

	t.Run("count by status", func(t *testing.T) {
		counts, err := repo.CountByStatus()
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts[models.LinkPending] != 1 || counts[models.LinkError] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})
}

func TestYouTubeLinkUpsertConcurrent(t *testing.T) {
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	repo := NewYouTubeLinkRepository(db)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link := &models.YouTubeLink{
				SpotifyTrackID: "track-race",
				Status:         models.LinkError,
				ErrorMessage:   "search failed",
			}
			if i == 3 {
				link = &models.YouTubeLink{
					SpotifyTrackID: "track-race",
					VideoID:        "vid-race",
					Status:         models.LinkFound,
				}
			}
			if err := repo.Upsert(link); err != nil {
				t.Errorf("Upsert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := repo.Get("track-race")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.LinkFound {
		t.Errorf("expected link_found to win regardless of write order, got %s", got.Status)
	}
	if got.VideoID != "vid-race" {
		t.Errorf("expected video id to survive later error writes, got %q", got.VideoID)
	}
	if got.ErrorMessage != "" {
		t.Errorf("expected error message cleared outside the error state, got %q", got.ErrorMessage)
	}
}

func TestLinkStatusPrecedence(t *testing.T) {
	order := []models.LinkStatus{
		models.LinkPending, models.LinkError, models.LinkMissing,
		models.LinkVideoNotFound, models.LinkFound, models.LinkCompleted,
	}
	for i := 1; i < len(order); i++ {
		if order[i].Precedence() <= order[i-1].Precedence() {
			t.Errorf("expected %s to outrank %s", order[i], order[i-1])
		}
	}
}
