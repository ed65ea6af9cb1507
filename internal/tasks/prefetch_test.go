package tasks

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/resolver"
	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
)

func TestYouTubePrefetchResolvesUnlinkedTracks(t *testing.T) {
	w, _ := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-justice", Name: "Justice"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	for i, name := range []string{"Genesis", "D.A.N.C.E."} {
		if _, err := w.SaveTrack(models.ProviderTrack{
			ID: fmt.Sprintf("sp-j%d", i), Name: name,
			Artists: []models.ProviderArtist{{Name: "Justice"}},
		}, artist.ID, nil); err != nil {
			t.Fatalf("SaveTrack failed: %v", err)
		}
	}

	video := &tu.MockVideoProvider{
		SearchVideosFn: func(query string, _ int) ([]models.Video, error) {
			return []models.Video{{
				VideoID: "v-" + query[:4], Title: query, ChannelTitle: "Justice",
			}}, nil
		},
	}
	res := resolver.New(w, video, nil, 5, logger)

	task := NewYouTubePrefetch(w, res, 0, logger)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, id := range []string{"sp-j0", "sp-j1"} {
		link, err := w.Links().Get(id)
		if err != nil {
			t.Fatalf("link for %s missing: %v", id, err)
		}
		if link.Status != models.LinkFound || link.VideoID == "" {
			t.Errorf("expected resolved link for %s, got %+v", id, link)
		}
	}
}

func TestYouTubePrefetchPausesOnRepeatedQuotaErrors(t *testing.T) {
	w, _ := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-air", Name: "Air"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	for i, name := range []string{"Sexy Boy", "La Femme d'Argent", "Kelly Watch the Stars"} {
		if _, err := w.SaveTrack(models.ProviderTrack{
			ID: fmt.Sprintf("sp-air%d", i), Name: name,
		}, artist.ID, nil); err != nil {
			t.Fatalf("SaveTrack failed: %v", err)
		}
	}

	video := &tu.MockVideoProvider{
		SearchVideosFn: func(string, int) ([]models.Video, error) {
			return nil, fmt.Errorf("search.list: %w", shared.ErrQuotaExhausted)
		},
	}
	res := resolver.New(w, video, nil, 5, logger)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	task := NewYouTubePrefetch(w, res, 0, logger)
	task.now = func() time.Time { return now }

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if task.pausedUntil != now.Add(prefetchQuotaPause) {
		t.Fatalf("expected a 15 minute pause, got %v", task.pausedUntil)
	}
	callsAfterPause := video.Calls.Load()

	t.Run("paused iterations touch no providers", func(t *testing.T) {
		if err := task.Run(context.Background()); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if video.Calls.Load() != callsAfterPause {
			t.Error("paused loop must not contact the provider")
		}
	})

	t.Run("loop resumes after the pause lapses", func(t *testing.T) {
		now = now.Add(prefetchQuotaPause + time.Minute)
		if err := task.Run(context.Background()); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if video.Calls.Load() == callsAfterPause {
			t.Error("expected provider contact after the pause lapsed")
		}
	})
}

func TestYouTubePrefetchHonorsCooldowns(t *testing.T) {
	w, db := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-mgmt", Name: "MGMT"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if _, err := w.SaveTrack(models.ProviderTrack{ID: "sp-kids", Name: "Kids"}, artist.ID, nil); err != nil {
		t.Fatalf("SaveTrack failed: %v", err)
	}
	if err := w.Links().Overwrite(&models.YouTubeLink{
		SpotifyTrackID: "sp-kids", Status: models.LinkError, ErrorMessage: "boom",
	}); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	video := &tu.MockVideoProvider{
		SearchVideosFn: func(query string, _ int) ([]models.Video, error) {
			return []models.Video{{VideoID: "v-kids", Title: "MGMT Kids", ChannelTitle: "MGMT"}}, nil
		},
	}
	res := resolver.New(w, video, nil, 5, logger)
	task := NewYouTubePrefetch(w, res, 0, logger)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if video.Calls.Load() != 0 {
		t.Error("errored link inside its cooldown must not be retried")
	}

	t.Run("lapsed cooldown retries the link", func(t *testing.T) {
		backdate := shared.NowUTC().Add(-(resolver.ErrorCooldown + time.Hour))
		if _, err := db.Exec(
			`UPDATE youtube_links SET updated_at = ? WHERE spotify_track_id = ?`,
			backdate, "sp-kids",
		); err != nil {
			t.Fatalf("backdate failed: %v", err)
		}
		if err := task.Run(context.Background()); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if video.Calls.Load() == 0 {
			t.Fatal("expected a resolution attempt after the cooldown")
		}
		link, err := w.Links().Get("sp-kids")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if link.Status != models.LinkFound || link.VideoID != "v-kids" {
			t.Errorf("expected an upgraded link, got %+v", link)
		}
	})
}
