package search

import (
	"errors"
	"io"
	"testing"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

func setupTestLists(t *testing.T) (*Lists, *catalog.Writer) {
	t.Helper()
	w, db := setupTestStore(t)
	charts := repositories.NewChartRepository(db)
	return NewLists(w, charts, shared.NewLogger(io.Discard)), w
}

func seedListTrack(t *testing.T, w *catalog.Writer, artistID int64, name, spotifyID string) *models.Track {
	t.Helper()
	track, err := w.SaveTrack(models.ProviderTrack{ID: spotifyID, Name: name}, artistID, nil)
	if err != nil {
		t.Fatalf("SaveTrack failed: %v", err)
	}
	return track
}

func TestListFavoritesWithLink(t *testing.T) {
	l, w := setupTestLists(t)
	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-a", Name: "Queen"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}

	linked := seedListTrack(t, w, artist.ID, "Bohemian Rhapsody", "sp-bh")
	unlinked := seedListTrack(t, w, artist.ID, "Innuendo", "sp-in")

	if err := w.SaveLink(&models.YouTubeLink{
		SpotifyTrackID: "sp-bh", VideoID: "v1", Status: models.LinkFound,
	}); err != nil {
		t.Fatalf("SaveLink failed: %v", err)
	}
	for _, id := range []int64{linked.ID, unlinked.ID} {
		if err := w.Favorites().Add("u1", models.KindTrack, id); err != nil {
			t.Fatalf("favorite Add failed: %v", err)
		}
	}

	list, err := l.Get(ListFavoritesWithLink, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(list.Tracks) != 1 || list.Tracks[0].Name != "Bohemian Rhapsody" {
		t.Errorf("expected only the linked favorite, got %+v", list.Tracks)
	}
}

func TestListCacheAndInvalidate(t *testing.T) {
	l, w := setupTestLists(t)
	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-a", Name: "Queen"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}

	first, err := l.Get(ListDiscovery, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(first.Tracks) != 0 {
		t.Fatalf("expected empty discovery list, got %d", len(first.Tracks))
	}

	seedListTrack(t, w, artist.ID, "Radio Ga Ga", "sp-rgg")

	t.Run("cached entry survives new rows", func(t *testing.T) {
		cached, err := l.Get(ListDiscovery, "u1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(cached.Tracks) != 0 {
			t.Error("expected stale cached list until invalidation")
		}
	})

	t.Run("invalidate forces regeneration", func(t *testing.T) {
		l.Invalidate(ListDiscovery, "u1")
		fresh, err := l.Get(ListDiscovery, "u1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(fresh.Tracks) != 1 {
			t.Errorf("expected regenerated list, got %d tracks", len(fresh.Tracks))
		}
	})

	t.Run("wildcard invalidation purges every user", func(t *testing.T) {
		if _, err := l.Get(ListDiscovery, "u2"); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		l.Invalidate("", "")
		if l.cache.Len() != 0 {
			t.Errorf("expected empty cache, got %d entries", l.cache.Len())
		}
	})
}

func TestListDownloaded(t *testing.T) {
	l, w := setupTestLists(t)
	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-a", Name: "Queen"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}

	track := seedListTrack(t, w, artist.ID, "Bohemian Rhapsody", "sp-bh")
	track.DownloadPath = "/music/audio/v1.mp3"
	if err := w.Tracks().Update(track); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	seedListTrack(t, w, artist.ID, "Innuendo", "sp-in")

	list, err := l.Get(ListDownloaded, "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(list.Tracks) != 1 || list.Tracks[0].Name != "Bohemian Rhapsody" {
		t.Errorf("expected only the downloaded track, got %+v", list.Tracks)
	}
}

func TestListGenreSuggestions(t *testing.T) {
	l, w := setupTestLists(t)

	fav, err := w.SaveArtist(models.ProviderArtist{
		ID: "sp-fav", Name: "Boards of Canada", Genres: []string{"idm"},
	})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if _, err := w.SaveArtist(models.ProviderArtist{
		ID: "sp-suggest", Name: "Autechre", Genres: []string{"idm"},
	}); err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if _, err := w.SaveArtist(models.ProviderArtist{
		ID: "sp-off", Name: "Shania Twain", Genres: []string{"country"},
	}); err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if err := w.Favorites().Add("u1", models.KindArtist, fav.ID); err != nil {
		t.Fatalf("favorite Add failed: %v", err)
	}

	list, err := l.Get(ListGenreSuggestions, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(list.Artists) != 1 || list.Artists[0].Name() != "Autechre" {
		t.Errorf("expected one on-genre suggestion, got %+v", list.Artists)
	}
}

func TestListUnknownName(t *testing.T) {
	l, _ := setupTestLists(t)
	if _, err := l.Get(ListName("bogus"), ""); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
