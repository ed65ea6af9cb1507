package tasks

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
)

func setupTaskDB(t *testing.T) (*catalog.Writer, *sql.DB) {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return catalog.NewWriter(db, shared.NewLogger(io.Discard)), db
}

func TestDailyRefreshExpandsFavorites(t *testing.T) {
	w, _ := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-bonobo", Name: "Bonobo"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if err := w.Favorites().Add("u1", models.KindArtist, artist.ID); err != nil {
		t.Fatalf("favorite Add failed: %v", err)
	}

	spotify := &tu.MockMetadataProvider{
		GetArtistFn: func(id string) (*models.ProviderArtist, error) {
			return &models.ProviderArtist{ID: id, Name: "Bonobo"}, nil
		},
		GetArtistAlbumsFn: func(id string, _ []string, _ bool) ([]models.ProviderAlbum, error) {
			return []models.ProviderAlbum{{ID: "al-migration", Name: "Migration"}}, nil
		},
		GetAlbumTracksFn: func(id string) ([]models.ProviderTrack, error) {
			return []models.ProviderTrack{
				{ID: "tr-kerala", Name: "Kerala"},
				{ID: "tr-break", Name: "Break Apart"},
			}, nil
		},
	}
	expander := catalog.NewExpander(w, spotify, nil, logger)
	freshness := catalog.NewFreshness(w, spotify, nil, catalog.MaxAgesFromConfig(shared.FreshnessConfig{}), logger)

	task := NewDailyRefresh(w, expander, freshness, nil, logger)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	tracks, err := w.Tracks().ListByArtist(artist.ID, -1)
	if err != nil {
		t.Fatalf("ListByArtist failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("expected 2 expanded tracks, got %d", len(tracks))
	}
}

func TestDailyRefreshFillsMissingMetadata(t *testing.T) {
	w, _ := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	if _, err := w.SaveArtist(models.ProviderArtist{ID: "sp-moloko", Name: "Moloko"}); err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}

	spotify := &tu.MockMetadataProvider{
		GetArtistFn: func(id string) (*models.ProviderArtist, error) {
			return &models.ProviderArtist{
				ID: id, Name: "Moloko", Genres: []string{"trip hop"},
				Images: []models.ProviderImage{{URL: "https://img/moloko.jpg"}},
			}, nil
		},
	}
	lastfm := &tu.MockStatsProvider{
		GetArtistInfoFn: func(name string) (*models.ArtistInfo, error) {
			return &models.ArtistInfo{Name: name, Summary: "Irish-English duo."}, nil
		},
	}
	expander := catalog.NewExpander(w, spotify, lastfm, logger)
	freshness := catalog.NewFreshness(w, spotify, lastfm, catalog.MaxAgesFromConfig(shared.FreshnessConfig{}), logger)

	task := NewDailyRefresh(w, expander, freshness, lastfm, logger)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	artist, err := w.Artists().GetBySpotifyID("sp-moloko")
	if err != nil {
		t.Fatalf("GetBySpotifyID failed: %v", err)
	}
	if len(artist.Genres) == 0 || artist.BioSummary == "" {
		t.Errorf("expected genres and bio filled, got %+v", artist)
	}
}

func TestGenreBackfill(t *testing.T) {
	w, _ := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	tagged, err := w.SaveArtist(models.ProviderArtist{ID: "sp-burial", Name: "Burial"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if _, err := w.SaveTrack(models.ProviderTrack{ID: "tr-archangel", Name: "Archangel"}, tagged.ID, nil); err != nil {
		t.Fatalf("SaveTrack failed: %v", err)
	}
	if _, err := w.SaveArtist(models.ProviderArtist{
		ID: "sp-done", Name: "Royksopp", Genres: []string{"electronic"},
	}); err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}

	lastfm := &tu.MockStatsProvider{
		GetTrackInfoFn: func(artist, track string) (*models.TrackInfo, error) {
			return &models.TrackInfo{Name: track, Tags: []string{
				"dubstep", "electronic", "Burial", "Archangel", "2007", "live", "ambient",
			}}, nil
		},
	}

	task := NewGenreBackfill(w, lastfm, logger)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	updated, err := w.Artists().Get(tagged.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := map[string]bool{"dubstep": true, "electronic": true, "ambient": true}
	if len(updated.Genres) != len(want) {
		t.Fatalf("expected %d genres after noise filtering, got %v", len(want), updated.Genres)
	}
	for _, g := range updated.Genres {
		if !want[g] {
			t.Errorf("unexpected genre %q survived filtering", g)
		}
	}

	if lastfm.Calls.Load() != 1 {
		t.Errorf("artists with genres must be skipped; got %d provider calls", lastfm.Calls.Load())
	}
}

func TestGenreBackfillKeepsTopSix(t *testing.T) {
	w, _ := setupTaskDB(t)

	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-aphex", Name: "Aphex Twin"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	if _, err := w.SaveTrack(models.ProviderTrack{ID: "tr-xtal", Name: "Xtal"}, artist.ID, nil); err != nil {
		t.Fatalf("SaveTrack failed: %v", err)
	}

	lastfm := &tu.MockStatsProvider{
		GetTrackInfoFn: func(_, track string) (*models.TrackInfo, error) {
			return &models.TrackInfo{Name: track, Tags: []string{
				"idm", "ambient", "electronic", "techno", "acid", "braindance", "experimental", "downtempo",
			}}, nil
		},
	}

	task := NewGenreBackfill(w, lastfm, shared.NewLogger(io.Discard))
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	updated, err := w.Artists().Get(artist.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(updated.Genres) != genreKeepTop {
		t.Errorf("expected %d genres, got %v", genreKeepTop, updated.Genres)
	}
	if updated.Genres[0] != "idm" {
		t.Errorf("expected first-seen tag to rank first on tie, got %q", updated.Genres[0])
	}
}

func TestLibraryRefresh(t *testing.T) {
	w, db := setupTaskDB(t)
	logger := shared.NewLogger(io.Discard)

	artist, err := w.SaveArtist(models.ProviderArtist{ID: "sp-doves", Name: "Doves"})
	if err != nil {
		t.Fatalf("SaveArtist failed: %v", err)
	}
	backdate := shared.NowUTC().Add(-30 * 24 * time.Hour)
	if _, err := db.Exec(
		`UPDATE artists SET updated_at = ? WHERE id = ?`, backdate, artist.ID,
	); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	spotify := &tu.MockMetadataProvider{
		GetArtistFn: func(id string) (*models.ProviderArtist, error) {
			return &models.ProviderArtist{ID: id, Name: "Doves", Popularity: 55}, nil
		},
	}
	freshness := catalog.NewFreshness(w, spotify, nil, catalog.MaxAgesFromConfig(shared.FreshnessConfig{}), logger)

	task := NewLibraryRefresh(freshness, logger)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	updated, err := w.Artists().Get(artist.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Popularity != 55 {
		t.Errorf("expected refreshed popularity, got %d", updated.Popularity)
	}
}
