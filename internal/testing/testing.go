// package testing contains shared testing utilities
package testing

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// MockMetadataProvider is a test double for [services.MetadataProvider].
// Each field overrides one operation; nil fields return not-found or empty.
// Calls counts every invocation across operations.
type MockMetadataProvider struct {
	Calls atomic.Int32

	SearchArtistsFn      func(q string, limit int) ([]models.ProviderArtist, error)
	GetArtistFn          func(id string) (*models.ProviderArtist, error)
	GetArtistAlbumsFn    func(id string, groups []string, fetchAll bool) ([]models.ProviderAlbum, error)
	GetAlbumFn           func(id string) (*models.ProviderAlbum, error)
	GetAlbumTracksFn     func(id string) ([]models.ProviderTrack, error)
	SearchTracksFn       func(q string, limit int) ([]models.ProviderTrack, error)
	GetRecommendationsFn func(seedArtists, seedTracks []string, limit int) ([]models.ProviderTrack, error)
}

func (m *MockMetadataProvider) SearchArtists(_ context.Context, q string, limit int) ([]models.ProviderArtist, error) {
	m.Calls.Add(1)
	if m.SearchArtistsFn == nil {
		return nil, nil
	}
	return m.SearchArtistsFn(q, limit)
}

func (m *MockMetadataProvider) GetArtist(_ context.Context, id string) (*models.ProviderArtist, error) {
	m.Calls.Add(1)
	if m.GetArtistFn == nil {
		return nil, fmt.Errorf("artist %s: %w", id, shared.ErrNotFound)
	}
	return m.GetArtistFn(id)
}

func (m *MockMetadataProvider) GetArtistAlbums(_ context.Context, id string, groups []string, fetchAll bool) ([]models.ProviderAlbum, error) {
	m.Calls.Add(1)
	if m.GetArtistAlbumsFn == nil {
		return nil, nil
	}
	return m.GetArtistAlbumsFn(id, groups, fetchAll)
}

func (m *MockMetadataProvider) GetAlbum(_ context.Context, id string) (*models.ProviderAlbum, error) {
	m.Calls.Add(1)
	if m.GetAlbumFn == nil {
		return nil, fmt.Errorf("album %s: %w", id, shared.ErrNotFound)
	}
	return m.GetAlbumFn(id)
}

func (m *MockMetadataProvider) GetAlbumTracks(_ context.Context, id string) ([]models.ProviderTrack, error) {
	m.Calls.Add(1)
	if m.GetAlbumTracksFn == nil {
		return nil, nil
	}
	return m.GetAlbumTracksFn(id)
}

func (m *MockMetadataProvider) SearchTracks(_ context.Context, q string, limit int) ([]models.ProviderTrack, error) {
	m.Calls.Add(1)
	if m.SearchTracksFn == nil {
		return nil, nil
	}
	return m.SearchTracksFn(q, limit)
}

func (m *MockMetadataProvider) GetRecommendations(_ context.Context, seedArtists, seedTracks []string, limit int) ([]models.ProviderTrack, error) {
	m.Calls.Add(1)
	if m.GetRecommendationsFn == nil {
		return nil, nil
	}
	return m.GetRecommendationsFn(seedArtists, seedTracks, limit)
}

// MockStatsProvider is a test double for [services.StatsProvider].
type MockStatsProvider struct {
	Calls atomic.Int32

	GetArtistInfoFn      func(name string) (*models.ArtistInfo, error)
	GetSimilarArtistsFn  func(name string, limit int) ([]models.SimilarArtist, error)
	GetTrackInfoFn       func(artist, track string) (*models.TrackInfo, error)
	GetTopArtistsByTagFn func(tag string, limit, page int) ([]models.SimilarArtist, error)
}

func (m *MockStatsProvider) GetArtistInfo(_ context.Context, name string) (*models.ArtistInfo, error) {
	m.Calls.Add(1)
	if m.GetArtistInfoFn == nil {
		return nil, fmt.Errorf("artist %s: %w", name, shared.ErrNotFound)
	}
	return m.GetArtistInfoFn(name)
}

func (m *MockStatsProvider) GetSimilarArtists(_ context.Context, name string, limit int) ([]models.SimilarArtist, error) {
	m.Calls.Add(1)
	if m.GetSimilarArtistsFn == nil {
		return nil, nil
	}
	return m.GetSimilarArtistsFn(name, limit)
}

func (m *MockStatsProvider) GetTrackInfo(_ context.Context, artist, track string) (*models.TrackInfo, error) {
	m.Calls.Add(1)
	if m.GetTrackInfoFn == nil {
		return nil, fmt.Errorf("track %s: %w", track, shared.ErrNotFound)
	}
	return m.GetTrackInfoFn(artist, track)
}

func (m *MockStatsProvider) GetTopArtistsByTag(_ context.Context, tag string, limit, page int) ([]models.SimilarArtist, error) {
	m.Calls.Add(1)
	if m.GetTopArtistsByTagFn == nil {
		return nil, nil
	}
	return m.GetTopArtistsByTagFn(tag, limit, page)
}

// MockVideoProvider is a test double for [services.VideoProvider].
type MockVideoProvider struct {
	Calls atomic.Int32

	SearchVideosFn    func(query string, maxResults int) ([]models.Video, error)
	GetVideoDetailsFn func(videoID string) (*models.Video, error)
	Unavailable       bool
}

func (m *MockVideoProvider) SearchVideos(_ context.Context, query string, maxResults int) ([]models.Video, error) {
	m.Calls.Add(1)
	if m.SearchVideosFn == nil {
		return nil, nil
	}
	return m.SearchVideosFn(query, maxResults)
}

func (m *MockVideoProvider) GetVideoDetails(_ context.Context, videoID string) (*models.Video, error) {
	m.Calls.Add(1)
	if m.GetVideoDetailsFn == nil {
		return nil, fmt.Errorf("video %s: %w", videoID, shared.ErrNotFound)
	}
	return m.GetVideoDetailsFn(videoID)
}

func (m *MockVideoProvider) Available() bool { return !m.Unavailable }

func (m *MockVideoProvider) RequestsToday() int { return int(m.Calls.Load()) }

// MockMediaFetcher is a test double for [services.MediaFetcher].
type MockMediaFetcher struct {
	Calls atomic.Int32

	SearchVideoFn   func(query string) (*models.Video, error)
	DownloadAudioFn func(videoID, format string) (string, int64, error)
	Unavailable     bool
}

func (m *MockMediaFetcher) SearchVideo(_ context.Context, query string) (*models.Video, error) {
	m.Calls.Add(1)
	if m.SearchVideoFn == nil {
		return nil, fmt.Errorf("video for %q: %w", query, shared.ErrNotFound)
	}
	return m.SearchVideoFn(query)
}

func (m *MockMediaFetcher) DownloadAudio(_ context.Context, videoID, format string) (string, int64, error) {
	m.Calls.Add(1)
	if m.DownloadAudioFn == nil {
		return "", 0, fmt.Errorf("download %s: %w", videoID, shared.ErrNotFound)
	}
	return m.DownloadAudioFn(videoID, format)
}

func (m *MockMediaFetcher) Available() bool { return !m.Unavailable }

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
