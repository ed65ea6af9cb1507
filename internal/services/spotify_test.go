package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/crate/internal/shared"
)

func newTestSpotifyClient(t *testing.T, handler http.Handler) (*SpotifyClient, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.Handle("/", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewSpotifyClient("id", "secret")
	if err != nil {
		t.Fatalf("NewSpotifyClient failed: %v", err)
	}
	client.baseURL = srv.URL
	client.config.TokenURL = srv.URL + "/token"
	return client, srv
}

func TestSpotifyClient(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewSpotifyClient("", "")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("search artists", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("unexpected auth header %q", got)
			}
			fmt.Fprint(w, `{"artists":{"items":[
				{"id":"a1","name":"Gorillaz","genres":["alternative hip hop"],
				 "popularity":82,"followers":{"total":12000000},
				 "images":[{"url":"http://img/1","width":640,"height":640}]}
			],"total":1,"next":null}}`)
		}))

		artists, err := client.SearchArtists(context.Background(), "Gorillaz", 10)
		if err != nil {
			t.Fatalf("SearchArtists failed: %v", err)
		}
		if len(artists) != 1 {
			t.Fatalf("expected 1 artist, got %d", len(artists))
		}
		a := artists[0]
		if a.ID != "a1" || a.Name != "Gorillaz" || a.Followers != 12000000 {
			t.Errorf("unexpected artist %+v", a)
		}
	})

	t.Run("empty query skips request", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request for empty query")
		}))

		artists, err := client.SearchArtists(context.Background(), "", 10)
		if err != nil || artists != nil {
			t.Errorf("expected nil result, got %v / %v", artists, err)
		}
	})

	t.Run("artist albums pages through full listing", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			if got := r.URL.Query().Get("include_groups"); got != "album,single,compilation" {
				t.Errorf("unexpected groups %q", got)
			}
			if n == 1 {
				fmt.Fprintf(w, `{"items":[{"id":"al1","name":"Demon Days","release_date":"2005-05-11","total_tracks":15}],"total":2,"next":"%s"}`, "next-page")
			} else {
				fmt.Fprint(w, `{"items":[{"id":"al2","name":"Plastic Beach","release_date":"2010-03-03","total_tracks":16}],"total":2,"next":null}`)
			}
		}))

		albums, err := client.GetArtistAlbums(context.Background(), "a1", nil, true)
		if err != nil {
			t.Fatalf("GetArtistAlbums failed: %v", err)
		}
		if len(albums) != 2 {
			t.Fatalf("expected 2 albums, got %d", len(albums))
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 pages fetched, got %d", calls.Load())
		}
	})

	t.Run("single page without fetch all", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			fmt.Fprint(w, `{"items":[{"id":"al1","name":"Demon Days"}],"total":2,"next":"next-page"}`)
		}))

		albums, err := client.GetArtistAlbums(context.Background(), "a1", nil, false)
		if err != nil {
			t.Fatalf("GetArtistAlbums failed: %v", err)
		}
		if len(albums) != 1 || calls.Load() != 1 {
			t.Errorf("expected one page, got %d albums over %d calls", len(albums), calls.Load())
		}
	})

	t.Run("retries once on 401", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"id":"a1","name":"Gorillaz","followers":{"total":1}}`)
		}))

		artist, err := client.GetArtist(context.Background(), "a1")
		if err != nil {
			t.Fatalf("GetArtist failed: %v", err)
		}
		if artist.Name != "Gorillaz" {
			t.Errorf("unexpected artist %+v", artist)
		}
		if calls.Load() != 2 {
			t.Errorf("expected retry after token refresh, got %d calls", calls.Load())
		}
	})

	t.Run("backs off once on 429", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"tracks":{"items":[],"total":0,"next":null}}`)
		}))

		if _, err := client.SearchTracks(context.Background(), "anything", 5); err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected retry after back-off, got %d calls", calls.Load())
		}
	})

	t.Run("404 maps to not found", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.GetAlbum(context.Background(), "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("recommendations need a seed", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request without seeds")
		}))

		_, err := client.GetRecommendations(context.Background(), nil, nil, 10)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("track conversion", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"tracks":{"items":[
				{"id":"t1","name":"Feel Good Inc.","duration_ms":222640,"popularity":85,
				 "explicit":true,"preview_url":"http://preview/t1",
				 "external_urls":{"spotify":"http://open/t1"},
				 "artists":[{"id":"a1","name":"Gorillaz"}],
				 "album":{"id":"al1","name":"Demon Days","release_date":"2005-05-11","total_tracks":15}}
			],"total":1,"next":null}}`)
		}))

		tracks, err := client.SearchTracks(context.Background(), "feel good", 5)
		if err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}
		tr := tracks[0]
		if tr.PrimaryArtistName() != "Gorillaz" {
			t.Errorf("unexpected primary artist %q", tr.PrimaryArtistName())
		}
		if tr.Album == nil || tr.Album.Name != "Demon Days" {
			t.Errorf("unexpected album %+v", tr.Album)
		}
		if tr.URL != "http://open/t1" || !tr.Explicit {
			t.Errorf("unexpected track %+v", tr)
		}
	})
}
