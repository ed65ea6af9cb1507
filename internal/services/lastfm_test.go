package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/crate/internal/shared"
)

func newTestLastFMClient(t *testing.T, handler http.HandlerFunc) *LastFMClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewLastFMClient("test-key")
	if err != nil {
		t.Fatalf("NewLastFMClient failed: %v", err)
	}
	client.baseURL = srv.URL + "/"
	client.limiter = newPace(0) // no pacing in tests
	return client
}

func TestLastFMClient(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewLastFMClient("")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("artist info", func(t *testing.T) {
		client := newTestLastFMClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("method") != "artist.getInfo" || q.Get("api_key") != "test-key" {
				t.Errorf("unexpected query %v", q)
			}
			fmt.Fprint(w, `{"artist":{
				"name":"Radiohead","url":"http://last.fm/radiohead",
				"stats":{"listeners":"5000000"},
				"tags":{"tag":[{"name":"Alternative Rock"},{"name":"indie"}]},
				"bio":{"summary":"An English rock band.","content":"An English rock band formed in 1985."},
				"similar":{"artist":[{"name":"Thom Yorke"},{"name":"Blur"}]}}}`)
		})

		info, err := client.GetArtistInfo(context.Background(), "Radiohead")
		if err != nil {
			t.Fatalf("GetArtistInfo failed: %v", err)
		}
		if info.Name != "Radiohead" || info.Listeners != 5000000 {
			t.Errorf("unexpected info %+v", info)
		}
		if len(info.Tags) != 2 || info.Tags[0] != "alternative rock" {
			t.Errorf("expected lowercased tags, got %v", info.Tags)
		}
		if len(info.Similar) != 2 {
			t.Errorf("expected 2 similar, got %v", info.Similar)
		}
	})

	t.Run("embedded error document", func(t *testing.T) {
		client := newTestLastFMClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":6,"message":"The artist you supplied could not be found"}`)
		})

		_, err := client.GetArtistInfo(context.Background(), "no such artist")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("similar artists parse match score", func(t *testing.T) {
		client := newTestLastFMClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"similarartists":{"artist":[
				{"name":"Blur","match":"0.87","url":"http://last.fm/blur",
				 "image":[{"#text":"http://img/s","size":"small"},{"#text":"http://img/xl","size":"extralarge"}]}
			]}}`)
		})

		similar, err := client.GetSimilarArtists(context.Background(), "Gorillaz", 5)
		if err != nil {
			t.Fatalf("GetSimilarArtists failed: %v", err)
		}
		if len(similar) != 1 {
			t.Fatalf("expected 1 artist, got %d", len(similar))
		}
		if similar[0].Match != 0.87 {
			t.Errorf("expected match 0.87, got %f", similar[0].Match)
		}
		if similar[0].Image != "http://img/xl" {
			t.Errorf("expected extralarge image, got %s", similar[0].Image)
		}
	})

	t.Run("track info collects tags", func(t *testing.T) {
		client := newTestLastFMClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"track":{"name":"Karma Police","artist":{"name":"Radiohead"},
				"duration":"261000",
				"toptags":{"tag":[{"name":"rock"},{"name":"90s"}]}}}`)
		})

		info, err := client.GetTrackInfo(context.Background(), "Radiohead", "Karma Police")
		if err != nil {
			t.Fatalf("GetTrackInfo failed: %v", err)
		}
		if info.Duration != 261000 || len(info.Tags) != 2 {
			t.Errorf("unexpected info %+v", info)
		}
	})

	t.Run("top artists by tag", func(t *testing.T) {
		client := newTestLastFMClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("tag") != "shoegaze" || q.Get("page") != "2" {
				t.Errorf("unexpected query %v", q)
			}
			fmt.Fprint(w, `{"topartists":{"artist":[{"name":"Slowdive","url":"http://last.fm/slowdive"}]}}`)
		})

		artists, err := client.GetTopArtistsByTag(context.Background(), "shoegaze", 20, 2)
		if err != nil {
			t.Fatalf("GetTopArtistsByTag failed: %v", err)
		}
		if len(artists) != 1 || artists[0].Name != "Slowdive" {
			t.Errorf("unexpected artists %v", artists)
		}
	})

	t.Run("paces requests", func(t *testing.T) {
		client, err := NewLastFMClient("test-key")
		if err != nil {
			t.Fatalf("NewLastFMClient failed: %v", err)
		}
		if client.limiter.Limit() != 1.0 {
			t.Errorf("expected one request per second, got %v", client.limiter.Limit())
		}
	})
}
