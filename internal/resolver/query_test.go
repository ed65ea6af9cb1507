package resolver

import (
	"testing"

	"github.com/desertthunder/crate/internal/models"
)

func TestBuildQueries(t *testing.T) {
	t.Run("with album", func(t *testing.T) {
		queries := BuildQueries("Daft Punk", "Around the World", "Homework")
		want := []string{
			"Daft Punk Around the World Homework official video",
			"Daft Punk Around the World official video",
			"Daft Punk Around the World",
		}
		if len(queries) != len(want) {
			t.Fatalf("expected %d queries, got %d", len(want), len(queries))
		}
		for i := range want {
			if queries[i] != want[i] {
				t.Errorf("query %d = %q, want %q", i, queries[i], want[i])
			}
		}
	})

	t.Run("without album", func(t *testing.T) {
		queries := BuildQueries("Daft Punk", "Around the World", "")
		if len(queries) != 2 {
			t.Fatalf("expected 2 queries, got %d", len(queries))
		}
		if queries[0] != "Daft Punk Around the World official video" {
			t.Errorf("unexpected first query %q", queries[0])
		}
	})
}

func TestScoreCandidate(t *testing.T) {
	t.Run("exact title with official bonus", func(t *testing.T) {
		score, ok := scoreCandidate(models.Video{
			Title:        "Daft Punk - Around the World (Official Video)",
			ChannelTitle: "DaftPunkVEVO",
		}, "Daft Punk", "Around the World")
		if !ok {
			t.Fatal("expected candidate to pass")
		}
		// full overlap plus phrase, official, vevo and channel bonuses
		if score < 140 {
			t.Errorf("expected heavily bonused score, got %f", score)
		}
	})

	t.Run("noise tokens do not dilute the ratio", func(t *testing.T) {
		_, ok := scoreCandidate(models.Video{
			Title: "Around the World [HD Remastered Lyric Video 4K]",
		}, "Daft Punk", "Around the World")
		if !ok {
			t.Error("expected noise-padded title to pass")
		}
	})

	t.Run("unrelated title fails", func(t *testing.T) {
		_, ok := scoreCandidate(models.Video{
			Title: "Top 10 cooking fails compilation",
		}, "Daft Punk", "Around the World")
		if ok {
			t.Error("expected unrelated candidate to fail")
		}
	})

	t.Run("topic channel gets the music hint", func(t *testing.T) {
		plain, ok := scoreCandidate(models.Video{
			Title:        "Around the World",
			ChannelTitle: "randomuploader123",
		}, "Daft Punk", "Around the World")
		if !ok {
			t.Fatal("expected plain candidate to pass")
		}
		topic, ok := scoreCandidate(models.Video{
			Title:        "Around the World",
			ChannelTitle: "Daft Punk - Topic",
		}, "Daft Punk", "Around the World")
		if !ok {
			t.Fatal("expected topic candidate to pass")
		}
		if topic <= plain {
			t.Errorf("expected topic channel ranked above plain uploader, got %f vs %f", topic, plain)
		}
	})
}

func TestRankCandidates(t *testing.T) {
	videos := []models.Video{
		{VideoID: "v-cover", Title: "Around the World (Live Cover)", ChannelTitle: "someguy"},
		{VideoID: "v-official", Title: "Daft Punk - Around the World (Official Video)", ChannelTitle: "DaftPunkVEVO"},
		{VideoID: "v-official", Title: "duplicate id", ChannelTitle: "x"},
		{VideoID: "", Title: "Around the World"},
		{VideoID: "v-noise", Title: "unboxing my new turntable", ChannelTitle: "gearhead"},
	}

	ranked := RankCandidates(videos, "Daft Punk", "Around the World")
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(ranked))
	}
	if ranked[0].Video.VideoID != "v-official" {
		t.Errorf("expected official video first, got %s", ranked[0].Video.VideoID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("expected descending scores, got %f then %f", ranked[0].Score, ranked[1].Score)
	}
}
