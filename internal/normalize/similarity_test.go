package normalize

import "testing"

func TestTrigramSimilarity(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		if got := TrigramSimilarity("metallica", "metallica"); got != 1 {
			t.Errorf("expected 1, got %f", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := TrigramSimilarity("", ""); got != 0 {
			t.Errorf("expected 0 for empty inputs, got %f", got)
		}
		if got := TrigramSimilarity("abc", ""); got != 0 {
			t.Errorf("expected 0 against empty, got %f", got)
		}
	})

	t.Run("close misspelling scores high", func(t *testing.T) {
		got := TrigramSimilarity("metallica", "metalica")
		if got < 0.5 {
			t.Errorf("expected similarity ≥ 0.5 for near match, got %f", got)
		}
	})

	t.Run("unrelated scores low", func(t *testing.T) {
		got := TrigramSimilarity("metallica", "mozart")
		if got > 0.2 {
			t.Errorf("expected similarity ≤ 0.2 for unrelated strings, got %f", got)
		}
	})
}

func TestLCSRatio(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"abc", "abc", 1, 1},
		{"abc", "", 0, 0},
		{"metalica", "metallica", 0.8, 1},
		{"xyz", "abc", 0, 0},
	}
	for _, tc := range cases {
		got := LCSRatio(tc.a, tc.b)
		if got < tc.min || got > tc.max {
			t.Errorf("LCSRatio(%q, %q) = %f, want within [%f, %f]", tc.a, tc.b, got, tc.min, tc.max)
		}
	}
}

func TestConfident(t *testing.T) {
	cases := []struct {
		name      string
		query     string
		candidate string
		want      bool
	}{
		{"exact", "Metallica", "Metallica", true},
		{"misspelled single token", "metalica", "Metallica", true},
		{"accented", "bjork", "Björk", true},
		{"unrelated", "mozart", "Metallica", false},
		{"multi token shared", "daft punk", "Daft Punk", true},
		{"partial multi token", "dark side moon", "The Dark Side of the Moon", true},
		{"short noise", "xx", "Metallica", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Confident(tc.query, tc.candidate); got != tc.want {
				t.Errorf("Confident(%q, %q) = %v, want %v", tc.query, tc.candidate, got, tc.want)
			}
		})
	}
}

func TestTokenOverlapRatio(t *testing.T) {
	a := []string{"enter", "sandman"}
	b := []string{"enter", "sandman", "official", "video"}
	if got := TokenOverlapRatio(a, b); got != 1 {
		t.Errorf("expected full overlap, got %f", got)
	}

	if got := TokenOverlapRatio(nil, b); got != 0 {
		t.Errorf("expected 0 for empty token list, got %f", got)
	}
}
