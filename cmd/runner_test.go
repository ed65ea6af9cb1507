package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crate/internal/shared"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})
	})

	t.Run("writePlainln", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlainln("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world\n" {
			t.Errorf("expected %q, got %q", "hello world\n", output.String())
		}
	})

	t.Run("reloadConfig", func(t *testing.T) {
		t.Run("empty path is a no-op", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			before := runner.config

			if err := runner.reloadConfig(""); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config != before {
				t.Error("expected config to be unchanged")
			}
		})

		t.Run("missing file is a no-op", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			before := runner.config

			if err := runner.reloadConfig(filepath.Join(t.TempDir(), "absent.toml")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config != before {
				t.Error("expected config to be unchanged")
			}
		})

		t.Run("existing file replaces config", func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			content := "[database]\npath = \"" + filepath.Join(dir, "library.db") + "\"\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}

			runner := NewRunner(RunnerOpts{})
			if err := runner.reloadConfig(path); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Database.Path != filepath.Join(dir, "library.db") {
				t.Errorf("expected database path from file, got %s", runner.config.Database.Path)
			}
		})

		t.Run("malformed file returns error", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[database\npath ="), 0644); err != nil {
				t.Fatal(err)
			}

			runner := NewRunner(RunnerOpts{})
			if err := runner.reloadConfig(path); err == nil {
				t.Fatal("expected error for malformed config")
			}
		})
	})

	t.Run("fileFetcher", func(t *testing.T) {
		dir := t.TempDir()
		chartDir := filepath.Join(dir, "hot-100")
		if err := os.MkdirAll(chartDir, 0755); err != nil {
			t.Fatal(err)
		}
		week := `[
			{"rank": 1, "title": "One", "artist": "Metallica"},
			{"rank": 2, "title": "Glory Box", "artist": "Portishead"}
		]`
		if err := os.WriteFile(filepath.Join(chartDir, "2024-03-16.json"), []byte(week), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(chartDir, "2024-03-09.json"), []byte("not json"), 0644); err != nil {
			t.Fatal(err)
		}

		fetch := fileFetcher(dir)

		t.Run("parses stored week", func(t *testing.T) {
			entries, err := fetch(context.Background(), "hot-100", "2024-03-16")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			if entries[0].Rank != 1 || entries[0].Title != "One" || entries[0].Artist != "Metallica" {
				t.Errorf("unexpected first entry: %+v", entries[0])
			}
		})

		t.Run("missing week reports not found", func(t *testing.T) {
			_, err := fetch(context.Background(), "hot-100", "2024-03-23")
			if err == nil {
				t.Fatal("expected error for missing week")
			}
			if !shared.IsNotFound(err) {
				t.Errorf("expected not found error, got %v", err)
			}
		})

		t.Run("malformed week returns parse error", func(t *testing.T) {
			_, err := fetch(context.Background(), "hot-100", "2024-03-09")
			if err == nil {
				t.Fatal("expected error for malformed week")
			}
			if shared.IsNotFound(err) {
				t.Errorf("expected parse error, got not found: %v", err)
			}
		})
	})

	t.Run("build", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(t.TempDir(), "crate.db")
		config.Credentials = shared.CredentialsConfig{}
		config.Fallback.Enabled = false
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

		a, err := runner.build()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer a.Close()

		if a.writer == nil || a.orchestrator == nil || a.resolver == nil || a.lists == nil {
			t.Error("expected core components to be wired")
		}
		if a.spotify != nil || a.lastfm != nil || a.video != nil {
			t.Error("expected providers to be absent without credentials")
		}

		if a.resolver.OnFallback == nil {
			t.Fatal("expected resolver fallback hook to be wired")
		}
		a.resolver.OnFallback()
		if got := a.metrics.Snapshot().Fallbacks; got != 1 {
			t.Errorf("expected fallback hook to feed the metrics counter, got %d", got)
		}

		var count int
		if err := a.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'artists'").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Error("expected migrations to create the artists table")
		}
	})
}
