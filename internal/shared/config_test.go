package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "crate.db" {
			t.Errorf("expected database path crate.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Credentials.YouTube.QuotaAnchorHour != 4 {
			t.Errorf("expected quota anchor hour 4, got %d", config.Credentials.YouTube.QuotaAnchorHour)
		}
		if config.Fallback.DailyLimit != 200 {
			t.Errorf("expected fallback daily limit 200, got %d", config.Fallback.DailyLimit)
		}
		if len(config.Charts.Names) != 1 || config.Charts.Names[0] != "hot-100" {
			t.Errorf("expected chart names [hot-100], got %v", config.Charts.Names)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("expected error when config file already exists")
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env-client")
		t.Setenv("YOUTUBE_API_KEY_2", "env-key-2")
		t.Setenv("CHART_MAX_RANK", "25")

		config := DefaultConfig()
		if config.Credentials.Spotify.ClientID != "env-client" {
			t.Errorf("expected env spotify client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.YouTube.APIKey2 != "env-key-2" {
			t.Errorf("expected env second youtube key, got %s", config.Credentials.YouTube.APIKey2)
		}
		if config.Charts.MaxRank != 25 {
			t.Errorf("expected env max rank 25, got %d", config.Charts.MaxRank)
		}
	})

	t.Run("YouTubeKeys", func(t *testing.T) {
		config := DefaultConfig()
		config.Credentials.YouTube.APIKey = ""
		config.Credentials.YouTube.APIKey2 = ""
		if keys := config.YouTubeKeys(); len(keys) != 0 {
			t.Errorf("expected no keys, got %v", keys)
		}

		config.Credentials.YouTube.APIKey = "primary"
		if keys := config.YouTubeKeys(); len(keys) != 1 || keys[0] != "primary" {
			t.Errorf("expected [primary], got %v", keys)
		}

		config.Credentials.YouTube.APIKey2 = "secondary"
		if keys := config.YouTubeKeys(); len(keys) != 2 || keys[1] != "secondary" {
			t.Errorf("expected both keys in order, got %v", keys)
		}
	})
}
