package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Environment variables override file values for every recognized option so
// deployments can keep credentials out of the config file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Fallback    FallbackConfig    `toml:"fallback"`
	Charts      ChartsConfig      `toml:"charts"`
	Freshness   FreshnessConfig   `toml:"freshness"`
}

// CredentialsConfig contains provider credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	LastFM  LastFMConfig  `toml:"lastfm"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials for the client-credentials flow.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// LastFMConfig contains the Last.fm API key.
type LastFMConfig struct {
	APIKey string `toml:"api_key"`
}

// YouTubeConfig contains the YouTube Data API key ring and quota policy.
type YouTubeConfig struct {
	APIKey           string `toml:"api_key"`
	APIKey2          string `toml:"api_key_2"`
	QuotaAnchorHour  int    `toml:"quota_anchor_hour"`
	MinIntervalSecs  int    `toml:"min_interval_seconds"`
	SearchMaxResults int    `toml:"search_max_results"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig contains filesystem roots for local artifacts and logs.
type StorageConfig struct {
	Root             string `toml:"root"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// FallbackConfig contains the yt-dlp fallback policy.
type FallbackConfig struct {
	Enabled         bool `toml:"enabled"`
	DailyLimit      int  `toml:"daily_limit"`
	MinIntervalSecs int  `toml:"min_interval_seconds"`
}

// ChartsConfig contains chart scraping and matching knobs.
type ChartsConfig struct {
	BackfillStartDate    string   `toml:"backfill_start_date"`
	BackfillYears        int      `toml:"backfill_years"`
	MaxWeeksPerRun       int      `toml:"max_weeks_per_run"`
	MaxRank              int      `toml:"max_rank"`
	RequestMinDelaySecs  int      `toml:"request_min_delay_seconds"`
	RequestMaxDelaySecs  int      `toml:"request_max_delay_seconds"`
	RefreshIntervalHours int      `toml:"refresh_interval_hours"`
	MatchIntervalHours   int      `toml:"match_refresh_interval_hours"`
	Names                []string `toml:"names"`
}

// FreshnessConfig contains per-entity staleness ages expressed in hours.
type FreshnessConfig struct {
	ArtistMaxAgeHours int `toml:"artist_max_age_hours"`
	AlbumMaxAgeHours  int `toml:"album_max_age_hours"`
	TrackMaxAgeHours  int `toml:"track_max_age_hours"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded
// example config, with environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	envString(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	envString(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	envString(&c.Credentials.LastFM.APIKey, "LASTFM_API_KEY")
	envString(&c.Credentials.YouTube.APIKey, "YOUTUBE_API_KEY")
	envString(&c.Credentials.YouTube.APIKey2, "YOUTUBE_API_KEY_2")
	envString(&c.Storage.Root, "STORAGE_ROOT")
	envInt(&c.Storage.LogRetentionDays, "LOG_RETENTION_DAYS")
	envBool(&c.Fallback.Enabled, "YTDLP_FALLBACK_ENABLED")
	envInt(&c.Fallback.DailyLimit, "YTDLP_DAILY_LIMIT")
	envInt(&c.Fallback.MinIntervalSecs, "YTDLP_MIN_INTERVAL_SECONDS")
	envString(&c.Charts.BackfillStartDate, "CHART_BACKFILL_START_DATE")
	envInt(&c.Charts.BackfillYears, "CHART_BACKFILL_YEARS")
	envInt(&c.Charts.MaxWeeksPerRun, "CHART_MAX_WEEKS_PER_RUN")
	envInt(&c.Charts.MaxRank, "CHART_MAX_RANK")
	envInt(&c.Charts.RequestMinDelaySecs, "CHART_REQUEST_MIN_DELAY_SECONDS")
	envInt(&c.Charts.RequestMaxDelaySecs, "CHART_REQUEST_MAX_DELAY_SECONDS")
	envInt(&c.Charts.RefreshIntervalHours, "CHART_REFRESH_INTERVAL_HOURS")
	envInt(&c.Charts.MatchIntervalHours, "CHART_MATCH_REFRESH_INTERVAL_HOURS")
}

// YouTubeKeys returns the configured API key ring, skipping empty slots.
func (c *Config) YouTubeKeys() []string {
	keys := []string{}
	for _, k := range []string{c.Credentials.YouTube.APIKey, c.Credentials.YouTube.APIKey2} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
