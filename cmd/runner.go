package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/resolver"
	"github.com/desertthunder/crate/internal/search"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
)

// Runner holds the CLI dependencies and provides a method per command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{config: opts.Config, logger: opts.Logger, output: opts.Output}
}

// app bundles the wired components behind one database handle.
type app struct {
	db           *sql.DB
	writer       *catalog.Writer
	charts       *repositories.ChartRepository
	expander     *catalog.Expander
	freshness    *catalog.Freshness
	metrics      *search.Metrics
	orchestrator *search.Orchestrator
	lists        *search.Lists
	resolver     *resolver.Resolver
	spotify      services.MetadataProvider
	lastfm       services.StatsProvider
	video        services.VideoProvider
}

func (a *app) Close() {
	if a.orchestrator != nil {
		a.orchestrator.Close()
	}
	a.db.Close()
}

// build opens the store and wires every component the commands share.
// Provider clients are only constructed when their credentials are present;
// absent providers leave the matching sections of results empty.
func (r *Runner) build() (*app, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		db:     db,
		writer: catalog.NewWriter(db, r.logger),
		charts: repositories.NewChartRepository(db),
	}

	creds := r.config.Credentials
	if creds.Spotify.ClientID != "" && creds.Spotify.ClientSecret != "" {
		spotify, err := services.NewSpotifyClient(creds.Spotify.ClientID, creds.Spotify.ClientSecret)
		if err != nil {
			r.logger.Warn("spotify client unavailable", "error", err)
		} else {
			a.spotify = spotify
		}
	}
	if creds.LastFM.APIKey != "" {
		lastfm, err := services.NewLastFMClient(creds.LastFM.APIKey)
		if err != nil {
			r.logger.Warn("lastfm client unavailable", "error", err)
		} else {
			a.lastfm = lastfm
		}
	}
	if len(r.config.YouTubeKeys()) > 0 {
		video, err := services.NewYouTubeClient(services.YouTubeConfig{
			Keys:        r.config.YouTubeKeys(),
			AnchorHour:  creds.YouTube.QuotaAnchorHour,
			MinInterval: time.Duration(creds.YouTube.MinIntervalSecs) * time.Second,
		})
		if err != nil {
			r.logger.Warn("youtube client unavailable", "error", err)
		} else {
			a.video = video
		}
	}

	var fetcher services.MediaFetcher
	if r.config.Fallback.Enabled {
		fallbackLog := services.NewFallbackLog(r.config.Storage.Root, r.config.Storage.LogRetentionDays)
		fetcher = services.NewYTDLPFetcher(services.YTDLPConfig{
			StorageRoot: r.config.Storage.Root,
			DailyLimit:  r.config.Fallback.DailyLimit,
			MinInterval: time.Duration(r.config.Fallback.MinIntervalSecs) * time.Second,
			AnchorHour:  creds.YouTube.QuotaAnchorHour,
		}, fallbackLog, r.logger)
	}

	ages := catalog.MaxAgesFromConfig(r.config.Freshness)
	a.expander = catalog.NewExpander(a.writer, a.spotify, a.lastfm, r.logger)
	a.freshness = catalog.NewFreshness(a.writer, a.spotify, a.lastfm, ages, r.logger)
	a.metrics = search.NewMetrics(creds.YouTube.QuotaAnchorHour)
	cacheRepo := repositories.NewSearchCacheRepository(db)
	a.orchestrator = search.NewOrchestrator(a.writer, a.expander, a.spotify, a.lastfm, cacheRepo, a.metrics, r.logger)
	a.lists = search.NewLists(a.writer, a.charts, r.logger)
	a.resolver = resolver.New(a.writer, a.video, fetcher, creds.YouTube.SearchMaxResults, r.logger)
	a.resolver.OnFallback = a.metrics.RecordFallback
	return a, nil
}

// scheduler wires the background loops for the serve command. The chart
// scraper only runs when a scrape directory provides pre-fetched weeks.
func (r *Runner) scheduler(a *app, scrapeDir string) *tasks.Scheduler {
	s := tasks.NewScheduler(r.logger)
	s.Register(tasks.NewDailyRefresh(a.writer, a.expander, a.freshness, a.lastfm, r.logger))
	s.Register(tasks.NewGenreBackfill(a.writer, a.lastfm, r.logger))
	s.Register(tasks.NewLibraryRefresh(a.freshness, r.logger))

	matcher := tasks.NewChartMatcher(a.writer, a.charts, r.config.Charts, r.logger)
	s.Register(matcher)
	if scrapeDir != "" {
		s.Register(tasks.NewChartScraper(a.charts, fileFetcher(scrapeDir), matcher, r.config.Charts, r.logger))
	}

	minInterval := time.Duration(r.config.Credentials.YouTube.MinIntervalSecs) * time.Second
	s.Register(tasks.NewYouTubePrefetch(a.writer, a.resolver, minInterval, r.logger))
	return s
}

// reloadConfig replaces the runner's config from the given path when the
// file exists.
func (r *Runner) reloadConfig(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	r.config = config
	return nil
}

// fileFetcher reads pre-scraped chart weeks from <dir>/<chart>/<date>.json,
// each file holding a JSON array of {rank, title, artist} rows. A missing
// file means the week is unavailable.
func fileFetcher(dir string) tasks.ChartFetcher {
	return func(_ context.Context, chart, date string) ([]models.ChartEntry, error) {
		path := filepath.Join(dir, chart, date+".json")
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("chart week %s/%s: %w", chart, date, shared.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}

		var rows []struct {
			Rank   int    `json:"rank"`
			Title  string `json:"title"`
			Artist string `json:"artist"`
		}
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		entries := make([]models.ChartEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, models.ChartEntry{Rank: row.Rank, Title: row.Title, Artist: row.Artist})
		}
		return entries, nil
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
