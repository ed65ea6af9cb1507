// submodule cmd contains command definitions
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crate/internal/search"
	"github.com/desertthunder/crate/internal/server"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize the database and write a starter config",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// Setup writes a starter config when none exists, then opens the database
// and applies migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("create config: %w", err)
		}
		r.writePlainln("wrote starter config to %s", configPath)
	}
	if err := r.reloadConfig(configPath); err != nil {
		return err
	}

	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	return r.writePlainln("database ready at %s", r.config.Database.Path)
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server and background loops",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "scrape-dir",
				Usage: "Directory of pre-scraped chart weeks (<chart>/<date>.json)",
			},
		},
		Action: r.Serve,
	}
}

// Serve runs the HTTP listener and the background loops until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}
	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := r.scheduler(a, cmd.String("scrape-dir"))
	sched.Start(ctx)

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.RequestLogger(r.logger))
	router.Handler(server.NewSearchHandler(a.orchestrator, a.metrics))
	router.Handler(server.NewYouTubeHandler(a.writer, a.resolver, r.logger))
	router.Handler(server.NewChartStatsHandler(a.charts))

	err = server.New(r.config.Server, router, r.logger).Start(ctx)
	sched.Wait()
	return err
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run an orchestrated search against the catalog and providers",
		Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "limit", Value: 10},
			&cli.StringFlag{Name: "user", Usage: "User id recorded in metrics"},
			&cli.BoolFlag{Name: "pretty", Value: true},
		},
		Action: r.Search,
	}
}

// Search prints the orchestrated search payload as JSON.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("search query: %w", shared.ErrMissingArgument)
	}
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}
	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	payload, err := a.orchestrator.Search(ctx, query, int(cmd.Int("page")), int(cmd.Int("limit")),
		search.Options{UserID: cmd.String("user")})
	if err != nil {
		return err
	}
	return r.writeJSON(payload, cmd.Bool("pretty"))
}

func expandCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "expand",
		Usage:     "Pull an artist's discography into the catalog",
		Arguments: []cli.Argument{&cli.StringArg{Name: "artist-id"}},
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "similar",
				Usage: "Also expand up to N similar artists",
			},
			&cli.IntFlag{
				Name:  "tracks-per-artist",
				Usage: "Track cap for similar-artist expansion",
				Value: 10,
			},
			&cli.BoolFlag{Name: "pretty", Value: true},
		},
		Action: r.Expand,
	}
}

// Expand seeds the catalog from a provider artist id.
func (r *Runner) Expand(ctx context.Context, cmd *cli.Command) error {
	artistID := cmd.StringArg("artist-id")
	if artistID == "" {
		return fmt.Errorf("artist id: %w", shared.ErrMissingArgument)
	}
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}
	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	similar := int(cmd.Int("similar"))
	if similar > 0 {
		result, err := a.expander.ExpandWithSimilar(ctx, artistID, similar, int(cmd.Int("tracks-per-artist")))
		if err != nil {
			return err
		}
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	result, err := a.expander.ExpandFromSeed(ctx, artistID)
	if err != nil {
		return err
	}
	return r.writeJSON(result, cmd.Bool("pretty"))
}

func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a track's playable YouTube link",
		Arguments: []cli.Argument{&cli.StringArg{Name: "track-id"}},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{Name: "force", Usage: "Ignore the stored link and cooldowns"},
			&cli.BoolFlag{Name: "download", Usage: "Download the audio after resolving"},
			&cli.StringFlag{Name: "format", Value: "mp3", Usage: "Audio format for downloads"},
			&cli.BoolFlag{Name: "pretty", Value: true},
		},
		Action: r.Resolve,
	}
}

// Resolve finds (and optionally downloads) the playable link for a stored
// track addressed by provider id.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	spotifyID := cmd.StringArg("track-id")
	if spotifyID == "" {
		return fmt.Errorf("track id: %w", shared.ErrMissingArgument)
	}
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}
	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	track, err := a.writer.Tracks().GetBySpotifyID(spotifyID)
	if err != nil {
		return err
	}

	if cmd.Bool("download") {
		link, err := a.resolver.DownloadTrack(ctx, track.ID, cmd.String("format"))
		if err != nil {
			return err
		}
		return r.writeJSON(link, cmd.Bool("pretty"))
	}

	link, err := a.resolver.ResolveTrack(ctx, track.ID, cmd.Bool("force"))
	if err != nil {
		return err
	}
	return r.writeJSON(link, cmd.Bool("pretty"))
}

func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "lists",
		Usage:     "Print a curated list (" + listNamesUsage() + ")",
		Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "user", Usage: "User id for user-scoped lists"},
			&cli.BoolFlag{Name: "pretty", Value: true},
		},
		Action: r.Lists,
	}
}

func listNamesUsage() string {
	names := make([]string, len(search.ListNames))
	for i, name := range search.ListNames {
		names[i] = string(name)
	}
	return strings.Join(names, ", ")
}

// Lists generates and prints one curated list.
func (r *Runner) Lists(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("list name: %w", shared.ErrMissingArgument)
	}
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}
	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.lists.Get(search.ListName(name), cmd.String("user"))
	if err != nil {
		return err
	}
	return r.writeJSON(list, cmd.Bool("pretty"))
}

func chartsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "charts",
		Usage: "Chart scraping and matching operations",
		Commands: []*cli.Command{
			{
				Name:  "backfill",
				Usage: "Scrape historical chart weeks from a directory and match them",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "Directory of pre-scraped weeks (<chart>/<date>.json)",
						Required: true,
					},
				},
				Action: r.ChartsBackfill,
			},
		},
	}
}

// ChartsBackfill runs one scraper pass over pre-fetched chart files and
// matches the stored rows against the catalog.
func (r *Runner) ChartsBackfill(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}
	a, err := r.build()
	if err != nil {
		return err
	}
	defer a.Close()

	matcher := tasks.NewChartMatcher(a.writer, a.charts, r.config.Charts, r.logger)
	scraper := tasks.NewChartScraper(a.charts, fileFetcher(cmd.String("dir")), matcher, r.config.Charts, r.logger)
	if err := scraper.Run(ctx); err != nil {
		return err
	}
	return r.writePlainln("chart backfill pass complete")
}
