package tasks

import (
	"context"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// DefaultChartSource labels scraped rows; every configured chart belongs to
// the same publication.
const DefaultChartSource = "billboard"

const (
	defaultChartInterval = 24 * time.Hour
	defaultBackfillYears = 2
	defaultMaxWeeks      = 10
)

// ChartFetcher retrieves one week of a chart. Returned rows need only Rank,
// Title, and Artist; the scraper stamps source, chart, and date.
type ChartFetcher func(ctx context.Context, chart, date string) ([]models.ChartEntry, error)

// ChartScraper walks each configured chart week by week on a Saturday grid,
// backward until the backfill horizon and forward once backfill completes.
// Fetched weeks are matched against the catalog in the same run.
type ChartScraper struct {
	charts  *repositories.ChartRepository
	fetcher ChartFetcher
	matcher *ChartMatcher
	cfg     shared.ChartsConfig
	logger  *log.Logger
	now     func() time.Time
	rng     *rand.Rand
}

// NewChartScraper creates the scraper task. The matcher may be nil, in which
// case scraped weeks wait for the matcher's own schedule.
func NewChartScraper(charts *repositories.ChartRepository, fetcher ChartFetcher, matcher *ChartMatcher, cfg shared.ChartsConfig, logger *log.Logger) *ChartScraper {
	return &ChartScraper{
		charts:  charts,
		fetcher: fetcher,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ChartScraper) Name() string { return "chart-scraper" }

func (c *ChartScraper) Interval() time.Duration {
	if c.cfg.RefreshIntervalHours > 0 {
		return time.Duration(c.cfg.RefreshIntervalHours) * time.Hour
	}
	return defaultChartInterval
}

func (c *ChartScraper) Run(ctx context.Context) error {
	for _, chart := range c.cfg.Names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.scrapeChart(ctx, chart); err != nil {
			c.logger.Warn("chart scrape failed", "chart", chart, "error", err)
		}
	}
	return nil
}

func (c *ChartScraper) scrapeChart(ctx context.Context, chart string) error {
	state, err := c.charts.GetScanState(DefaultChartSource, chart)
	if shared.IsNotFound(err) {
		state = &models.ChartScanState{Source: DefaultChartSource, Chart: chart}
	} else if err != nil {
		return err
	}

	dates, completed := c.planWeeks(state)
	if len(dates) == 0 {
		return nil
	}

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := sleepFor(ctx, c.requestDelay()); err != nil {
				return err
			}
		}
		if err := c.fetchWeek(ctx, chart, date); err != nil {
			c.logger.Warn("chart week fetch failed", "chart", chart, "date", date, "error", err)
			continue
		}
		state.LastScannedDate = date
		if err := c.charts.SaveScanState(state); err != nil {
			return err
		}
	}

	if completed && !state.BackfillComplete {
		// Forward scanning resumes from the present, not the horizon.
		state.BackfillComplete = true
		state.LastScannedDate = models.PreviousChartSaturday(c.now().UTC()).Format(models.ChartDateLayout)
		if err := c.charts.SaveScanState(state); err != nil {
			return err
		}
		c.logger.Info("chart backfill complete", "chart", chart)
	}

	if c.matcher != nil {
		if err := c.matcher.matchChart(ctx, chart); err != nil {
			c.logger.Warn("chart match failed", "chart", chart, "error", err)
		}
	}
	return nil
}

// planWeeks picks the Saturday dates for this run. Backward walks also
// report whether they reached the backfill horizon.
func (c *ChartScraper) planWeeks(state *models.ChartScanState) ([]string, bool) {
	maxWeeks := c.cfg.MaxWeeksPerRun
	if maxWeeks <= 0 {
		maxWeeks = defaultMaxWeeks
	}
	anchor := models.PreviousChartSaturday(c.now().UTC())

	if state.BackfillComplete {
		cursor := anchor
		if state.LastScannedDate != "" {
			last, err := time.Parse(models.ChartDateLayout, state.LastScannedDate)
			if err == nil {
				cursor = models.PreviousChartSaturday(last).AddDate(0, 0, 7)
			}
		}
		var dates []string
		for len(dates) < maxWeeks && !cursor.After(anchor) {
			dates = append(dates, cursor.Format(models.ChartDateLayout))
			cursor = cursor.AddDate(0, 0, 7)
		}
		return dates, false
	}

	cursor := anchor
	if state.LastScannedDate != "" {
		last, err := time.Parse(models.ChartDateLayout, state.LastScannedDate)
		if err == nil {
			cursor = models.PreviousChartSaturday(last).AddDate(0, 0, -7)
		}
	}
	horizon := c.backfillHorizon()
	var dates []string
	for len(dates) < maxWeeks && !cursor.Before(horizon) {
		dates = append(dates, cursor.Format(models.ChartDateLayout))
		cursor = cursor.AddDate(0, 0, -7)
	}
	return dates, cursor.Before(horizon)
}

func (c *ChartScraper) backfillHorizon() time.Time {
	if c.cfg.BackfillStartDate != "" {
		if start, err := time.Parse(models.ChartDateLayout, c.cfg.BackfillStartDate); err == nil {
			return models.PreviousChartSaturday(start)
		}
	}
	years := c.cfg.BackfillYears
	if years <= 0 {
		years = defaultBackfillYears
	}
	return models.PreviousChartSaturday(c.now().UTC().AddDate(-years, 0, 0))
}

func (c *ChartScraper) fetchWeek(ctx context.Context, chart, date string) error {
	exists, err := c.charts.HasWeek(DefaultChartSource, chart, date)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	rows, err := c.fetcher(ctx, chart, date)
	if err != nil {
		return err
	}

	entries := make([]*models.ChartEntry, 0, len(rows))
	for i := range rows {
		entry := rows[i]
		if c.cfg.MaxRank > 0 && entry.Rank > c.cfg.MaxRank {
			continue
		}
		entry.Source = DefaultChartSource
		entry.Chart = chart
		entry.ChartDate = date
		entries = append(entries, &entry)
	}

	inserted, err := c.charts.SaveEntries(entries)
	if err != nil {
		return err
	}
	c.logger.Debug("chart week stored", "chart", chart, "date", date, "rows", inserted)
	return nil
}

func (c *ChartScraper) requestDelay() time.Duration {
	minDelay, maxDelay := c.cfg.RequestMinDelaySecs, c.cfg.RequestMaxDelaySecs
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if maxDelay <= 0 {
		return 0
	}
	span := float64(maxDelay - minDelay)
	return time.Duration((float64(minDelay) + c.rng.Float64()*span) * float64(time.Second))
}
