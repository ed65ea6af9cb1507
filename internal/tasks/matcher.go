package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	defaultMatchInterval = 12 * time.Hour
	matchBatch           = 500
)

// ChartMatcher joins raw chart rows to catalog tracks. Artists match by
// normalized name or alias; titles match exactly or by substring containment
// in either direction within the artist's tracks.
type ChartMatcher struct {
	writer *catalog.Writer
	charts *repositories.ChartRepository
	cfg    shared.ChartsConfig
	logger *log.Logger
}

// NewChartMatcher creates the matcher task.
func NewChartMatcher(writer *catalog.Writer, charts *repositories.ChartRepository, cfg shared.ChartsConfig, logger *log.Logger) *ChartMatcher {
	return &ChartMatcher{writer: writer, charts: charts, cfg: cfg, logger: logger}
}

func (m *ChartMatcher) Name() string { return "chart-matcher" }

func (m *ChartMatcher) Interval() time.Duration {
	if m.cfg.MatchIntervalHours > 0 {
		return time.Duration(m.cfg.MatchIntervalHours) * time.Hour
	}
	return defaultMatchInterval
}

func (m *ChartMatcher) Run(ctx context.Context) error {
	for _, chart := range m.cfg.Names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.matchChart(ctx, chart); err != nil {
			m.logger.Warn("chart match failed", "chart", chart, "error", err)
		}
	}
	return nil
}

func (m *ChartMatcher) matchChart(ctx context.Context, chart string) error {
	entries, err := m.charts.ListUnmatchedEntries(DefaultChartSource, chart, matchBatch)
	if err != nil {
		return err
	}

	matched := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		track := m.matchEntry(entry)
		if track == nil {
			continue
		}
		err := m.charts.SaveMatch(&models.TrackChartEntry{
			TrackID:   track.ID,
			Source:    entry.Source,
			Chart:     entry.Chart,
			ChartDate: entry.ChartDate,
			Rank:      entry.Rank,
		})
		if err != nil {
			m.logger.Warn("chart match save failed", "title", entry.Title, "error", err)
			continue
		}
		matched++
	}
	if matched > 0 {
		m.logger.Info("chart rows matched", "chart", chart, "count", matched)
	}
	return nil
}

func (m *ChartMatcher) matchEntry(entry *models.ChartEntry) *models.Track {
	artist := m.findArtist(entry.Artist)
	if artist == nil {
		return nil
	}

	title := normalize.Normalize(entry.Title)
	if title == "" {
		return nil
	}
	if track, err := m.writer.Tracks().GetByArtistAndName(artist.ID, title); err == nil {
		return track
	}

	tracks, err := m.writer.Tracks().ListByArtist(artist.ID, -1)
	if err != nil {
		return nil
	}
	for _, track := range tracks {
		if strings.Contains(track.NormalizedName, title) || strings.Contains(title, track.NormalizedName) {
			return track
		}
	}
	return nil
}

func (m *ChartMatcher) findArtist(name string) *models.Artist {
	normalized := normalize.Normalize(name)
	if normalized == "" {
		return nil
	}
	if artist, err := m.writer.Artists().GetByNormalizedName(normalized); err == nil {
		return artist
	}

	ids, err := m.writer.Aliases().LookupExact(models.KindArtist, normalized)
	if err != nil || len(ids) == 0 {
		return nil
	}
	artist, err := m.writer.Artists().Get(ids[0])
	if err != nil {
		return nil
	}
	return artist
}
