package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
)

// ChartStatsHandler serves chart aggregates for tracks, addressable by
// provider id or local id.
type ChartStatsHandler struct {
	charts *repositories.ChartRepository
}

// NewChartStatsHandler creates the chart stats endpoint.
func NewChartStatsHandler(charts *repositories.ChartRepository) *ChartStatsHandler {
	return &ChartStatsHandler{charts: charts}
}

// Routes returns the method-qualified patterns this handler serves.
func (h *ChartStatsHandler) Routes() []string {
	return []string{"GET /tracks/chart-stats"}
}

type chartStatsItem struct {
	TrackID        int64  `json:"track_id"`
	SpotifyTrackID string `json:"spotify_track_id,omitempty"`
	Source         string `json:"source"`
	Chart          string `json:"chart"`
	BestPosition   int    `json:"best_position"`
	WeeksOnChart   int    `json:"weeks_on_chart"`
	WeeksAtOne     int    `json:"weeks_at_one"`
	WeeksTop5      int    `json:"weeks_top5"`
	WeeksTop10     int    `json:"weeks_top10"`
	FirstChartDate string `json:"first_chart_date"`
	LastChartDate  string `json:"last_chart_date"`
}

func (h *ChartStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	spotifyIDs := splitParam(r.URL.Query().Get("spotify_ids"))
	trackIDs := splitParam(r.URL.Query().Get("track_ids"))
	if len(spotifyIDs) == 0 && len(trackIDs) == 0 {
		badRequest(w, "spotify_ids or track_ids is required")
		return
	}

	items := []chartStatsItem{}
	for _, id := range spotifyIDs {
		stats, err := h.charts.GetStatsBySpotifyID(id)
		if err != nil {
			writeError(w, err)
			return
		}
		items = appendStats(items, stats, id)
	}
	for _, raw := range trackIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "track_ids must be integers")
			return
		}
		stats, err := h.charts.GetStats(id)
		if err != nil {
			writeError(w, err)
			return
		}
		items = appendStats(items, stats, "")
	}
	writeJSON(w, http.StatusOK, map[string][]chartStatsItem{"items": items})
}

func appendStats(items []chartStatsItem, stats []*models.TrackChartStats, spotifyID string) []chartStatsItem {
	for _, s := range stats {
		items = append(items, chartStatsItem{
			TrackID:        s.TrackID,
			SpotifyTrackID: spotifyID,
			Source:         s.Source,
			Chart:          s.Chart,
			BestPosition:   s.BestPosition,
			WeeksOnChart:   s.WeeksOnChart,
			WeeksAtOne:     s.WeeksAtOne,
			WeeksTop5:      s.WeeksTop5,
			WeeksTop10:     s.WeeksTop10,
			FirstChartDate: s.FirstChartDate,
			LastChartDate:  s.LastChartDate,
		})
	}
	return items
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
