package models

import "time"

// ChartDateLayout is the ISO layout used for chart week anchors.
const ChartDateLayout = "2006-01-02"

// ChartEntry is one raw scraped chart row.
type ChartEntry struct {
	ID        int64
	Source    string
	Chart     string
	ChartDate string // Saturday-aligned ISO date
	Rank      int
	Title     string
	Artist    string
}

// TrackChartEntry joins a raw chart row to a catalog track.
type TrackChartEntry struct {
	ID        int64
	TrackID   int64
	Source    string
	Chart     string
	ChartDate string
	Rank      int
}

// TrackChartStats is the derived per-(track, source, chart) aggregate.
// It is rebuildable from track_chart_entries at any time.
type TrackChartStats struct {
	TrackID        int64
	Source         string
	Chart          string
	BestPosition   int
	WeeksOnChart   int
	WeeksAtOne     int
	WeeksTop5      int
	WeeksTop10     int
	FirstChartDate string
	LastChartDate  string
}

// ChartScanState is the scraper cursor for one (source, chart).
type ChartScanState struct {
	Source           string
	Chart            string
	LastScannedDate  string
	BackfillComplete bool
}

// PreviousChartSaturday returns the most recent Saturday at or before t,
// the weekly anchor charts are published on.
func PreviousChartSaturday(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) - int(time.Saturday) + 7) % 7
	return t.AddDate(0, 0, -offset)
}
