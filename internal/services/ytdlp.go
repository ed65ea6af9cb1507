// yt-dlp based media fetcher, the fallback path when the YouTube API quota
// runs out.
package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

// MediaFetcher searches for and downloads audio outside the API quota.
type MediaFetcher interface {
	// SearchVideo returns the best video match for a free-text query, or
	// ErrNotFound when the extractor finds nothing.
	SearchVideo(ctx context.Context, query string) (*models.Video, error)

	// DownloadAudio fetches a video's audio into the storage root and
	// returns the file path and size. A partial file is removed on failure
	// or cancellation.
	DownloadAudio(ctx context.Context, videoID, format string) (string, int64, error)

	// Available reports whether the fetcher's own daily budget has room.
	Available() bool
}

// YTDLPConfig carries the fetcher knobs.
type YTDLPConfig struct {
	Binary      string
	StorageRoot string
	DailyLimit  int
	MinInterval time.Duration
	AnchorHour  int
}

// YTDLPFetcher shells out to the yt-dlp binary. It keeps a daily counter
// independent of the API client and logs every invocation to the fallback
// log.
type YTDLPFetcher struct {
	binary      string
	storageRoot string
	limiter     *rate.Limiter
	quota       *DayQuota
	fallbackLog *FallbackLog
	logger      *log.Logger
}

// NewYTDLPFetcher creates a fetcher. The fallback log may be nil.
func NewYTDLPFetcher(cfg YTDLPConfig, fallbackLog *FallbackLog, logger *log.Logger) *YTDLPFetcher {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.MinInterval < 3*time.Second {
		cfg.MinInterval = 3 * time.Second
	}
	return &YTDLPFetcher{
		binary:      cfg.Binary,
		storageRoot: cfg.StorageRoot,
		limiter:     newPace(cfg.MinInterval),
		quota:       NewDayQuota(cfg.AnchorHour, cfg.DailyLimit),
		fallbackLog: fallbackLog,
		logger:      logger,
	}
}

// Available reports whether the daily budget has room.
func (f *YTDLPFetcher) Available() bool {
	return f.quota.Available()
}

type ytdlpResult struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Channel    string `json:"channel"`
	Uploader   string `json:"uploader"`
	UploadDate string `json:"upload_date"`
}

// SearchVideo runs the extractor in search mode and returns the top match.
func (f *YTDLPFetcher) SearchVideo(ctx context.Context, query string) (*models.Video, error) {
	if query == "" {
		return nil, fmt.Errorf("query: %w", shared.ErrInvalidInput)
	}
	if !f.quota.TryAcquire() {
		return nil, fmt.Errorf("ytdlp search: %w", shared.ErrQuotaExhausted)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, f.binary,
		"--dump-json", "--no-playlist", "--no-warnings",
		"ytsearch1:"+query)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	f.record("search", map[string]any{"query": query, "ok": err == nil})
	if err != nil {
		return nil, fmt.Errorf("ytdlp search failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	line, err := bufio.NewReader(&stdout).ReadBytes('\n')
	if len(line) == 0 {
		return nil, fmt.Errorf("ytdlp search %q: %w", query, shared.ErrNotFound)
	}

	var result ytdlpResult
	if err := json.Unmarshal(bytes.TrimSpace(line), &result); err != nil {
		return nil, fmt.Errorf("failed to decode ytdlp output: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("ytdlp search %q: %w", query, shared.ErrNotFound)
	}

	channel := result.Channel
	if channel == "" {
		channel = result.Uploader
	}
	video := &models.Video{
		VideoID:      result.ID,
		Title:        result.Title,
		ChannelTitle: channel,
	}
	if ts, err := time.Parse("20060102", result.UploadDate); err == nil {
		video.PublishedAt = &ts
	}
	return video, nil
}

// DownloadAudio extracts a video's audio into <root>/audio. Partial files
// left by a failed or cancelled run are removed.
func (f *YTDLPFetcher) DownloadAudio(ctx context.Context, videoID, format string) (string, int64, error) {
	if videoID == "" {
		return "", 0, fmt.Errorf("video id: %w", shared.ErrInvalidInput)
	}
	if format == "" {
		format = "mp3"
	}
	if !f.quota.TryAcquire() {
		return "", 0, fmt.Errorf("ytdlp download: %w", shared.ErrQuotaExhausted)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}

	dir := filepath.Join(f.storageRoot, "audio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create audio dir: %w", err)
	}
	outPath := filepath.Join(dir, videoID+"."+format)

	cmd := exec.CommandContext(ctx, f.binary,
		"-x", "--audio-format", format, "--no-playlist", "--no-warnings",
		"-o", outPath,
		"https://www.youtube.com/watch?v="+videoID)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	f.record("download", map[string]any{"video_id": videoID, "format": format, "ok": err == nil})
	if err != nil {
		os.Remove(outPath)
		return "", 0, fmt.Errorf("ytdlp download failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", 0, fmt.Errorf("downloaded file missing: %w", err)
	}
	return outPath, info.Size(), nil
}

func (f *YTDLPFetcher) record(kind string, fields map[string]any) {
	if f.fallbackLog == nil {
		return
	}
	if err := f.fallbackLog.Append(kind, fields); err != nil && f.logger != nil {
		f.logger.Warn("fallback log append failed", "error", err)
	}
}

// FallbackLog is the append-only JSON-lines record of fallback invocations,
// pruned past the retention horizon at most once every 6 hours.
type FallbackLog struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	lastPrune time.Time
	now       func() time.Time
}

const fallbackPruneInterval = 6 * time.Hour

// NewFallbackLog creates the log under <root>/logs/ytdlp_fallback.log.
func NewFallbackLog(storageRoot string, retentionDays int) *FallbackLog {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &FallbackLog{
		path:      filepath.Join(storageRoot, "logs", "ytdlp_fallback.log"),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Path returns the log file location.
func (l *FallbackLog) Path() string {
	return l.path
}

// Append writes one event line, pruning old lines when due.
func (l *FallbackLog) Append(source string, fields map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	if now.Sub(l.lastPrune) >= fallbackPruneInterval {
		if err := l.prune(now); err != nil {
			return err
		}
		l.lastPrune = now
	}

	event := map[string]any{"ts": now.Format(time.RFC3339), "source": source}
	for k, v := range fields {
		event[k] = v
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode fallback event: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open fallback log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write fallback log: %w", err)
	}
	return nil
}

// prune rewrites the file keeping only lines inside the retention window.
func (l *FallbackLog) prune(now time.Time) error {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read fallback log: %w", err)
	}

	cutoff := now.Add(-l.retention)
	var kept bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event struct {
			TS string `json:"ts"`
		}
		if json.Unmarshal(line, &event) == nil {
			if ts, err := time.Parse(time.RFC3339, event.TS); err == nil && ts.Before(cutoff) {
				continue
			}
		}
		kept.Write(line)
		kept.WriteByte('\n')
	}

	if kept.Len() == len(data) {
		return nil
	}
	if err := os.WriteFile(l.path, kept.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite fallback log: %w", err)
	}
	return nil
}
