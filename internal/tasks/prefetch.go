package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/resolver"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	prefetchInterval   = time.Hour
	prefetchBatch      = 25
	prefetchQuotaPause = 15 * time.Minute
	quotaPauseAfter    = 2
)

// YouTubePrefetch resolves playable links ahead of demand. Each iteration
// scans tracks with no link plus links whose error or not-found cooldown has
// lapsed, resolving one at a time with the client's minimum interval between
// items. Repeated quota or rate-limit errors pause the whole loop.
type YouTubePrefetch struct {
	writer      *catalog.Writer
	resolver    *resolver.Resolver
	minInterval time.Duration
	logger      *log.Logger
	now         func() time.Time
	pausedUntil time.Time
}

// NewYouTubePrefetch creates the prefetch task.
func NewYouTubePrefetch(writer *catalog.Writer, res *resolver.Resolver, minInterval time.Duration, logger *log.Logger) *YouTubePrefetch {
	return &YouTubePrefetch{
		writer:      writer,
		resolver:    res,
		minInterval: minInterval,
		logger:      logger,
		now:         time.Now,
	}
}

func (p *YouTubePrefetch) Name() string            { return "youtube-prefetch" }
func (p *YouTubePrefetch) Interval() time.Duration { return prefetchInterval }

func (p *YouTubePrefetch) Run(ctx context.Context) error {
	if p.now().Before(p.pausedUntil) {
		p.logger.Debug("prefetch paused", "until", p.pausedUntil)
		return nil
	}

	tracks, err := p.candidates()
	if err != nil {
		return err
	}

	quotaErrors := 0
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := sleepFor(ctx, p.minInterval); err != nil {
				return err
			}
		}

		if _, err := p.resolver.ResolveTrack(ctx, track.ID, false); err != nil {
			if errors.Is(err, shared.ErrQuotaExhausted) || errors.Is(err, shared.ErrRateLimited) {
				quotaErrors++
				if quotaErrors >= quotaPauseAfter {
					p.pausedUntil = p.now().Add(prefetchQuotaPause)
					p.logger.Warn("prefetch pausing on quota errors", "until", p.pausedUntil)
					return nil
				}
				continue
			}
			p.logger.Debug("prefetch resolve failed", "track", track.Name, "error", err)
			continue
		}
		quotaErrors = 0
	}
	return nil
}

// candidates gathers unlinked tracks first, then links past their retry
// cooldown, newest errors last.
func (p *YouTubePrefetch) candidates() ([]*models.Track, error) {
	tracks, err := p.writer.Tracks().ListWithoutLink(prefetchBatch)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(tracks))
	for _, track := range tracks {
		seen[track.ID] = true
	}

	now := p.now().UTC()
	retryable := []struct {
		status models.LinkStatus
		before time.Time
	}{
		{models.LinkError, now.Add(-resolver.ErrorCooldown)},
		{models.LinkVideoNotFound, now.Add(-resolver.NotFoundCooldown)},
	}
	for _, scan := range retryable {
		if len(tracks) >= prefetchBatch {
			break
		}
		links, err := p.writer.Links().ListRetryable(scan.status, scan.before, prefetchBatch-len(tracks))
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			track, err := p.writer.Tracks().GetBySpotifyID(link.SpotifyTrackID)
			if err != nil || seen[track.ID] {
				continue
			}
			seen[track.ID] = true
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}
