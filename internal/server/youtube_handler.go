package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/resolver"
	"github.com/desertthunder/crate/internal/shared"
)

// YouTubeHandler serves link resolution endpoints: per-track refresh, bulk
// status lookup, and album prefetch scheduling.
type YouTubeHandler struct {
	writer   *catalog.Writer
	resolver *resolver.Resolver
	logger   *log.Logger

	mu       sync.Mutex
	inFlight map[int64]bool
}

// NewYouTubeHandler creates the link endpoint group.
func NewYouTubeHandler(writer *catalog.Writer, res *resolver.Resolver, logger *log.Logger) *YouTubeHandler {
	return &YouTubeHandler{
		writer:   writer,
		resolver: res,
		logger:   logger,
		inFlight: make(map[int64]bool),
	}
}

// Routes returns the method-qualified patterns this handler serves.
func (h *YouTubeHandler) Routes() []string {
	return []string{
		"POST /youtube/track/{track_id}/refresh",
		"POST /youtube/links",
		"POST /youtube/album/{album_id}/prefetch",
	}
}

func (h *YouTubeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.PathValue("track_id") != "":
		h.refreshTrack(w, r)
	case r.PathValue("album_id") != "":
		h.prefetchAlbum(w, r)
	default:
		h.bulkLinks(w, r)
	}
}

type linkItem struct {
	SpotifyTrackID string            `json:"spotify_track_id"`
	Status         models.LinkStatus `json:"status"`
	YouTubeVideoID string            `json:"youtube_video_id,omitempty"`
	YouTubeURL     string            `json:"youtube_url,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
}

func linkToItem(link *models.YouTubeLink) linkItem {
	updated := link.UpdatedAt
	return linkItem{
		SpotifyTrackID: link.SpotifyTrackID,
		Status:         link.EffectiveStatus(),
		YouTubeVideoID: link.VideoID,
		YouTubeURL:     link.YouTubeURL(),
		ErrorMessage:   link.ErrorMessage,
		UpdatedAt:      &updated,
	}
}

func (h *YouTubeHandler) refreshTrack(w http.ResponseWriter, r *http.Request) {
	spotifyID := r.PathValue("track_id")

	track, err := h.writer.Tracks().GetBySpotifyID(spotifyID)
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.resolver.ResolveTrack(r.Context(), track.ID, true)
	if err != nil && link == nil {
		if stored, getErr := h.writer.Links().Get(spotifyID); getErr == nil {
			writeJSON(w, http.StatusOK, linkToItem(stored))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkToItem(link))
}

type bulkLinksRequest struct {
	SpotifyTrackIDs []string `json:"spotify_track_ids"`
}

func (h *YouTubeHandler) bulkLinks(w http.ResponseWriter, r *http.Request) {
	var req bulkLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(req.SpotifyTrackIDs) == 0 {
		badRequest(w, "spotify_track_ids is required")
		return
	}

	items := make([]linkItem, 0, len(req.SpotifyTrackIDs))
	for _, id := range req.SpotifyTrackIDs {
		link, err := h.writer.Links().Get(id)
		if shared.IsNotFound(err) {
			items = append(items, linkItem{SpotifyTrackID: id, Status: models.LinkPending})
			continue
		}
		if err != nil {
			writeError(w, err)
			return
		}
		items = append(items, linkToItem(link))
	}
	writeJSON(w, http.StatusOK, map[string][]linkItem{"items": items})
}

func (h *YouTubeHandler) prefetchAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := strconv.ParseInt(r.PathValue("album_id"), 10, 64)
	if err != nil {
		badRequest(w, "album_id must be an integer")
		return
	}
	if _, err := h.writer.Albums().Get(albumID); err != nil {
		writeError(w, err)
		return
	}

	tracks, err := h.writer.Tracks().ListByAlbum(albumID)
	if err != nil {
		writeError(w, err)
		return
	}

	pending := make([]int64, 0, len(tracks))
	for _, track := range tracks {
		if track.SpotifyID == "" {
			continue
		}
		link, err := h.writer.Links().Get(track.SpotifyID)
		if err == nil {
			switch link.EffectiveStatus() {
			case models.LinkFound, models.LinkCompleted:
				continue
			}
		}
		pending = append(pending, track.ID)
	}
	if len(pending) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cached"})
		return
	}

	h.mu.Lock()
	if h.inFlight[albumID] {
		h.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
		return
	}
	h.inFlight[albumID] = true
	h.mu.Unlock()

	go h.resolveAlbum(albumID, pending)
	writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

// resolveAlbum runs outside the request context so prefetch survives the
// response.
func (h *YouTubeHandler) resolveAlbum(albumID int64, trackIDs []int64) {
	defer func() {
		h.mu.Lock()
		delete(h.inFlight, albumID)
		h.mu.Unlock()
	}()

	for _, id := range trackIDs {
		if _, err := h.resolver.ResolveTrack(context.Background(), id, false); err != nil {
			h.logger.Debug("album prefetch resolve failed", "track_id", id, "error", err)
		}
	}
}
