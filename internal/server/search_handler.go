package server

import (
	"net/http"
	"strconv"

	"github.com/desertthunder/crate/internal/search"
)

// SearchHandler serves the search endpoints backed by the orchestrator and
// the metrics registry.
type SearchHandler struct {
	orchestrator *search.Orchestrator
	metrics      *search.Metrics
}

// NewSearchHandler creates the search endpoint group.
func NewSearchHandler(orchestrator *search.Orchestrator, metrics *search.Metrics) *SearchHandler {
	return &SearchHandler{orchestrator: orchestrator, metrics: metrics}
}

// Routes returns the method-qualified patterns this handler serves.
func (h *SearchHandler) Routes() []string {
	return []string{
		"GET /search/orchestrated",
		"GET /search/artist-profile",
		"GET /search/tracks-quick",
		"GET /search/metrics",
	}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/search/orchestrated":
		h.orchestrated(w, r)
	case "/search/artist-profile":
		h.artistProfile(w, r)
	case "/search/tracks-quick":
		h.tracksQuick(w, r)
	case "/search/metrics":
		writeJSON(w, http.StatusOK, h.metrics.Snapshot())
	default:
		http.NotFound(w, r)
	}
}

func (h *SearchHandler) orchestrated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, "q is required")
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	payload, err := h.orchestrator.Search(r.Context(), q, page, limit, h.options(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *SearchHandler) artistProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, "q is required")
		return
	}
	similarLimit := queryInt(r, "similar_limit", 10)
	minFollowers := queryInt(r, "min_followers", 0)

	payload, err := h.orchestrator.ArtistProfile(r.Context(), q, similarLimit, minFollowers, h.options(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *SearchHandler) tracksQuick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, "q is required")
		return
	}
	limit := queryInt(r, "limit", 10)

	payload, err := h.orchestrator.TracksQuick(r.Context(), q, limit, h.options(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *SearchHandler) options(r *http.Request) search.Options {
	return search.Options{UserID: r.URL.Query().Get("user")}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
