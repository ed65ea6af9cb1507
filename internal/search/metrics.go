package search

import (
	"sync"

	"github.com/desertthunder/crate/internal/services"
)

// resolutionCounter tracks one resolution class globally and per user.
type resolutionCounter struct {
	Global  int
	PerUser map[string]int
}

func (c *resolutionCounter) record(userID string) {
	c.Global++
	if userID == "" {
		return
	}
	if c.PerUser == nil {
		c.PerUser = make(map[string]int)
	}
	c.PerUser[userID]++
}

// Metrics holds the process-wide search counters: local and external
// resolutions split globally and per user, provider requests per calendar
// day, and fallback invocations.
type Metrics struct {
	mu        sync.Mutex
	local     resolutionCounter
	external  resolutionCounter
	providers map[string]*services.DayQuota
	fallbacks int
	anchor    int
}

// NewMetrics creates a metrics registry with provider day windows anchored
// at the given local hour.
func NewMetrics(anchorHour int) *Metrics {
	return &Metrics{
		providers: make(map[string]*services.DayQuota),
		anchor:    anchorHour,
	}
}

// RecordLocal counts a search answered from the catalog.
func (m *Metrics) RecordLocal(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local.record(userID)
}

// RecordExternal counts a search answered by provider fanout.
func (m *Metrics) RecordExternal(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.external.record(userID)
}

// RecordProviderRequest counts one outbound request in the provider's
// current day window.
func (m *Metrics) RecordProviderRequest(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quota, ok := m.providers[provider]
	if !ok {
		quota = services.NewDayQuota(m.anchor, 0)
		m.providers[provider] = quota
	}
	quota.TryAcquire()
}

// RecordFallback counts one media-fetcher fallback invocation.
func (m *Metrics) RecordFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

// ResolutionSnapshot is the serializable view of one resolution counter.
type ResolutionSnapshot struct {
	Global  int            `json:"global"`
	PerUser map[string]int `json:"per_user,omitempty"`
}

// Snapshot is the serializable view of the whole registry.
type Snapshot struct {
	Local     ResolutionSnapshot `json:"local"`
	External  ResolutionSnapshot `json:"external"`
	Providers map[string]int     `json:"providers"`
	Fallbacks int                `json:"fallbacks"`
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Local:     ResolutionSnapshot{Global: m.local.Global, PerUser: copyCounts(m.local.PerUser)},
		External:  ResolutionSnapshot{Global: m.external.Global, PerUser: copyCounts(m.external.PerUser)},
		Providers: make(map[string]int, len(m.providers)),
		Fallbacks: m.fallbacks,
	}
	for name, quota := range m.providers {
		snap.Providers[name] = quota.Used()
	}
	return snap
}

func copyCounts(src map[string]int) map[string]int {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
