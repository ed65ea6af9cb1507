package models

import "time"

// SearchCacheEntry is a persisted orchestrated-search payload, used to warm
// the in-process cache across restarts. TTL is applied at read time.
type SearchCacheEntry struct {
	CacheKey  string
	ID        string // opaque row id
	Payload   []byte // JSON document
	Context   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the entry is older than ttl at the given instant.
func (e *SearchCacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.UpdatedAt) > ttl
}
