// Package services implements the three provider clients the aggregator
// pulls from: Spotify for catalog metadata, Last.fm for tags and similarity,
// and YouTube for video links, plus the yt-dlp media fetcher the resolver
// falls back to when the API quota runs out.
//
// All clients share the same primitives: a minimum inter-request interval, a
// calendar-day quota window anchored at a configurable local hour, and a
// uniform HTTP error classification.
package services
