// Package models defines the data model for the music library aggregator.
//
// # Entities
//
// [Artist], [Album] and [Track] form the local catalog. Local ids are dense
// integers assigned by SQLite; provider ids are the stable external
// identifiers produced by the metadata provider and are unique when present.
//
// [YouTubeLink] tracks the playable-source lifecycle for a track, keyed by
// the track's provider id. [Alias] rows back the fuzzy lookup index.
//
// [ChartEntry], [TrackChartStats] and [ChartScanState] hold raw scraped
// chart rows, the derived per-track statistics and the scraper cursor.
//
// # Provider shapes
//
// ProviderArtist, ProviderAlbum, ProviderTrack, SimilarArtist and Video are
// the uniform result shapes produced by the provider clients; the catalog
// writer converts them into entities.
package models
