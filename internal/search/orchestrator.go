package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/services"
)

const (
	memoryCacheTTL  = 60 * time.Second
	memoryCacheSize = 512
	persistedTTL    = time.Hour

	spotifyTimeout = 4 * time.Second
	lastfmTimeout  = 6 * time.Second
	similarTimeout = 5 * time.Second

	enrichConcurrency = 15

	defaultFollowerFloor = 300_000
	similarFollowerFloor = 1_000_000

	expandTopN = 8

	persistQueueSize = 256
)

// Options tunes one orchestrated search call.
type Options struct {
	UserID        string
	FollowerFloor int
}

// Orchestrator is the search entry point: local-first against the catalog,
// parallel provider fanout only when no confident local match exists.
// External results are persisted opportunistically in the background.
type Orchestrator struct {
	writer   *catalog.Writer
	expander *catalog.Expander
	spotify  services.MetadataProvider
	lastfm   services.StatsProvider
	metrics  *Metrics
	logger   *log.Logger

	cache     *expirable.LRU[string, []byte]
	cacheRepo cacheStore
	sem       *semaphore.Weighted

	persistCh chan models.ProviderArtist
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeMu   sync.Mutex
	closed    bool
	done      chan struct{}
}

// cacheStore is the persisted search-cache surface the orchestrator uses.
type cacheStore interface {
	Get(cacheKey string) (*models.SearchCacheEntry, error)
	Put(entry *models.SearchCacheEntry) error
}

// NewOrchestrator creates an orchestrator and starts its persistence worker.
// The stats provider, expander and cache store may each be nil, disabling
// the corresponding behavior.
func NewOrchestrator(writer *catalog.Writer, expander *catalog.Expander, spotify services.MetadataProvider, lastfm services.StatsProvider, cacheRepo cacheStore, metrics *Metrics, logger *log.Logger) *Orchestrator {
	o := &Orchestrator{
		writer:    writer,
		expander:  expander,
		spotify:   spotify,
		lastfm:    lastfm,
		metrics:   metrics,
		logger:    logger,
		cache:     expirable.NewLRU[string, []byte](memoryCacheSize, nil, memoryCacheTTL),
		cacheRepo: cacheRepo,
		sem:       semaphore.NewWeighted(enrichConcurrency),
		persistCh: make(chan models.ProviderArtist, persistQueueSize),
		done:      make(chan struct{}),
	}
	o.wg.Add(1)
	go o.persistWorker()
	return o
}

// Close stops the background persistence worker and waits for it to drain.
// Expansions scheduled before Close are waited on; later ones are refused.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closeMu.Lock()
		o.closed = true
		o.closeMu.Unlock()
		close(o.done)
	})
	o.wg.Wait()
}

func (o *Orchestrator) persistWorker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			// drain what is already queued before exiting
			for {
				select {
				case payload := <-o.persistCh:
					o.saveExternal(payload)
				default:
					return
				}
			}
		case payload := <-o.persistCh:
			o.saveExternal(payload)
		}
	}
}

func (o *Orchestrator) saveExternal(payload models.ProviderArtist) {
	if _, err := o.writer.SaveArtist(payload); err != nil {
		o.logger.Warn("background artist save failed", "artist", payload.Name, "error", err)
	}
}

// queuePersist enqueues an external artist for background saving. A full
// queue drops the payload; the next search will see it again.
func (o *Orchestrator) queuePersist(p models.ProviderArtist) {
	if p.Name == "" {
		return
	}
	select {
	case o.persistCh <- p:
	default:
		o.logger.Debug("persistence queue full, dropping artist", "artist", p.Name)
	}
}

// scheduleExpansion fires a full discography expansion for up to expandTopN
// external artists that have no local row yet. Never awaited.
func (o *Orchestrator) scheduleExpansion(artists []ArtistPair) {
	if o.expander == nil {
		return
	}
	scheduled := 0
	for _, pair := range artists {
		if scheduled >= expandTopN {
			break
		}
		if pair.Spotify == nil || pair.Spotify.ID == "" {
			continue
		}
		if _, err := o.writer.Artists().GetBySpotifyID(pair.Spotify.ID); err == nil {
			continue
		}
		id := pair.Spotify.ID
		scheduled++
		// The Add must be ordered against Close's Wait, so it happens
		// under the lock that Close takes before waiting.
		o.closeMu.Lock()
		if o.closed {
			o.closeMu.Unlock()
			return
		}
		o.wg.Add(1)
		o.closeMu.Unlock()
		go func() {
			defer o.wg.Done()
			if _, err := o.expander.ExpandFromSeed(context.Background(), id); err != nil {
				o.logger.Warn("scheduled expansion failed", "spotify_id", id, "error", err)
			}
		}()
	}
}

func searchKey(kind, q string, page, limit int) string {
	return kind + "|" + strings.ToLower(strings.TrimSpace(q)) + "|" +
		strconv.Itoa(page) + "|" + strconv.Itoa(limit)
}

// cachedPayload checks the memory cache, then the persisted cache table.
func (o *Orchestrator) cachedPayload(key string, out any) bool {
	if raw, ok := o.cache.Get(key); ok {
		return json.Unmarshal(raw, out) == nil
	}
	if o.cacheRepo == nil {
		return false
	}
	entry, err := o.cacheRepo.Get(key)
	if err != nil || entry.Expired(time.Now().UTC(), persistedTTL) {
		return false
	}
	if json.Unmarshal(entry.Payload, out) != nil {
		return false
	}
	o.cache.Add(key, entry.Payload)
	return true
}

// storePayload writes a payload to both cache layers.
func (o *Orchestrator) storePayload(key, queryContext string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	o.cache.Add(key, raw)
	if o.cacheRepo == nil {
		return
	}
	if err := o.cacheRepo.Put(&models.SearchCacheEntry{
		CacheKey: key,
		Payload:  raw,
		Context:  queryContext,
	}); err != nil {
		o.logger.Warn("search cache persist failed", "key", key, "error", err)
	}
}

// Search runs the orchestrated search flow.
func (o *Orchestrator) Search(ctx context.Context, q string, page, limit int, opts Options) (*Payload, error) {
	q = strings.TrimSpace(q)
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	payload := &Payload{
		Query:     q,
		Page:      page,
		Limit:     limit,
		Artists:   []ArtistPair{},
		Related:   []ArtistPair{},
		Tracks:    []models.ProviderTrack{},
		LastFMTop: []models.SimilarArtist{},
	}
	if q == "" {
		return payload, nil
	}

	key := searchKey("search", q, page, limit)
	var cached Payload
	if o.cachedPayload(key, &cached) {
		return &cached, nil
	}

	if local := o.localSearch(q, limit); local != nil {
		payload.Main = local.Main
		payload.Artists = local.Artists
		payload.Related = local.Related
		payload.Tracks = local.Tracks
		o.metrics.RecordLocal(opts.UserID)
		o.storePayload(key, q, payload)
		return payload, nil
	}

	o.externalFanout(ctx, q, limit, opts, payload)
	o.metrics.RecordExternal(opts.UserID)
	o.storePayload(key, q, payload)
	return payload, nil
}

// localResult is the portion of a payload a confident local hit can fill.
type localResult struct {
	Main    *ArtistPair
	Artists []ArtistPair
	Related []ArtistPair
	Tracks  []models.ProviderTrack
}

// localSearch resolves the query against stored aliases. It returns nil when
// no confident artist or track match exists.
func (o *Orchestrator) localSearch(q string, limit int) *localResult {
	artist := o.confidentArtist(q)
	tracks := o.confidentTracks(q, limit)
	if artist == nil && len(tracks) == 0 {
		return nil
	}

	result := &localResult{
		Artists: []ArtistPair{},
		Related: []ArtistPair{},
		Tracks:  []models.ProviderTrack{},
	}

	if artist != nil {
		pair := ArtistPair{Spotify: artistToProvider(artist)}
		result.Main = &pair
		result.Artists = append(result.Artists, pair)

		if related, err := o.writer.Artists().ListByGenres(artist.Genres, artist.ID, limit); err == nil {
			for _, rel := range related {
				result.Related = append(result.Related, ArtistPair{Spotify: artistToProvider(rel)})
			}
		}
		if len(tracks) == 0 {
			if top, err := o.writer.Tracks().ListByArtist(artist.ID, limit); err == nil {
				tracks = top
			}
		}
	}

	for _, track := range tracks {
		result.Tracks = append(result.Tracks, o.convertLocalTrack(track))
	}
	return result
}

// confidentArtist returns the best stored artist whose alias confidently
// matches the query, or nil.
func (o *Orchestrator) confidentArtist(q string) *models.Artist {
	matches, err := o.writer.Aliases().Search(models.KindArtist, q, 5)
	if err != nil {
		o.logger.Warn("alias search failed", "query", q, "error", err)
		return nil
	}
	for _, match := range matches {
		artist, err := o.writer.Artists().Get(match.EntityID)
		if err != nil {
			continue
		}
		if normalize.Confident(q, artist.Name) || normalize.Confident(q, match.Normalized) {
			return artist
		}
	}
	return nil
}

// confidentTracks returns stored tracks whose normalized title contains
// every query token.
func (o *Orchestrator) confidentTracks(q string, limit int) []*models.Track {
	qTokens := normalize.Tokens(normalize.Normalize(q))
	if len(qTokens) == 0 {
		return nil
	}

	matches, err := o.writer.Aliases().Search(models.KindTrack, q, limit)
	if err != nil {
		return nil
	}

	var confident []*models.Track
	for _, match := range matches {
		track, err := o.writer.Tracks().Get(match.EntityID)
		if err != nil {
			continue
		}
		if containsAllTokens(track.NormalizedName, qTokens) {
			confident = append(confident, track)
		}
		if len(confident) >= limit {
			break
		}
	}
	return confident
}

func containsAllTokens(normalizedTitle string, qTokens []string) bool {
	titleTokens := normalize.Tokens(normalizedTitle)
	for _, qt := range qTokens {
		found := false
		for _, tt := range titleTokens {
			if tt == qt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (o *Orchestrator) convertLocalTrack(track *models.Track) models.ProviderTrack {
	artist, err := o.writer.Artists().Get(track.ArtistID)
	if err != nil {
		artist = nil
	}
	var album *models.Album
	if track.AlbumID != nil {
		album, _ = o.writer.Albums().Get(*track.AlbumID)
	}
	return trackToProvider(track, artist, album)
}

// externalFanout fills the payload from the providers in parallel. Failures
// and timeouts degrade to empty sections.
func (o *Orchestrator) externalFanout(ctx context.Context, q string, limit int, opts Options, payload *Payload) {
	floor := opts.FollowerFloor
	if floor <= 0 {
		floor = defaultFollowerFloor
	}
	genre := queryGenre(q)

	var (
		wg         sync.WaitGroup
		tracks     []models.ProviderTrack
		tagTop     []models.SimilarArtist
		enriched   []ArtistPair
		similarOut []ArtistPair
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		tctx, cancel := context.WithTimeout(ctx, spotifyTimeout)
		defer cancel()
		found, err := o.spotify.SearchTracks(tctx, q, limit)
		if err != nil {
			o.logger.Debug("external track search failed", "query", q, "error", err)
			return
		}
		o.metrics.RecordProviderRequest("spotify")
		tracks = found
	}()

	go func() {
		defer wg.Done()
		if o.lastfm == nil {
			return
		}
		tctx, cancel := context.WithTimeout(ctx, lastfmTimeout)
		defer cancel()
		top, err := o.lastfm.GetTopArtistsByTag(tctx, q, limit, 1)
		if err != nil {
			o.logger.Debug("tag top lookup failed", "query", q, "error", err)
			return
		}
		o.metrics.RecordProviderRequest("lastfm")
		tagTop = top
		enriched = o.enrichArtists(ctx, top, floor, genre)
	}()
	wg.Wait()

	if len(enriched) > 0 && o.lastfm != nil {
		tctx, cancel := context.WithTimeout(ctx, similarTimeout)
		similar, err := o.lastfm.GetSimilarArtists(tctx, enriched[0].Name(), limit)
		cancel()
		if err == nil {
			o.metrics.RecordProviderRequest("lastfm")
			similarOut = o.enrichArtists(ctx, similar, similarFollowerFloor, genre)
		}
	}

	payload.Tracks = dedupeTracks(tracks)
	if tagTop != nil {
		payload.LastFMTop = tagTop
	}
	payload.Artists = dedupeArtists(enriched)
	payload.Related = dedupeArtists(similarOut)
	if len(payload.Artists) > 0 {
		payload.Main = &payload.Artists[0]
	}
	if len(payload.Artists) > limit {
		payload.Artists = payload.Artists[:limit]
		payload.HasMoreArtists = true
	}
	payload.HasMoreLastFM = len(tagTop) >= limit

	for _, pair := range payload.Artists {
		if pair.Spotify != nil {
			o.queuePersist(*pair.Spotify)
		}
	}
	o.scheduleExpansion(payload.Artists)
}

// enrichArtists resolves stats-provider rows to full metadata-provider
// artists under the fanout semaphore, applying the follower floor and the
// genre filter.
func (o *Orchestrator) enrichArtists(ctx context.Context, rows []models.SimilarArtist, floor int, genre string) []ArtistPair {
	pairs := make([]*ArtistPair, len(rows))
	var wg sync.WaitGroup
	for i, row := range rows {
		if row.Name == "" {
			continue
		}
		if err := o.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, row models.SimilarArtist) {
			defer wg.Done()
			defer o.sem.Release(1)

			tctx, cancel := context.WithTimeout(ctx, spotifyTimeout)
			defer cancel()
			found, err := o.spotify.SearchArtists(tctx, row.Name, 1)
			if err != nil || len(found) == 0 {
				return
			}
			o.metrics.RecordProviderRequest("spotify")

			artist := found[0]
			if artist.Followers < floor {
				return
			}
			if !onGenre(artist.Genres, genre) {
				return
			}
			lastfm := row
			pairs[i] = &ArtistPair{Spotify: &artist, LastFM: &lastfm}
		}(i, row)
	}
	wg.Wait()

	var out []ArtistPair
	for _, pair := range pairs {
		if pair != nil {
			out = append(out, *pair)
		}
	}
	return out
}

// dedupeArtists drops repeated artists by provider id, then by normalized
// name.
func dedupeArtists(pairs []ArtistPair) []ArtistPair {
	seenID := make(map[string]bool, len(pairs))
	seenName := make(map[string]bool, len(pairs))
	out := []ArtistPair{}
	for _, pair := range pairs {
		if pair.Spotify != nil && pair.Spotify.ID != "" {
			if seenID[pair.Spotify.ID] {
				continue
			}
			seenID[pair.Spotify.ID] = true
		}
		name := normalize.Normalize(pair.Name())
		if name != "" {
			if seenName[name] {
				continue
			}
			seenName[name] = true
		}
		out = append(out, pair)
	}
	return out
}

func dedupeTracks(tracks []models.ProviderTrack) []models.ProviderTrack {
	seen := make(map[string]bool, len(tracks))
	out := []models.ProviderTrack{}
	for _, track := range tracks {
		key := track.ID
		if key == "" {
			key = normalize.Normalize(track.PrimaryArtistName() + " " + track.Name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, track)
	}
	return out
}

// ArtistProfile answers a single-artist query: main pair plus similar
// artists and top tracks, local-first.
func (o *Orchestrator) ArtistProfile(ctx context.Context, q string, similarLimit, minFollowers int, opts Options) (*ProfilePayload, error) {
	q = strings.TrimSpace(q)
	if similarLimit <= 0 {
		similarLimit = 5
	}
	payload := &ProfilePayload{
		Query:   q,
		Mode:    "artist",
		Similar: []ArtistPair{},
		Tracks:  []models.ProviderTrack{},
	}
	if q == "" {
		return payload, nil
	}

	key := searchKey("profile", q, similarLimit, minFollowers)
	var cached ProfilePayload
	if o.cachedPayload(key, &cached) {
		return &cached, nil
	}

	if artist := o.confidentArtist(q); artist != nil {
		pair := ArtistPair{Spotify: artistToProvider(artist)}
		payload.Main = &pair
		if related, err := o.writer.Artists().ListByGenres(artist.Genres, artist.ID, similarLimit); err == nil {
			for _, rel := range related {
				payload.Similar = append(payload.Similar, ArtistPair{Spotify: artistToProvider(rel)})
			}
		}
		if top, err := o.writer.Tracks().ListByArtist(artist.ID, 10); err == nil {
			for _, track := range top {
				payload.Tracks = append(payload.Tracks, trackToProvider(track, artist, nil))
			}
		}
		o.metrics.RecordLocal(opts.UserID)
		o.storePayload(key, q, payload)
		return payload, nil
	}

	floor := minFollowers
	if floor <= 0 {
		floor = defaultFollowerFloor
	}

	tctx, cancel := context.WithTimeout(ctx, spotifyTimeout)
	found, err := o.spotify.SearchArtists(tctx, q, 1)
	cancel()
	if err != nil {
		return payload, fmt.Errorf("artist profile %q: %w", q, err)
	}
	o.metrics.RecordProviderRequest("spotify")
	if len(found) == 0 {
		o.metrics.RecordExternal(opts.UserID)
		return payload, nil
	}

	main := found[0]
	payload.Main = &ArtistPair{Spotify: &main}
	o.queuePersist(main)

	if o.lastfm != nil {
		sctx, scancel := context.WithTimeout(ctx, similarTimeout)
		similar, err := o.lastfm.GetSimilarArtists(sctx, main.Name, similarLimit)
		scancel()
		if err == nil {
			o.metrics.RecordProviderRequest("lastfm")
			payload.Similar = o.enrichArtists(ctx, similar, floor, "")
		}
	}

	o.metrics.RecordExternal(opts.UserID)
	o.storePayload(key, q, payload)
	return payload, nil
}

// TracksQuick answers a tracks-only query, returning immediately on a
// confident local hit.
func (o *Orchestrator) TracksQuick(ctx context.Context, q string, limit int, opts Options) (*TracksPayload, error) {
	q = strings.TrimSpace(q)
	if limit <= 0 {
		limit = 10
	}
	payload := &TracksPayload{Query: q, Tracks: []models.ProviderTrack{}}
	if q == "" {
		return payload, nil
	}

	key := searchKey("tracks", q, 0, limit)
	var cached TracksPayload
	if o.cachedPayload(key, &cached) {
		return &cached, nil
	}

	if local := o.confidentTracks(q, limit); len(local) > 0 {
		for _, track := range local {
			payload.Tracks = append(payload.Tracks, o.convertLocalTrack(track))
		}
		o.metrics.RecordLocal(opts.UserID)
		o.storePayload(key, q, payload)
		return payload, nil
	}

	tctx, cancel := context.WithTimeout(ctx, spotifyTimeout)
	found, err := o.spotify.SearchTracks(tctx, q, limit)
	cancel()
	if err != nil {
		return payload, fmt.Errorf("tracks quick %q: %w", q, err)
	}
	o.metrics.RecordProviderRequest("spotify")

	payload.Tracks = dedupeTracks(found)
	o.metrics.RecordExternal(opts.UserID)
	o.storePayload(key, q, payload)
	return payload, nil
}
