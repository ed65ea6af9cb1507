package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// ListName identifies one curated list.
type ListName string

const (
	ListFavoritesWithLink ListName = "favorites-with-link"
	ListDownloaded        ListName = "downloaded"
	ListDiscovery         ListName = "discovery"
	ListTopYear           ListName = "top-year"
	ListMostPlayed        ListName = "most-played"
	ListGenreSuggestions  ListName = "genre-suggestions"
)

// ListNames enumerates every curated list.
var ListNames = []ListName{
	ListFavoritesWithLink, ListDownloaded, ListDiscovery,
	ListTopYear, ListMostPlayed, ListGenreSuggestions,
}

const (
	listCacheTTL  = 5 * time.Minute
	listCacheSize = 64
	listItemLimit = 50
)

// CuratedList is one generated list. Track lists fill Tracks, the
// genre-suggestions list fills Artists.
type CuratedList struct {
	Name        ListName               `json:"name"`
	UserID      string                 `json:"user_id,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
	Tracks      []models.ProviderTrack `json:"tracks,omitempty"`
	Artists     []ArtistPair           `json:"artists,omitempty"`
}

// Lists generates and caches the curated lists. Entries are keyed by
// (list, user) and expire after five minutes.
type Lists struct {
	writer *catalog.Writer
	charts *repositories.ChartRepository
	cache  *expirable.LRU[string, *CuratedList]
	logger *log.Logger
	now    func() time.Time
}

// NewLists creates the curated list cache.
func NewLists(writer *catalog.Writer, charts *repositories.ChartRepository, logger *log.Logger) *Lists {
	return &Lists{
		writer: writer,
		charts: charts,
		cache:  expirable.NewLRU[string, *CuratedList](listCacheSize, nil, listCacheTTL),
		logger: logger,
		now:    time.Now,
	}
}

func listKey(name ListName, userID string) string {
	return string(name) + "|" + userID
}

// Get returns the cached list, generating it on a miss.
func (l *Lists) Get(name ListName, userID string) (*CuratedList, error) {
	key := listKey(name, userID)
	if cached, ok := l.cache.Get(key); ok {
		return cached, nil
	}
	return l.Refresh(name, userID)
}

// Refresh regenerates a list and replaces the cached entry.
func (l *Lists) Refresh(name ListName, userID string) (*CuratedList, error) {
	list, err := l.generate(name, userID)
	if err != nil {
		return nil, err
	}
	l.cache.Add(listKey(name, userID), list)
	return list, nil
}

// Invalidate purges cached entries. An empty name matches every list, an
// empty user matches every user.
func (l *Lists) Invalidate(name ListName, userID string) {
	for _, key := range l.cache.Keys() {
		parts := strings.SplitN(key, "|", 2)
		if name != "" && parts[0] != string(name) {
			continue
		}
		if userID != "" && (len(parts) < 2 || parts[1] != userID) {
			continue
		}
		l.cache.Remove(key)
	}
}

func (l *Lists) generate(name ListName, userID string) (*CuratedList, error) {
	list := &CuratedList{Name: name, UserID: userID, GeneratedAt: l.now().UTC()}

	var err error
	switch name {
	case ListFavoritesWithLink:
		list.Tracks, err = l.favoritesWithLink(userID)
	case ListDownloaded:
		list.Tracks, err = l.trackList(l.writer.Tracks().ListDownloaded)
	case ListDiscovery:
		list.Tracks, err = l.trackList(l.writer.Tracks().ListRecentlyAdded)
	case ListTopYear:
		list.Tracks, err = l.topYear()
	case ListMostPlayed:
		list.Tracks, err = l.mostPlayed()
	case ListGenreSuggestions:
		list.Artists, err = l.genreSuggestions(userID)
	default:
		return nil, fmt.Errorf("curated list %q: %w", name, shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (l *Lists) trackList(query func(int) ([]*models.Track, error)) ([]models.ProviderTrack, error) {
	rows, err := query(listItemLimit)
	if err != nil {
		return nil, err
	}
	return l.convertTracks(rows), nil
}

func (l *Lists) topYear() ([]models.ProviderTrack, error) {
	rows, err := l.writer.Tracks().ListByReleaseYear(l.now().UTC().Year(), listItemLimit)
	if err != nil {
		return nil, err
	}
	return l.convertTracks(rows), nil
}

// favoritesWithLink returns the user's favorited tracks that have a
// resolved or downloaded link.
func (l *Lists) favoritesWithLink(userID string) ([]models.ProviderTrack, error) {
	favorites, err := l.writer.Favorites().ListByUser(userID)
	if err != nil {
		return nil, err
	}

	var out []models.ProviderTrack
	for _, fav := range favorites {
		if fav.EntityKind != models.KindTrack {
			continue
		}
		track, err := l.writer.Tracks().Get(fav.EntityID)
		if err != nil {
			continue
		}
		if track.SpotifyID == "" {
			continue
		}
		link, err := l.writer.Links().Get(track.SpotifyID)
		if err != nil {
			continue
		}
		switch link.EffectiveStatus() {
		case models.LinkFound, models.LinkCompleted:
			out = append(out, l.convertTrack(track))
		}
		if len(out) >= listItemLimit {
			break
		}
	}
	return out, nil
}

// mostPlayed approximates play counts with chart history: the tracks with
// the strongest chart aggregates, in order.
func (l *Lists) mostPlayed() ([]models.ProviderTrack, error) {
	ids, err := l.charts.ListTopCharting(listItemLimit)
	if err != nil {
		return nil, err
	}

	var out []models.ProviderTrack
	for _, id := range ids {
		track, err := l.writer.Tracks().Get(id)
		if err != nil {
			continue
		}
		out = append(out, l.convertTrack(track))
	}
	return out, nil
}

// genreSuggestions recommends artists sharing genres with the user's
// favorited artists, excluding the favorites themselves.
func (l *Lists) genreSuggestions(userID string) ([]ArtistPair, error) {
	favoriteIDs, err := l.writer.Favorites().ListFavoritedArtistIDs()
	if err != nil {
		return nil, err
	}

	favorited := make(map[int64]bool, len(favoriteIDs))
	genreSet := make(map[string]bool)
	var genres []string
	for _, id := range favoriteIDs {
		favorited[id] = true
		artist, err := l.writer.Artists().Get(id)
		if err != nil {
			continue
		}
		for _, g := range artist.Genres {
			if !genreSet[g] {
				genreSet[g] = true
				genres = append(genres, g)
			}
		}
	}
	if len(genres) == 0 {
		return nil, nil
	}

	candidates, err := l.writer.Artists().ListByGenres(genres, 0, listItemLimit)
	if err != nil {
		return nil, err
	}

	var out []ArtistPair
	for _, artist := range candidates {
		if favorited[artist.ID] {
			continue
		}
		out = append(out, ArtistPair{Spotify: artistToProvider(artist)})
	}
	return out, nil
}

func (l *Lists) convertTracks(rows []*models.Track) []models.ProviderTrack {
	out := make([]models.ProviderTrack, 0, len(rows))
	for _, track := range rows {
		out = append(out, l.convertTrack(track))
	}
	return out
}

func (l *Lists) convertTrack(track *models.Track) models.ProviderTrack {
	artist, err := l.writer.Artists().Get(track.ArtistID)
	if err != nil {
		artist = nil
	}
	var album *models.Album
	if track.AlbumID != nil {
		album, _ = l.writer.Albums().Get(*track.AlbumID)
	}
	return trackToProvider(track, artist, album)
}
