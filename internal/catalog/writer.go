package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/normalize"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// Writer is the single mutation path for Artist, Album, Track, Alias and
// YouTubeLink rows. Saves are idempotent and safe under concurrent callers:
// a constraint conflict triggers one re-read and merge retry.
type Writer struct {
	artists   *repositories.ArtistRepository
	albums    *repositories.AlbumRepository
	tracks    *repositories.TrackRepository
	aliases   *repositories.AliasRepository
	links     *repositories.YouTubeLinkRepository
	favorites *repositories.FavoriteRepository
	logger    *log.Logger
}

// NewWriter creates a writer over the given database connection.
func NewWriter(db *sql.DB, logger *log.Logger) *Writer {
	return &Writer{
		artists:   repositories.NewArtistRepository(db),
		albums:    repositories.NewAlbumRepository(db),
		tracks:    repositories.NewTrackRepository(db),
		aliases:   repositories.NewAliasRepository(db),
		links:     repositories.NewYouTubeLinkRepository(db),
		favorites: repositories.NewFavoriteRepository(db),
		logger:    logger,
	}
}

// Artists exposes the artist repository for read paths.
func (w *Writer) Artists() *repositories.ArtistRepository { return w.artists }

// Albums exposes the album repository for read paths.
func (w *Writer) Albums() *repositories.AlbumRepository { return w.albums }

// Tracks exposes the track repository for read paths.
func (w *Writer) Tracks() *repositories.TrackRepository { return w.tracks }

// Aliases exposes the alias repository for read paths.
func (w *Writer) Aliases() *repositories.AliasRepository { return w.aliases }

// Links exposes the link repository for read paths.
func (w *Writer) Links() *repositories.YouTubeLinkRepository { return w.links }

// Favorites exposes the favorite repository.
func (w *Writer) Favorites() *repositories.FavoriteRepository { return w.favorites }

// SaveArtist upserts a provider artist payload. The row is located by
// provider id first, then by normalized name; fields merge onto the existing
// row, aliases are regenerated and timestamps stamped.
func (w *Writer) SaveArtist(p models.ProviderArtist) (*models.Artist, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("artist payload name: %w", shared.ErrInvalidInput)
	}
	normalized := normalize.Normalize(p.Name)

	artist, err := w.saveArtistOnce(p, normalized)
	if errors.Is(err, shared.ErrConflict) {
		// concurrent writer won the insert race, merge onto its row
		artist, err = w.saveArtistOnce(p, normalized)
	}
	if err != nil {
		return nil, err
	}

	if err := w.aliases.EnsureAliases(models.KindArtist, artist.ID, p.Name, "spotify",
		normalize.GenerateAliases(p.Name)); err != nil {
		return nil, err
	}
	return artist, nil
}

func (w *Writer) saveArtistOnce(p models.ProviderArtist, normalized string) (*models.Artist, error) {
	existing, err := w.findArtist(p.ID, normalized)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		now := shared.NowUTC()
		artist := &models.Artist{
			SpotifyID:       p.ID,
			Name:            p.Name,
			NormalizedName:  normalized,
			Genres:          p.Genres,
			ImageURL:        models.LargestImage(p.Images),
			Popularity:      p.Popularity,
			Followers:       p.Followers,
			LastRefreshedAt: &now,
		}
		if err := w.artists.Create(artist); err != nil {
			return nil, err
		}
		return artist, nil
	}

	mergeArtist(existing, p, normalized)
	now := shared.NowUTC()
	existing.LastRefreshedAt = &now
	if err := w.artists.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (w *Writer) findArtist(providerID, normalized string) (*models.Artist, error) {
	if providerID != "" {
		artist, err := w.artists.GetBySpotifyID(providerID)
		if err == nil {
			return artist, nil
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
	}
	artist, err := w.artists.GetByNormalizedName(normalized)
	if err == nil {
		return artist, nil
	}
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func mergeArtist(dst *models.Artist, p models.ProviderArtist, normalized string) {
	if p.ID != "" {
		dst.SpotifyID = p.ID
	}
	dst.Name = p.Name
	dst.NormalizedName = normalized
	if len(p.Genres) > 0 {
		dst.Genres = p.Genres
	}
	if img := models.LargestImage(p.Images); img != "" {
		dst.ImageURL = img
	}
	if p.Popularity > 0 {
		dst.Popularity = p.Popularity
	}
	if p.Followers > 0 {
		dst.Followers = p.Followers
	}
}

// UpdateArtistBio writes the stats provider's biography and, when the stored
// genre list is empty, its tags.
func (w *Writer) UpdateArtistBio(artistID int64, info *models.ArtistInfo) error {
	artist, err := w.artists.Get(artistID)
	if err != nil {
		return err
	}

	if info.Summary != "" {
		artist.BioSummary = info.Summary
	}
	if info.Content != "" {
		artist.BioContent = info.Content
	}
	if len(artist.Genres) == 0 && len(info.Tags) > 0 {
		artist.Genres = info.Tags
	}
	return w.artists.Update(artist)
}

// SetArtistGenres replaces the stored genre list.
func (w *Writer) SetArtistGenres(artistID int64, genres []string) error {
	artist, err := w.artists.Get(artistID)
	if err != nil {
		return err
	}
	artist.Genres = genres
	return w.artists.Update(artist)
}

// SaveAlbum upserts a provider album payload under the given artist.
func (w *Writer) SaveAlbum(p models.ProviderAlbum, artistID int64) (*models.Album, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("album payload name: %w", shared.ErrInvalidInput)
	}
	normalized := normalize.Normalize(p.Name)

	album, err := w.saveAlbumOnce(p, artistID, normalized)
	if errors.Is(err, shared.ErrConflict) {
		album, err = w.saveAlbumOnce(p, artistID, normalized)
	}
	if err != nil {
		return nil, err
	}

	if err := w.aliases.EnsureAliases(models.KindAlbum, album.ID, p.Name, "spotify",
		normalize.GenerateAliases(p.Name)); err != nil {
		return nil, err
	}
	return album, nil
}

func (w *Writer) saveAlbumOnce(p models.ProviderAlbum, artistID int64, normalized string) (*models.Album, error) {
	existing, err := w.findAlbum(p.ID, artistID, normalized)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		album := &models.Album{
			SpotifyID:      p.ID,
			Name:           p.Name,
			NormalizedName: normalized,
			ArtistID:       artistID,
			ReleaseDate:    p.ReleaseDate,
			TotalTracks:    p.TotalTracks,
			Label:          p.Label,
			ImageURL:       models.LargestImage(p.Images),
		}
		if err := w.albums.Create(album); err != nil {
			return nil, err
		}
		return album, nil
	}

	if existing.ReleaseDate != "" && p.ReleaseDate != "" && existing.ReleaseDate != p.ReleaseDate {
		w.logger.Warn("album release date changed on re-save",
			"album_id", existing.ID, "old", existing.ReleaseDate, "new", p.ReleaseDate)
	}

	if p.ID != "" {
		existing.SpotifyID = p.ID
	}
	existing.Name = p.Name
	existing.NormalizedName = normalized
	if p.ReleaseDate != "" {
		existing.ReleaseDate = p.ReleaseDate
	}
	if p.TotalTracks > 0 {
		existing.TotalTracks = p.TotalTracks
	}
	if p.Label != "" {
		existing.Label = p.Label
	}
	if img := models.LargestImage(p.Images); img != "" {
		existing.ImageURL = img
	}
	if err := w.albums.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (w *Writer) findAlbum(providerID string, artistID int64, normalized string) (*models.Album, error) {
	if providerID != "" {
		album, err := w.albums.GetBySpotifyID(providerID)
		if err == nil {
			return album, nil
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
	}
	album, err := w.albums.GetByArtistAndName(artistID, normalized)
	if err == nil {
		return album, nil
	}
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// SaveTrack upserts a provider track payload, linking it to the given artist
// and optional album. A guest or compilation appearance where the album
// belongs to another artist is logged and kept as delivered.
func (w *Writer) SaveTrack(p models.ProviderTrack, artistID int64, albumID *int64) (*models.Track, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("track payload name: %w", shared.ErrInvalidInput)
	}
	normalized := normalize.Normalize(p.Name)

	if albumID != nil {
		album, err := w.albums.Get(*albumID)
		if err != nil {
			return nil, err
		}
		if album.ArtistID != artistID {
			w.logger.Info("track album belongs to another artist",
				"track", p.Name, "artist_id", artistID, "album_artist_id", album.ArtistID)
		}
	}

	track, err := w.saveTrackOnce(p, artistID, albumID, normalized)
	if errors.Is(err, shared.ErrConflict) {
		track, err = w.saveTrackOnce(p, artistID, albumID, normalized)
	}
	if err != nil {
		return nil, err
	}

	if err := w.aliases.EnsureAliases(models.KindTrack, track.ID, p.Name, "spotify",
		normalize.GenerateAliases(p.Name)); err != nil {
		return nil, err
	}
	return track, nil
}

func (w *Writer) saveTrackOnce(p models.ProviderTrack, artistID int64, albumID *int64, normalized string) (*models.Track, error) {
	existing, err := w.findTrack(p.ID, artistID, normalized)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		track := &models.Track{
			SpotifyID:      p.ID,
			Name:           p.Name,
			NormalizedName: normalized,
			ArtistID:       artistID,
			AlbumID:        albumID,
			DurationMS:     p.DurationMS,
			Popularity:     p.Popularity,
			PreviewURL:     p.PreviewURL,
			ExternalURL:    p.URL,
		}
		if err := w.tracks.Create(track); err != nil {
			return nil, err
		}
		return track, nil
	}

	if p.ID != "" {
		existing.SpotifyID = p.ID
	}
	existing.Name = p.Name
	existing.NormalizedName = normalized
	if albumID != nil {
		existing.AlbumID = albumID
	}
	if p.DurationMS > 0 {
		existing.DurationMS = p.DurationMS
	}
	if p.Popularity > 0 {
		existing.Popularity = p.Popularity
	}
	if p.PreviewURL != "" {
		existing.PreviewURL = p.PreviewURL
	}
	if p.URL != "" {
		existing.ExternalURL = p.URL
	}
	if err := w.tracks.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (w *Writer) findTrack(providerID string, artistID int64, normalized string) (*models.Track, error) {
	if providerID != "" {
		track, err := w.tracks.GetBySpotifyID(providerID)
		if err == nil {
			return track, nil
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
	}
	track, err := w.tracks.GetByArtistAndName(artistID, normalized)
	if err == nil {
		return track, nil
	}
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// SaveLink writes a YouTube link row. Status is normalized before the
// precedence-aware upsert: error or video_not_found without a video id is
// stored as missing.
func (w *Writer) SaveLink(link *models.YouTubeLink) error {
	if link.VideoID == "" &&
		(link.Status == models.LinkError || link.Status == models.LinkVideoNotFound) {
		link.Status = models.LinkMissing
		link.ErrorMessage = ""
	}
	return w.links.Upsert(link)
}

// DeleteArtist removes an artist and everything hanging off it. The delete
// is refused when any favorite references the artist or one of its albums or
// tracks.
func (w *Writer) DeleteArtist(artistID int64) error {
	favorited, err := w.favorites.IsFavorited(models.KindArtist, artistID)
	if err != nil {
		return err
	}
	if favorited {
		return fmt.Errorf("artist %d: %w", artistID, shared.ErrProtected)
	}

	albums, err := w.albums.ListByArtist(artistID)
	if err != nil {
		return err
	}
	for _, album := range albums {
		if err := w.checkAndClearAliases(models.KindAlbum, album.ID); err != nil {
			return err
		}
	}

	tracks, err := w.tracks.ListByArtist(artistID, -1)
	if err != nil {
		return err
	}
	for _, track := range tracks {
		if err := w.checkAndClearAliases(models.KindTrack, track.ID); err != nil {
			return err
		}
	}

	if err := w.aliases.DeleteForEntity(models.KindArtist, artistID); err != nil {
		return err
	}
	return w.artists.Delete(artistID)
}

func (w *Writer) checkAndClearAliases(kind models.EntityKind, entityID int64) error {
	favorited, err := w.favorites.IsFavorited(kind, entityID)
	if err != nil {
		return err
	}
	if favorited {
		return fmt.Errorf("%s %d: %w", kind, entityID, shared.ErrProtected)
	}
	return w.aliases.DeleteForEntity(kind, entityID)
}
