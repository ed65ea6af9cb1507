package models

import "time"

// LinkStatus is the lifecycle state of a track's playable-source link.
type LinkStatus string

const (
	LinkPending       LinkStatus = "pending"
	LinkFound         LinkStatus = "link_found"
	LinkCompleted     LinkStatus = "completed"
	LinkVideoNotFound LinkStatus = "video_not_found"
	LinkMissing       LinkStatus = "missing"
	LinkError         LinkStatus = "error"
)

// linkPrecedence orders statuses by information content. A concurrent write
// only replaces an existing row when it carries at least as much information.
var linkPrecedence = map[LinkStatus]int{
	LinkPending:       0,
	LinkError:         1,
	LinkMissing:       2,
	LinkVideoNotFound: 3,
	LinkFound:         4,
	LinkCompleted:     5,
}

// Precedence returns the rank of s in the status precedence order
// (completed > link_found > video_not_found > missing > error > pending).
func (s LinkStatus) Precedence() int {
	return linkPrecedence[s]
}

// YouTubeLink is the per-track link state, one-to-one with a track identified
// by its provider id.
type YouTubeLink struct {
	SpotifyTrackID string
	VideoID        string
	DownloadPath   string
	Status         LinkStatus
	FileSize       *int64
	ErrorMessage   string
	UpdatedAt      time.Time
}

// EffectiveStatus normalizes the stored status on read: a row that carries a
// video id but is marked error, video_not_found or missing is reported as
// link_found, since the link itself is known.
func (l *YouTubeLink) EffectiveStatus() LinkStatus {
	if l.VideoID != "" {
		switch l.Status {
		case LinkError, LinkVideoNotFound, LinkMissing:
			return LinkFound
		}
	}
	return l.Status
}

// YouTubeURL returns the watch URL for the resolved video, or "" when no
// video id is known.
func (l *YouTubeLink) YouTubeURL() string {
	if l.VideoID == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + l.VideoID
}
