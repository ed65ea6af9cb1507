// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// NowUTC returns the current time as naive UTC, the representation used for
// every persisted timestamp.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// DayWindowStart returns the start of the calendar-day quota window containing
// t, anchored at anchorHour local time. Provider daily counters reset at this
// boundary rather than at midnight.
func DayWindowStart(t time.Time, anchorHour int) time.Time {
	anchored := time.Date(t.Year(), t.Month(), t.Day(), anchorHour, 0, 0, 0, t.Location())
	if t.Before(anchored) {
		anchored = anchored.AddDate(0, 0, -1)
	}
	return anchored
}
