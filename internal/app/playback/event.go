package playback

import (
	"time"

	"github.com/osa030/sdplayer/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted    EventType = iota // A new track was loaded and started
	EventStateChanged                     // Status changed (pause/resume/stop)
	EventProgress                         // Periodic elapsed-time sample or reset
	EventPlaylistChanged                  // Tracks were appended
	EventVolumeChanged                    // Volume changed
	EventLoadFailed                       // A track could not be loaded
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventStateChanged:
		return "state_changed"
	case EventProgress:
		return "progress"
	case EventPlaylistChanged:
		return "playlist_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	SequenceNo uint64        // Set by the broadcaster
	Status     Status        // Status after the event
	Index      int           // Current playlist position, -1 if none
	Track      *track.Track  // Loaded track (nil if none)
	Elapsed    time.Duration // Progress events: whole seconds
	Duration   time.Duration // Progress events: whole seconds
	Volume     int           // Volume percent
	Count      int           // Playlist length
	Paths      []string      // Playlist events: appended paths
	Err        error         // Load failures
}

// Notifier receives session events.
type Notifier interface {
	Broadcast(e Event) error
}
