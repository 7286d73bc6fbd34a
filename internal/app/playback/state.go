// Package playback provides the playback session and its progress sampler.
package playback

// Status represents the playback status.
type Status int

const (
	StatusStopped Status = iota // Nothing playing (initial state)
	StatusPlaying               // Track is playing
	StatusPaused                // Track is paused
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EndOfTrack selects what happens when a track finishes on its own.
type EndOfTrack string

const (
	EndOfTrackAdvance EndOfTrack = "advance" // Play the next track, stop after the last one
	EndOfTrackLoop    EndOfTrack = "loop"    // Play the next track, wrapping to the first
	EndOfTrackStop    EndOfTrack = "stop"    // Stop
)
