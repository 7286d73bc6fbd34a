// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"path/filepath"
	"time"
)

// Defaults used when a file carries no artist or album tag.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Track represents a local audio file with its tag metadata.
type Track struct {
	Path     string        // File path as added to the playlist
	Title    string        // Display title (file base name)
	Artist   string        // TPE1 or UnknownArtist
	Album    string        // TALB or UnknownAlbum
	Duration time.Duration // Whole-second duration
}

// New creates a track for path with default metadata.
func New(path string) Track {
	return Track{
		Path:   path,
		Title:  filepath.Base(path),
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}
}

// Seconds returns the duration in whole seconds.
func (t *Track) Seconds() int {
	return int(t.Duration / time.Second)
}

// Summary returns the three-line description shown by displays.
func (t *Track) Summary() string {
	return fmt.Sprintf("Playing: %s\nArtist: %s\nAlbum: %s", t.Title, t.Artist, t.Album)
}

// FormatTime renders seconds as M:SS. Minutes are unbounded.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
