// Package ui provides the player window.
package ui

import (
	"path/filepath"
	"time"

	"github.com/osa030/sdplayer/internal/app/playback"
	"github.com/osa030/sdplayer/internal/domain/track"
)

// View holds the rendered strings and slider positions of the window. It is
// updated from session events and read by the widgets.
type View struct {
	Names       []string // playlist rows
	Selected    int      // highlighted row, -1 for none
	Status      playback.Status
	SongInfo    string
	ElapsedText string
	TotalText   string
	SliderMax   float64
	SliderValue float64
	Volume      int
	LastError   string
}

// NewView returns the view of an empty, stopped session.
func NewView(volume int) View {
	return View{
		Selected:    -1,
		Status:      playback.StatusStopped,
		ElapsedText: track.FormatTime(0),
		TotalText:   track.FormatTime(0),
		SliderMax:   1,
		Volume:      volume,
	}
}

// Apply updates the view with e.
func (v *View) Apply(e playback.Event) {
	switch e.Type {
	case playback.EventPlaylistChanged:
		for _, p := range e.Paths {
			v.Names = append(v.Names, filepath.Base(p))
		}
	case playback.EventTrackStarted:
		v.Selected = e.Index
		if e.Track != nil {
			v.SongInfo = e.Track.Summary()
		}
	case playback.EventProgress:
		v.setProgress(e.Elapsed, e.Duration)
	case playback.EventVolumeChanged:
		v.Volume = e.Volume
	case playback.EventLoadFailed:
		if e.Err != nil {
			v.LastError = e.Err.Error()
		}
	}
	v.Status = e.Status
}

// ApplySnapshot replaces the view with the state in s.
func (v *View) ApplySnapshot(s playback.Snapshot) {
	v.Names = v.Names[:0]
	for _, p := range s.Paths {
		v.Names = append(v.Names, filepath.Base(p))
	}
	v.Selected = s.Index
	v.Status = s.Status
	v.Volume = s.Volume
	v.SongInfo = ""
	if s.Track != nil {
		v.SongInfo = s.Track.Summary()
	}
	if s.Status == playback.StatusStopped {
		v.setProgress(0, 0)
	} else {
		v.setProgress(s.Elapsed, s.Duration)
	}
}

func (v *View) setProgress(elapsed, duration time.Duration) {
	e := int(elapsed / time.Second)
	d := int(duration / time.Second)
	v.ElapsedText = track.FormatTime(e)
	v.TotalText = track.FormatTime(d)
	v.SliderValue = float64(e)
	// A slider needs a non-empty range.
	v.SliderMax = float64(d)
	if d == 0 {
		v.SliderMax = 1
	}
}
