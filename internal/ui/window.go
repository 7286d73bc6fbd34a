package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sdplayer/internal/app/notification"
	"github.com/osa030/sdplayer/internal/app/playback"
	"github.com/osa030/sdplayer/internal/infra/library"
)

// Player is the session driven by the window.
type Player interface {
	Snapshot() playback.Snapshot
	AddTracks(paths ...string)
	Play() error
	Pause() error
	Stop()
	Next() error
	Previous() error
	Select(index int) error
	Seek(seconds int) error
	SetVolume(percent int)
}

// Events is the source of session events.
type Events interface {
	Subscribe(stream notification.Stream) string
	Unsubscribe(subscriptionID string)
}

// Config holds window settings.
type Config struct {
	Title      string
	Welcome    string
	Width      float32
	Height     float32
	Extensions []string
}

// Window is the main player window.
type Window struct {
	win    fyne.Window
	player Player
	events Events
	cfg    Config

	view View
	// updating is set while widgets are changed programmatically so their
	// callbacks do not feed the change back into the session.
	updating bool

	songLabel    *widget.Label
	elapsedLabel *widget.Label
	totalLabel   *widget.Label
	progress     *widget.Slider
	volume       *widget.Slider
	list         *widget.List

	subscriptionID string
}

// NewWindow creates the window and subscribes it to session events.
func NewWindow(app fyne.App, cfg Config, player Player, events Events) *Window {
	w := &Window{
		win:    app.NewWindow(cfg.Title),
		player: player,
		events: events,
		cfg:    cfg,
		view:   NewView(player.Snapshot().Volume),
	}
	w.build()
	w.win.Resize(fyne.NewSize(cfg.Width, cfg.Height))

	w.view.ApplySnapshot(player.Snapshot())
	w.render()

	w.subscriptionID = events.Subscribe(notification.StreamFunc(w.onEvent))
	w.win.SetOnClosed(func() {
		w.events.Unsubscribe(w.subscriptionID)
	})
	return w
}

// ShowAndRun shows the window and runs the application loop.
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}

func (w *Window) build() {
	title := widget.NewLabel(w.cfg.Welcome)
	title.Alignment = fyne.TextAlignCenter
	title.TextStyle = fyne.TextStyle{Bold: true}

	w.songLabel = widget.NewLabel("")
	w.songLabel.Wrapping = fyne.TextWrapWord

	w.list = widget.NewList(
		func() int {
			return len(w.view.Names)
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(w.view.Names) {
				return
			}
			label := obj.(*widget.Label)
			label.TextStyle = fyne.TextStyle{Bold: id == w.view.Selected}
			label.SetText(w.view.Names[id])
		},
	)
	// A List ignores taps on its selected row, so rows never stay selected.
	// The current track is shown in bold instead.
	w.list.OnSelected = func(id widget.ListItemID) {
		w.list.Unselect(id)
		w.run("select", func() error { return w.player.Select(id) })
	}

	w.elapsedLabel = widget.NewLabel("")
	w.totalLabel = widget.NewLabel("")
	w.progress = widget.NewSlider(0, 1)
	w.progress.OnChangeEnded = func(v float64) {
		if w.updating {
			return
		}
		w.run("seek", func() error { return w.player.Seek(int(v)) })
	}
	progressRow := container.NewBorder(nil, nil, w.elapsedLabel, w.totalLabel, w.progress)

	controls := container.NewGridWithColumns(5,
		widget.NewButton("Previous", func() { w.run("previous", w.player.Previous) }),
		widget.NewButton("Play", func() { w.run("play", w.player.Play) }),
		widget.NewButton("Pause", func() { w.run("pause", w.player.Pause) }),
		widget.NewButton("Stop", w.player.Stop),
		widget.NewButton("Next", func() { w.run("next", w.player.Next) }),
	)

	w.volume = widget.NewSlider(0, 100)
	w.volume.OnChanged = func(v float64) {
		if w.updating {
			return
		}
		w.player.SetVolume(int(v))
	}
	volumeRow := container.NewBorder(nil, nil, widget.NewLabel("Volume"), nil, w.volume)

	addRow := container.NewGridWithColumns(2,
		widget.NewButton("Add Songs", w.showAddSongs),
		widget.NewButton("Add Folder", w.showAddFolder),
	)

	top := container.NewVBox(title, w.songLabel)
	bottom := container.NewVBox(progressRow, controls, volumeRow, addRow)
	w.win.SetContent(container.NewBorder(top, bottom, nil, nil, w.list))
}

// onEvent runs on the notification goroutine.
func (w *Window) onEvent(e playback.Event) error {
	fyne.Do(func() {
		w.view.Apply(e)
		w.render()
		if e.Type == playback.EventLoadFailed && e.Err != nil {
			dialog.ShowError(e.Err, w.win)
		}
	})
	return nil
}

// render copies the view into the widgets. Must run on the main goroutine.
func (w *Window) render() {
	w.updating = true
	defer func() { w.updating = false }()

	w.songLabel.SetText(w.view.SongInfo)
	w.elapsedLabel.SetText(w.view.ElapsedText)
	w.totalLabel.SetText(w.view.TotalText)
	w.progress.Max = w.view.SliderMax
	w.progress.Value = w.view.SliderValue
	w.progress.Refresh()
	w.volume.SetValue(float64(w.view.Volume))

	w.list.Refresh()
	if w.view.Selected >= 0 {
		w.list.ScrollTo(w.view.Selected)
	}
}

// run invokes a session command. Ignored commands are only logged; load
// failures arrive as events.
func (w *Window) run(name string, fn func() error) {
	err := fn()
	switch {
	case err == nil:
	case playback.IsNoop(err):
		zlog.Debug().Msgf("ui: %s ignored: %v", name, err)
	case errors.Is(err, playback.ErrLoadFailed):
	default:
		zlog.Error().Msgf("ui: %s failed: %v", name, err)
		dialog.ShowError(err, w.win)
	}
}

func (w *Window) showAddSongs() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		if r == nil {
			return
		}
		path := r.URI().Path()
		_ = r.Close()
		w.player.AddTracks(path)
	}, w.win)
	d.SetFilter(storage.NewExtensionFileFilter(w.cfg.Extensions))
	d.Show()
}

func (w *Window) showAddFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		if uri == nil {
			return
		}
		paths, err := library.Dir(uri.Path(), w.cfg.Extensions)
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		w.player.AddTracks(paths...)
	}, w.win)
}
