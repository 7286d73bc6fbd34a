// Package audio provides the speaker backend of the playback session.
package audio

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoTrack           = errors.New("no track loaded")
)

const (
	extMP3  = ".mp3"
	extWAV  = ".wav"
	extFLAC = ".flac"
)

// Config holds speaker configuration.
type Config struct {
	SampleRate      int
	Buffer          time.Duration
	ResampleQuality int
}

// output is the sink streamers are played on.
type output interface {
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Clear()               { speaker.Clear() }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }

var (
	speakerOnce sync.Once
	speakerErr  error
)

// trackState bundles the resources of the loaded track.
type trackState struct {
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format
}

// Close releases the decoder and its file.
func (t *trackState) Close() {
	if err := t.streamer.Close(); err != nil {
		zlog.Debug().Msgf("audio: failed to close track: path=%s: %v", t.path, err)
	}
}

// Player plays one track at a time on the speaker.
type Player struct {
	mu sync.Mutex

	out     output
	rate    beep.SampleRate
	quality int

	current *trackState
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	level   float64
	gen     uint64

	onFinished func(path string)
}

// NewPlayer initializes the speaker and returns a player. The speaker is
// initialized once per process; later calls reuse it.
func NewPlayer(cfg Config) (*Player, error) {
	rate := beep.SampleRate(cfg.SampleRate)
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(rate, rate.N(cfg.Buffer))
	})
	if speakerErr != nil {
		return nil, errors.Wrap(speakerErr, "failed to initialize speaker")
	}
	zlog.Info().Msgf("audio: speaker initialized: rate=%d buffer=%s", cfg.SampleRate, cfg.Buffer)
	return newPlayer(speakerOutput{}, rate, cfg.ResampleQuality), nil
}

func newPlayer(out output, rate beep.SampleRate, quality int) *Player {
	if quality <= 0 {
		quality = 4
	}
	return &Player{
		out:     out,
		rate:    rate,
		quality: quality,
		level:   1,
	}
}

// OnFinished sets the callback invoked when a track reaches its end. The
// callback runs on its own goroutine.
func (p *Player) OnFinished(fn func(path string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinished = fn
}

// Load decodes path and makes it the current track. The previous track is
// stopped and released only when decoding succeeds.
func (p *Player) Load(path string) error {
	next, err := open(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.current != nil {
		p.current.Close()
	}
	p.current = next

	zlog.Debug().Msgf("audio: loaded: path=%s rate=%d len=%d", path, next.format.SampleRate, next.streamer.Len())
	return nil
}

// Play starts the current track from the beginning.
func (p *Player) Play() error {
	return p.PlayFrom(0)
}

// PlayFrom starts the current track at offset.
func (p *Player) PlayFrom(offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNoTrack
	}

	p.stopLocked()

	t := p.current
	pos := t.format.SampleRate.N(offset)
	if pos < 0 {
		pos = 0
	}
	if pos > t.streamer.Len() {
		pos = t.streamer.Len()
	}
	p.out.Lock()
	err := t.streamer.Seek(pos)
	p.out.Unlock()
	if err != nil {
		return errors.Wrapf(err, "failed to seek %s", t.path)
	}

	var source beep.Streamer = t.streamer
	if t.format.SampleRate != p.rate {
		source = beep.Resample(p.quality, t.format.SampleRate, p.rate, t.streamer)
	}
	p.ctrl = &beep.Ctrl{Streamer: source}
	p.volume = &effects.Volume{Streamer: p.ctrl, Base: 2}
	applyLevel(p.volume, p.level)

	gen := p.gen
	path := t.path
	p.out.Play(beep.Seq(p.volume, beep.Callback(func() {
		// Runs under the speaker lock.
		go p.finished(gen, path)
	})))
	return nil
}

// Pause pauses the current stream.
func (p *Player) Pause() {
	p.setPaused(true)
}

// Resume resumes a paused stream.
func (p *Player) Resume() {
	p.setPaused(false)
}

func (p *Player) setPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl == nil {
		return
	}
	p.out.Lock()
	p.ctrl.Paused = paused
	p.out.Unlock()
}

// Stop halts playback. The loaded track is kept.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	p.gen++
	if p.ctrl == nil {
		return
	}
	p.out.Clear()
	p.ctrl = nil
	p.volume = nil
}

// SetVolume sets the output level in [0, 1].
func (p *Player) SetVolume(level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.level = math.Max(0, math.Min(1, level))
	if p.volume == nil {
		return
	}
	p.out.Lock()
	applyLevel(p.volume, p.level)
	p.out.Unlock()
}

// Elapsed returns the position in the current track.
func (p *Player) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return 0
	}
	p.out.Lock()
	pos := p.current.streamer.Position()
	p.out.Unlock()
	return p.current.format.SampleRate.D(pos)
}

// Close stops playback and releases the current track.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
}

func (p *Player) finished(gen uint64, path string) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.ctrl = nil
	p.volume = nil
	fn := p.onFinished
	p.mu.Unlock()

	zlog.Debug().Msgf("audio: finished: path=%s", path)
	if fn != nil {
		fn(path)
	}
}

// applyLevel maps a linear level onto the exponential volume effect.
func applyLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

// Probe returns the whole-second duration of an audio file.
func Probe(path string) (time.Duration, error) {
	t, err := open(path)
	if err != nil {
		return 0, err
	}
	defer t.Close()

	return t.format.SampleRate.D(t.streamer.Len()).Truncate(time.Second), nil
}

// Supported reports whether path has an extension the player can decode.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3, extWAV, extFLAC:
		return true
	}
	return false
}

func open(path string) (*trackState, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, errors.Mark(errors.Newf("cannot decode %q files", ext), ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case extMP3:
		streamer, format, err = mp3.Decode(f)
	case extWAV:
		streamer, format, err = wav.Decode(f)
	case extFLAC:
		streamer, format, err = flac.Decode(f)
	}
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	return &trackState{path: path, streamer: streamer, format: format}, nil
}
