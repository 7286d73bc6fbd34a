package playback

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sdplayer/internal/domain/playlist"
	"github.com/osa030/sdplayer/internal/domain/track"
)

// Errors
var (
	ErrEmptyPlaylist  = errors.New("playlist is empty")
	ErrInvalidIndex   = errors.New("invalid playlist index")
	ErrNotPlaying     = errors.New("not playing")
	ErrAlreadyPlaying = errors.New("already playing")
	ErrNothingLoaded  = errors.New("no track loaded")
	ErrLoadFailed     = errors.New("failed to load track")
)

// IsNoop reports whether err is a guard error: the command was ignored and
// the session state is unchanged.
func IsNoop(err error) bool {
	return errors.Is(err, ErrEmptyPlaylist) ||
		errors.Is(err, ErrInvalidIndex) ||
		errors.Is(err, ErrNotPlaying) ||
		errors.Is(err, ErrAlreadyPlaying) ||
		errors.Is(err, ErrNothingLoaded)
}

// Backend is the audio output the session drives.
type Backend interface {
	// Load replaces the current track. On error the current track is untouched.
	Load(path string) error
	Play() error
	PlayFrom(offset time.Duration) error
	Pause()
	Resume()
	Stop()
	// SetVolume takes a level in [0, 1].
	SetVolume(level float64)
	Elapsed() time.Duration
}

// TagReader reads duration and tag metadata of a file.
type TagReader interface {
	Read(path string) (track.Track, error)
}

// Config holds session configuration.
type Config struct {
	InitialVolume  int           // Percent, clamped to [0, 100]
	SampleInterval time.Duration // Progress polling interval
	EndOfTrack     EndOfTrack    // Behaviour when a track finishes on its own
}

// DefaultVolume is the volume used when none is configured.
const DefaultVolume = 50

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InitialVolume:  DefaultVolume,
		SampleInterval: DefaultSampleInterval,
		EndOfTrack:     EndOfTrackAdvance,
	}
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Status   Status
	Index    int
	Paths    []string
	Track    *track.Track
	Duration time.Duration
	Elapsed  time.Duration
	Volume   int
}

// Session owns the playlist, the current-track cursor, the playback status,
// the duration of the loaded track and the volume. All methods are safe for
// concurrent use; mutations and progress samples are serialized.
type Session struct {
	mu sync.Mutex

	backend  Backend
	tags     TagReader
	notifier Notifier
	config   Config

	playlist *playlist.Playlist
	current  int // -1 when nothing has been selected
	status   Status
	track    *track.Track
	duration time.Duration
	elapsed  time.Duration // last reported progress
	volume   int

	sampler *Sampler
}

// NewSession creates a stopped session and applies the initial volume to
// the backend. notifier may be nil.
func NewSession(backend Backend, tags TagReader, notifier Notifier, config Config) *Session {
	if config.EndOfTrack == "" {
		config.EndOfTrack = EndOfTrackAdvance
	}

	s := &Session{
		backend:  backend,
		tags:     tags,
		notifier: notifier,
		config:   config,
		playlist: playlist.New(),
		current:  -1,
		status:   StatusStopped,
		volume:   clampVolume(config.InitialVolume),
	}
	s.sampler = NewSampler(config.SampleInterval, s.onTick)
	s.backend.SetVolume(float64(s.volume) / 100)
	return s
}

// AddTracks appends paths to the playlist in order. Files are not checked
// until they are loaded.
func (s *Session) AddTracks(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	added := make([]string, len(paths))
	copy(added, paths)
	s.playlist.Append(added...)
	zlog.Debug().Msgf("playback: tracks added: count=%d total=%d", len(added), s.playlist.Len())

	s.publishLocked(Event{
		Type:  EventPlaylistChanged,
		Paths: added,
	})
}

// Play starts the current track, selecting the first one if nothing has
// been selected yet. A paused track restarts from the beginning.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playlist.IsEmpty() {
		return ErrEmptyPlaylist
	}
	if s.status == StatusPlaying {
		return ErrAlreadyPlaying
	}

	index := s.current
	if index < 0 {
		index = 0
	}
	return s.loadAndPlayLocked(index)
}

// Pause toggles between Playing and Paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusPlaying:
		s.backend.Pause()
		s.status = StatusPaused
	case StatusPaused:
		s.backend.Resume()
		s.status = StatusPlaying
	default:
		return ErrNotPlaying
	}

	zlog.Debug().Msgf("playback: state changed: status=%s", s.status)
	s.publishLocked(Event{Type: EventStateChanged})
	return nil
}

// Stop stops playback and resets the reported progress. The current
// selection is kept.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.backend.Stop()
	s.sampler.Stop()
	s.status = StatusStopped
	s.elapsed = 0

	s.publishLocked(Event{Type: EventStateChanged})
	s.publishLocked(Event{Type: EventProgress})
}

// Next advances to the following track, wrapping to the first.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playlist.IsEmpty() {
		return ErrEmptyPlaylist
	}
	return s.loadAndPlayLocked(s.playlist.Next(s.current))
}

// Previous goes back to the preceding track, wrapping to the last.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playlist.IsEmpty() {
		return ErrEmptyPlaylist
	}
	return s.loadAndPlayLocked(s.playlist.Previous(s.current))
}

// Select plays the track at index.
func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playlist.Valid(index) {
		return errors.Wrapf(ErrInvalidIndex, "index %d of %d", index, s.playlist.Len())
	}
	return s.loadAndPlayLocked(index)
}

// SetVolume sets the volume percent, clamped to [0, 100]. It applies to the
// current and all following tracks.
func (s *Session) SetVolume(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampVolume(percent)
	s.backend.SetVolume(float64(s.volume) / 100)

	s.publishLocked(Event{Type: EventVolumeChanged})
}

// Seek plays the loaded track from the given second, clamped to
// [0, duration].
func (s *Session) Seek(seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track == nil {
		return ErrNothingLoaded
	}

	// Clamp in seconds so huge requests cannot overflow the conversion.
	if limit := int(s.duration / time.Second); seconds > limit {
		seconds = limit
	}
	if seconds < 0 {
		seconds = 0
	}
	offset := time.Duration(seconds) * time.Second

	if err := s.backend.PlayFrom(offset); err != nil {
		return errors.Wrapf(err, "failed to seek to %s", offset)
	}

	wasPlaying := s.status == StatusPlaying
	s.status = StatusPlaying
	s.elapsed = offset
	s.sampler.Start()

	zlog.Debug().Msgf("playback: seek: offset=%s track=%s", offset, s.track.Title)
	if !wasPlaying {
		s.publishLocked(Event{Type: EventStateChanged})
	}
	s.publishLocked(Event{Type: EventProgress})
	return nil
}

// HandleTrackEnd is called when path finished playing on its own.
func (s *Session) HandleTrackEnd(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying || s.track == nil || s.track.Path != path {
		zlog.Debug().Msgf("playback: ignoring stale track end: path=%s", path)
		return
	}

	zlog.Debug().Msgf("playback: track ended: track=%s policy=%s", s.track.Title, s.config.EndOfTrack)

	last := s.current == s.playlist.Len()-1
	switch {
	case s.config.EndOfTrack == EndOfTrackStop,
		s.config.EndOfTrack == EndOfTrackAdvance && last:
		s.stopLocked()
	default:
		if err := s.loadAndPlayLocked(s.playlist.Next(s.current)); err != nil {
			zlog.Warn().Msgf("playback: failed to advance after track end: %v", err)
			s.stopLocked()
		}
	}
}

// Status returns the current playback status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentIndex returns the selected playlist position, or -1 if none.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TrackDuration returns the duration of the loaded track.
func (s *Session) TrackDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Volume returns the volume percent.
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Paths returns a copy of the playlist.
func (s *Session) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist.Paths()
}

// Snapshot returns a copy of the session state. A stopped session reports
// no progress, as the progress event on Stop does.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status: s.status,
		Index:  s.current,
		Paths:  s.playlist.Paths(),
		Volume: s.volume,
	}
	if s.status != StatusStopped {
		snap.Elapsed = s.elapsed
		snap.Duration = s.duration
	}
	if s.track != nil {
		t := *s.track
		snap.Track = &t
	}
	return snap
}

// Close halts the sampler and stops the backend.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sampler.Stop()
	s.backend.Stop()
	s.status = StatusStopped
}

// onTick is the sampler callback.
func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sampler.Current(gen) {
		return
	}
	s.sampleLocked()
}

// sampleLocked publishes the backend position while playing.
// Must be called with lock held.
func (s *Session) sampleLocked() {
	if s.status != StatusPlaying {
		return
	}

	elapsed := s.backend.Elapsed().Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.duration {
		elapsed = s.duration
	}
	s.elapsed = elapsed

	s.publishLocked(Event{Type: EventProgress})
}

// loadAndPlayLocked loads the track at index and starts it. On failure the
// session keeps its previous state.
// Must be called with lock held.
func (s *Session) loadAndPlayLocked(index int) error {
	path, ok := s.playlist.At(index)
	if !ok {
		return errors.Wrapf(ErrInvalidIndex, "index %d of %d", index, s.playlist.Len())
	}

	t, err := s.tags.Read(path)
	if err != nil {
		return s.loadFailedLocked(path, err)
	}
	if err := s.backend.Load(path); err != nil {
		return s.loadFailedLocked(path, err)
	}
	if err := s.backend.Play(); err != nil {
		// The backend already dropped the previous track.
		s.track = nil
		s.duration = 0
		s.current = index
		s.stopLocked()
		return s.loadFailedLocked(path, err)
	}

	t.Duration = t.Duration.Truncate(time.Second)
	s.current = index
	s.track = &t
	s.duration = t.Duration
	s.elapsed = 0
	s.status = StatusPlaying
	s.sampler.Start()

	zlog.Info().Msgf("playback: track started: index=%d title=%s duration=%s", index, t.Title, t.Duration)
	s.publishLocked(Event{Type: EventTrackStarted})
	s.publishLocked(Event{Type: EventProgress})
	return nil
}

// loadFailedLocked reports a load failure.
// Must be called with lock held.
func (s *Session) loadFailedLocked(path string, cause error) error {
	err := errors.Mark(errors.Wrapf(cause, "failed to load %s", path), ErrLoadFailed)
	zlog.Error().Msgf("playback: %v", err)
	s.publishLocked(Event{Type: EventLoadFailed, Err: err})
	return err
}

// publishLocked fills in the session fields of e and hands it to the notifier.
// Must be called with lock held.
func (s *Session) publishLocked(e Event) {
	if s.notifier == nil {
		return
	}

	e.Status = s.status
	e.Index = s.current
	e.Volume = s.volume
	e.Count = s.playlist.Len()
	if s.track != nil {
		t := *s.track
		e.Track = &t
	}
	if e.Type == EventProgress && s.status != StatusStopped {
		e.Elapsed = s.elapsed
		e.Duration = s.duration
	}

	if err := s.notifier.Broadcast(e); err != nil {
		zlog.Debug().Msgf("playback: failed to broadcast %s: %v", e.Type, err)
	}
}

func clampVolume(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
