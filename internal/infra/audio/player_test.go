package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

// writeWAV writes a silent mono 16-bit WAV file.
func writeWAV(t *testing.T, dir, name string, d time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	n := int(d.Seconds() * testRate)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}
	enc := gowav.NewEncoder(f, testRate, 16, 1, 1)
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

// fakeOutput collects streamers instead of sending them to a device.
type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	clears    int
}

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = append(o.streamers, s)
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = nil
	o.clears++
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

// drain streams everything currently playing to the end.
func (o *fakeOutput) drain() {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf := make([][2]float64, 512)
	for _, s := range o.streamers {
		for {
			if _, ok := s.Stream(buf); !ok {
				break
			}
		}
	}
	o.streamers = nil
}

func (o *fakeOutput) playing() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streamers)
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "tone.wav", 2500*time.Millisecond)

	d, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestProbe_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a wav file"), 0o644))

	_, err := Probe(filepath.Join(dir, "song.ogg"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Probe(filepath.Join(dir, "missing.wav"))
	assert.Error(t, err)

	_, err = Probe(garbage)
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.mp3"))
	assert.True(t, Supported("b.WAV"))
	assert.True(t, Supported("c.flac"))
	assert.False(t, Supported("d.ogg"))
	assert.False(t, Supported("noext"))
}

func TestPlayer_LoadPlaySeek(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "a.wav", 3*time.Second)
	out := &fakeOutput{}
	p := newPlayer(out, testRate, 4)
	defer p.Close()

	assert.ErrorIs(t, p.Play(), ErrNoTrack)

	require.NoError(t, p.Load(path))
	require.NoError(t, p.Play())
	assert.Equal(t, 1, out.playing())
	assert.Zero(t, p.Elapsed())

	require.NoError(t, p.PlayFrom(2*time.Second))
	assert.Equal(t, 1, out.playing(), "seeking replaces the stream")
	assert.Equal(t, 2*time.Second, p.Elapsed())

	require.NoError(t, p.PlayFrom(time.Minute))
	assert.Equal(t, 3*time.Second, p.Elapsed(), "offset clamps to the end")
}

func TestPlayer_LoadFailureKeepsTrack(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "a.wav", time.Second)
	out := &fakeOutput{}
	p := newPlayer(out, testRate, 4)
	defer p.Close()

	require.NoError(t, p.Load(path))
	require.NoError(t, p.Play())

	err := p.Load(filepath.Join(dir, "b.flac"))
	require.Error(t, err)
	assert.Equal(t, 1, out.playing(), "current stream keeps playing")
	assert.Equal(t, path, p.current.path)
}

func TestPlayer_PauseResumeVolume(t *testing.T) {
	dir := t.TempDir()
	out := &fakeOutput{}
	p := newPlayer(out, testRate, 4)
	defer p.Close()

	p.SetVolume(0.5)
	require.NoError(t, p.Load(writeWAV(t, dir, "a.wav", time.Second)))
	require.NoError(t, p.Play())
	assert.InDelta(t, -1.0, p.volume.Volume, 1e-9)
	assert.False(t, p.volume.Silent)

	p.Pause()
	assert.True(t, p.ctrl.Paused)
	p.Resume()
	assert.False(t, p.ctrl.Paused)

	p.SetVolume(0)
	assert.True(t, p.volume.Silent)
	p.SetVolume(7)
	assert.False(t, p.volume.Silent)
	assert.InDelta(t, 0.0, p.volume.Volume, 1e-9)
}

func TestPlayer_Finished(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "a.wav", 500*time.Millisecond)
	out := &fakeOutput{}
	p := newPlayer(out, testRate, 4)
	defer p.Close()

	finished := make(chan string, 1)
	p.OnFinished(func(path string) { finished <- path })

	require.NoError(t, p.Load(path))
	require.NoError(t, p.Play())
	out.drain()

	select {
	case got := <-finished:
		assert.Equal(t, path, got)
	case <-time.After(time.Second):
		t.Fatal("finished callback not called")
	}
}

func TestPlayer_StopSuppressesFinished(t *testing.T) {
	dir := t.TempDir()
	out := &fakeOutput{}
	p := newPlayer(out, testRate, 4)
	defer p.Close()

	finished := make(chan string, 1)
	p.OnFinished(func(path string) { finished <- path })

	require.NoError(t, p.Load(writeWAV(t, dir, "a.wav", 500*time.Millisecond)))
	require.NoError(t, p.Play())

	// Capture the stream before Stop clears it, then run it out.
	out.mu.Lock()
	stale := out.streamers[0]
	out.mu.Unlock()
	p.Stop()

	buf := make([][2]float64, 512)
	for {
		if _, ok := stale.Stream(buf); !ok {
			break
		}
	}

	select {
	case got := <-finished:
		t.Fatalf("unexpected finished callback for %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}
