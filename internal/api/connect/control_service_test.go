package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/sdplayer/internal/app/notification"
	"github.com/osa030/sdplayer/internal/app/playback"
	"github.com/osa030/sdplayer/internal/domain/track"
)

const testToken = "secret"

// fakePlayer records calls and returns canned errors.
type fakePlayer struct {
	mu       sync.Mutex
	snapshot playback.Snapshot
	errs     map[string]error
	calls    []string
	selected int
	seeked   int
	volume   int
	added    []string
}

func newFakePlayer() *fakePlayer {
	t := track.New("/music/a.mp3")
	t.Artist = "Artist"
	t.Duration = 200 * time.Second
	return &fakePlayer{
		snapshot: playback.Snapshot{
			Status:   playback.StatusPlaying,
			Index:    0,
			Paths:    []string{"/music/a.mp3", "/music/b.mp3"},
			Track:    &t,
			Duration: 200 * time.Second,
			Elapsed:  62 * time.Second,
			Volume:   50,
		},
		errs: make(map[string]error),
	}
}

func (p *fakePlayer) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.errs[call]
}

func (p *fakePlayer) Snapshot() playback.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *fakePlayer) AddTracks(paths ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, paths...)
}

func (p *fakePlayer) Play() error     { return p.record("play") }
func (p *fakePlayer) Pause() error    { return p.record("pause") }
func (p *fakePlayer) Stop()           { _ = p.record("stop") }
func (p *fakePlayer) Next() error     { return p.record("next") }
func (p *fakePlayer) Previous() error { return p.record("previous") }

func (p *fakePlayer) Select(index int) error {
	p.mu.Lock()
	p.selected = index
	p.mu.Unlock()
	return p.record("select")
}

func (p *fakePlayer) Seek(seconds int) error {
	p.mu.Lock()
	p.seeked = seconds
	p.mu.Unlock()
	return p.record("seek")
}

func (p *fakePlayer) SetVolume(percent int) {
	p.mu.Lock()
	p.volume = percent
	p.mu.Unlock()
	_ = p.record("volume")
}

type testServer struct {
	player *fakePlayer
	events *notification.Manager
	server *httptest.Server
	client *Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	player := newFakePlayer()
	events := notification.NewManager()
	expand := func(paths []string) []string {
		return append([]string{"expanded"}, paths...)
	}
	svc := NewControlService(player, events, expand)
	path, handler := NewControlServiceHandler(svc, connect.WithInterceptors(NewTokenInterceptor(testToken)))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		events.Close()
	})

	return &testServer{
		player: player,
		events: events,
		server: server,
		client: NewClient(server.Client(), server.URL, testToken),
	}
}

func TestControlService_Status(t *testing.T) {
	ts := newTestServer(t)

	status, err := ts.client.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "playing", status.Status)
	assert.Equal(t, 0, status.Index)
	assert.Equal(t, []string{"/music/a.mp3", "/music/b.mp3"}, status.Paths)
	assert.Equal(t, 62, status.Elapsed)
	assert.Equal(t, 200, status.Duration)
	assert.Equal(t, 50, status.Volume)
	require.NotNil(t, status.Track)
	assert.Equal(t, "a.mp3", status.Track.Title)
	assert.Equal(t, "Artist", status.Track.Artist)
	assert.Equal(t, track.UnknownAlbum, status.Track.Album)
}

func TestControlService_Commands(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.client.Play(ctx)
	require.NoError(t, err)
	_, err = ts.client.Pause(ctx)
	require.NoError(t, err)
	_, err = ts.client.Next(ctx)
	require.NoError(t, err)
	_, err = ts.client.Previous(ctx)
	require.NoError(t, err)
	_, err = ts.client.Select(ctx, 1)
	require.NoError(t, err)
	_, err = ts.client.Seek(ctx, 42)
	require.NoError(t, err)
	_, err = ts.client.SetVolume(ctx, 0)
	require.NoError(t, err)
	_, err = ts.client.Stop(ctx)
	require.NoError(t, err)
	_, err = ts.client.AddTracks(ctx, "/music/c.mp3")
	require.NoError(t, err)

	ts.player.mu.Lock()
	defer ts.player.mu.Unlock()
	assert.Equal(t, []string{"play", "pause", "next", "previous", "select", "seek", "volume", "stop"}, ts.player.calls)
	assert.Equal(t, 1, ts.player.selected)
	assert.Equal(t, 42, ts.player.seeked)
	assert.Equal(t, 0, ts.player.volume)
	assert.Equal(t, []string{"expanded", "/music/c.mp3"}, ts.player.added)
}

func TestControlService_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		call string
		err  error
		run  func(c *Client) error
		code connect.Code
	}{
		{
			name: "empty playlist",
			call: "play",
			err:  playback.ErrEmptyPlaylist,
			run:  func(c *Client) error { _, err := c.Play(context.Background()); return err },
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "not playing",
			call: "pause",
			err:  playback.ErrNotPlaying,
			run:  func(c *Client) error { _, err := c.Pause(context.Background()); return err },
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "invalid index",
			call: "select",
			err:  errors.Wrap(playback.ErrInvalidIndex, "index 9 of 2"),
			run:  func(c *Client) error { _, err := c.Select(context.Background(), 9); return err },
			code: connect.CodeInvalidArgument,
		},
		{
			name: "load failure",
			call: "next",
			err:  errors.Mark(errors.New("failed to load x.mp3"), playback.ErrLoadFailed),
			run:  func(c *Client) error { _, err := c.Next(context.Background()); return err },
			code: connect.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.player.mu.Lock()
			ts.player.errs[tt.call] = tt.err
			ts.player.mu.Unlock()

			err := tt.run(ts.client)

			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestControlService_InvalidRequest(t *testing.T) {
	ts := newTestServer(t)
	raw := connect.NewClient[structpb.Struct, structpb.Struct](
		ts.server.Client(),
		ts.server.URL+ProcedureSelect,
		connect.WithInterceptors(NewTokenInterceptor(testToken)),
	)

	tests := []struct {
		name string
		msg  map[string]any
	}{
		{name: "missing index", msg: map[string]any{}},
		{name: "unknown field", msg: map[string]any{"index": 1, "track": "a"}},
		{name: "wrong type", msg: map[string]any{"index": "first"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := structpb.NewStruct(tt.msg)
			require.NoError(t, err)

			_, err = raw.CallUnary(context.Background(), connect.NewRequest(msg))

			require.Error(t, err)
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		})
	}
}

func TestControlService_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)

	for _, token := range []string{"", "wrong"} {
		c := NewClient(ts.server.Client(), ts.server.URL, token)

		_, err := c.Status(context.Background())
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err), "token %q", token)

		err = c.Watch(context.Background(), func(EventMessage) error { return nil })
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err), "token %q", token)
	}
}

func TestControlService_SubscribeEvents(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan EventMessage, 8)
	done := make(chan error, 1)
	go func() {
		done <- ts.client.Watch(ctx, func(e EventMessage) error {
			received <- e
			return nil
		})
	}()

	first := <-received
	assert.Equal(t, EventTypeSnapshot, first.Type)
	assert.Equal(t, 2, first.Count)
	assert.Equal(t, 62, first.Elapsed)

	require.Eventually(t, func() bool { return ts.events.SubscriberCount() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, ts.events.Broadcast(playback.Event{
		Type:     playback.EventProgress,
		Status:   playback.StatusPlaying,
		Index:    1,
		Elapsed:  3 * time.Second,
		Duration: 10 * time.Second,
		Volume:   50,
		Count:    2,
	}))

	select {
	case e := <-received:
		assert.Equal(t, "progress", e.Type)
		assert.Equal(t, uint64(1), e.SequenceNo)
		assert.Equal(t, "playing", e.Status)
		assert.Equal(t, 1, e.Index)
		assert.Equal(t, 3, e.Elapsed)
		assert.Equal(t, 10, e.Duration)
		assert.Nil(t, e.Track)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not return after cancel")
	}
	require.Eventually(t, func() bool { return ts.events.SubscriberCount() == 0 }, time.Second, time.Millisecond)
}
