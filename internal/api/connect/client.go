package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client of the control service.
type Client struct {
	unary     map[string]*connect.Client[structpb.Struct, structpb.Struct]
	subscribe *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a client for the service at baseURL. An empty token
// sends no credentials.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewTokenInterceptor(token)))
	}

	c := &Client{unary: make(map[string]*connect.Client[structpb.Struct, structpb.Struct])}
	for _, procedure := range []string{
		ProcedureGetStatus,
		ProcedurePlay,
		ProcedurePause,
		ProcedureStop,
		ProcedureNext,
		ProcedurePrevious,
		ProcedureSelect,
		ProcedureSeek,
		ProcedureSetVolume,
		ProcedureAddTracks,
	} {
		c.unary[procedure] = connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	c.subscribe = connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ProcedureSubscribeEvents, opts...)
	return c
}

// Status returns the session state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	return c.call(ctx, ProcedureGetStatus, nil)
}

// Play starts the current track.
func (c *Client) Play(ctx context.Context) (Status, error) {
	return c.call(ctx, ProcedurePlay, nil)
}

// Pause toggles pause.
func (c *Client) Pause(ctx context.Context) (Status, error) {
	return c.call(ctx, ProcedurePause, nil)
}

// Stop stops playback.
func (c *Client) Stop(ctx context.Context) (Status, error) {
	return c.call(ctx, ProcedureStop, nil)
}

// Next plays the following track.
func (c *Client) Next(ctx context.Context) (Status, error) {
	return c.call(ctx, ProcedureNext, nil)
}

// Previous plays the preceding track.
func (c *Client) Previous(ctx context.Context) (Status, error) {
	return c.call(ctx, ProcedurePrevious, nil)
}

// Select plays the track at index.
func (c *Client) Select(ctx context.Context, index int) (Status, error) {
	return c.call(ctx, ProcedureSelect, map[string]any{"index": index})
}

// Seek moves playback to the given second.
func (c *Client) Seek(ctx context.Context, seconds int) (Status, error) {
	return c.call(ctx, ProcedureSeek, map[string]any{"seconds": seconds})
}

// SetVolume sets the volume percent.
func (c *Client) SetVolume(ctx context.Context, percent int) (Status, error) {
	return c.call(ctx, ProcedureSetVolume, map[string]any{"percent": percent})
}

// AddTracks appends files or directories on the player's host.
func (c *Client) AddTracks(ctx context.Context, paths ...string) (Status, error) {
	return c.call(ctx, ProcedureAddTracks, map[string]any{"paths": stringList(paths)})
}

// Watch calls fn for every event until ctx is cancelled, the stream ends or
// fn returns an error. The first event is a snapshot.
func (c *Client) Watch(ctx context.Context, fn func(EventMessage) error) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return errors.Wrap(err, "failed to subscribe")
	}
	defer stream.Close()

	for stream.Receive() {
		e, err := DecodeEvent(stream.Msg())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream failed")
	}
	return nil
}

func (c *Client) call(ctx context.Context, procedure string, in map[string]any) (Status, error) {
	msg, err := structpb.NewStruct(in)
	if err != nil {
		return Status{}, errors.Wrap(err, "failed to encode request")
	}

	resp, err := c.unary[procedure].CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(resp.Msg)
}
