package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/sdplayer/internal/app/notification"
	"github.com/osa030/sdplayer/internal/app/playback"
)

// ControlServiceName is the fully-qualified name of the control service.
const ControlServiceName = "sdplayer.v1.ControlService"

// Procedure paths of the control service.
const (
	ProcedureGetStatus       = "/" + ControlServiceName + "/GetStatus"
	ProcedurePlay            = "/" + ControlServiceName + "/Play"
	ProcedurePause           = "/" + ControlServiceName + "/Pause"
	ProcedureStop            = "/" + ControlServiceName + "/Stop"
	ProcedureNext            = "/" + ControlServiceName + "/Next"
	ProcedurePrevious        = "/" + ControlServiceName + "/Previous"
	ProcedureSelect          = "/" + ControlServiceName + "/Select"
	ProcedureSeek            = "/" + ControlServiceName + "/Seek"
	ProcedureSetVolume       = "/" + ControlServiceName + "/SetVolume"
	ProcedureAddTracks       = "/" + ControlServiceName + "/AddTracks"
	ProcedureSubscribeEvents = "/" + ControlServiceName + "/SubscribeEvents"
)

// Player is the session the service controls.
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

// Events is the event source streamed to subscribers.
type Events interface {
	Subscribe(stream notification.Stream) string
	Unsubscribe(subscriptionID string)
	SubscriberCount() int
}

// ExpandFunc turns requested paths into playlist entries.
type ExpandFunc func(paths []string) []string

// ControlService implements the ControlService RPC.
type ControlService struct {
	player Player
	events Events
	expand ExpandFunc

	done      chan struct{}
	closeOnce sync.Once
}

// NewControlService creates a new ControlService. expand may be nil.
func NewControlService(player Player, events Events, expand ExpandFunc) *ControlService {
	if expand == nil {
		expand = func(paths []string) []string { return paths }
	}
	return &ControlService{
		player: player,
		events: events,
		expand: expand,
		done:   make(chan struct{}),
	}
}

// Close ends all open event streams.
func (s *ControlService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// NewControlServiceHandler builds an HTTP handler serving every procedure
// of the service. It returns the path to mount the handler on.
func NewControlServiceHandler(svc *ControlService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()

	unary := map[string]func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error){
		ProcedureGetStatus: svc.GetStatus,
		ProcedurePlay:      svc.Play,
		ProcedurePause:     svc.Pause,
		ProcedureStop:      svc.Stop,
		ProcedureNext:      svc.Next,
		ProcedurePrevious:  svc.Previous,
		ProcedureSelect:    svc.Select,
		ProcedureSeek:      svc.Seek,
		ProcedureSetVolume: svc.SetVolume,
		ProcedureAddTracks: svc.AddTracks,
	}
	for procedure, fn := range unary {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	mux.Handle(ProcedureSubscribeEvents, connect.NewServerStreamHandler(ProcedureSubscribeEvents, svc.SubscribeEvents, opts...))

	return "/" + ControlServiceName + "/", mux
}

// GetStatus returns the current session state.
func (s *ControlService) GetStatus(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.respond()
}

// Play starts or restarts the current track.
func (s *ControlService) Play(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.player.Play(); err != nil {
		return nil, toConnectError(err)
	}
	return s.respond()
}

// Pause toggles pause.
func (s *ControlService) Pause(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.player.Pause(); err != nil {
		return nil, toConnectError(err)
	}
	return s.respond()
}

// Stop stops playback.
func (s *ControlService) Stop(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.player.Stop()
	return s.respond()
}

// Next plays the following track.
func (s *ControlService) Next(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.player.Next(); err != nil {
		return nil, toConnectError(err)
	}
	return s.respond()
}

// Previous plays the preceding track.
func (s *ControlService) Previous(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.player.Previous(); err != nil {
		return nil, toConnectError(err)
	}
	return s.respond()
}

// Select plays the track at the requested index.
func (s *ControlService) Select(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in selectRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	if err := s.player.Select(*in.Index); err != nil {
		return nil, toConnectError(err)
	}
	return s.respond()
}

// Seek moves playback to the requested second.
func (s *ControlService) Seek(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in seekRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	if err := s.player.Seek(*in.Seconds); err != nil {
		return nil, toConnectError(err)
	}
	return s.respond()
}

// SetVolume sets the volume percent.
func (s *ControlService) SetVolume(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in volumeRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	s.player.SetVolume(*in.Percent)
	return s.respond()
}

// AddTracks appends files and directory contents to the playlist.
func (s *ControlService) AddTracks(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in addTracksRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	paths := s.expand(in.Paths)
	zlog.Debug().Msgf("connect: add tracks: requested=%d added=%d", len(in.Paths), len(paths))
	s.player.AddTracks(paths...)
	return s.respond()
}

// SubscribeEvents streams a snapshot followed by every session event until
// the client goes away or the service is closed.
func (s *ControlService) SubscribeEvents(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	initial, err := snapshotEventStruct(s.player.Snapshot())
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	adapter := &eventStreamAdapter{stream: stream}
	subscriptionID := s.events.Subscribe(adapter)
	zlog.Debug().Msgf("connect: event stream opened: id=%s subscribers=%d", subscriptionID, s.events.SubscriberCount())

	select {
	case <-ctx.Done():
	case <-s.done:
	}

	s.events.Unsubscribe(subscriptionID)
	zlog.Debug().Msgf("connect: event stream closed: id=%s subscribers=%d", subscriptionID, s.events.SubscriberCount())
	return nil
}

func (s *ControlService) respond() (*connect.Response[structpb.Struct], error) {
	msg, err := snapshotStruct(s.player.Snapshot())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// toConnectError maps session errors onto RPC codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrInvalidIndex):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case playback.IsNoop(err):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// eventStreamAdapter adapts connect.ServerStream to notification.Stream.
type eventStreamAdapter struct {
	stream *connect.ServerStream[structpb.Struct]
}

func (a *eventStreamAdapter) Send(e playback.Event) error {
	msg, err := eventStruct(e)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s event", e.Type)
	}
	return a.stream.Send(msg)
}
