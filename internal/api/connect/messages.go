package connect

import (
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/sdplayer/internal/app/playback"
	"github.com/osa030/sdplayer/internal/domain/track"
)

// EventTypeSnapshot is the type of the first message of an event stream.
const EventTypeSnapshot = "snapshot"

// TrackInfo describes the loaded track.
type TrackInfo struct {
	Path     string `mapstructure:"path"`
	Title    string `mapstructure:"title"`
	Artist   string `mapstructure:"artist"`
	Album    string `mapstructure:"album"`
	Duration int    `mapstructure:"duration"`
}

// Status is the session state returned by every control call.
type Status struct {
	Status   string     `mapstructure:"status"`
	Index    int        `mapstructure:"index"`
	Paths    []string   `mapstructure:"paths"`
	Track    *TrackInfo `mapstructure:"track"`
	Elapsed  int        `mapstructure:"elapsed"`
	Duration int        `mapstructure:"duration"`
	Volume   int        `mapstructure:"volume"`
}

// EventMessage is a session event as seen by a remote subscriber.
type EventMessage struct {
	Type       string     `mapstructure:"type"`
	SequenceNo uint64     `mapstructure:"sequence_no"`
	Status     string     `mapstructure:"status"`
	Index      int        `mapstructure:"index"`
	Track      *TrackInfo `mapstructure:"track"`
	Elapsed    int        `mapstructure:"elapsed"`
	Duration   int        `mapstructure:"duration"`
	Volume     int        `mapstructure:"volume"`
	Count      int        `mapstructure:"count"`
	Paths      []string   `mapstructure:"paths"`
	Error      string     `mapstructure:"error"`
}

type selectRequest struct {
	Index *int `mapstructure:"index" validate:"required"`
}

type seekRequest struct {
	Seconds *int `mapstructure:"seconds" validate:"required"`
}

type volumeRequest struct {
	Percent *int `mapstructure:"percent" validate:"required"`
}

type addTracksRequest struct {
	Paths []string `mapstructure:"paths" validate:"required,min=1,dive,required"`
}

var validate = validator.New()

// decodeRequest decodes a request message into out and validates it.
func decodeRequest(msg *structpb.Struct, out any) error {
	var m map[string]any
	if msg != nil {
		m = msg.AsMap()
	}
	if err := decodeMap(m, out); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := validate.Struct(out); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, errors.Wrap(err, "invalid request"))
	}
	return nil
}

func decodeMap(m map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := dec.Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode message")
	}
	return nil
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

func stringList(paths []string) []any {
	list := make([]any, len(paths))
	for i, p := range paths {
		list[i] = p
	}
	return list
}

func trackValue(t *track.Track) any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"path":     t.Path,
		"title":    t.Title,
		"artist":   t.Artist,
		"album":    t.Album,
		"duration": t.Seconds(),
	}
}

// snapshotStruct encodes a session snapshot.
func snapshotStruct(s playback.Snapshot) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status":   s.Status.String(),
		"index":    s.Index,
		"paths":    stringList(s.Paths),
		"track":    trackValue(s.Track),
		"elapsed":  seconds(s.Elapsed),
		"duration": seconds(s.Duration),
		"volume":   s.Volume,
	})
}

// eventStruct encodes a session event.
func eventStruct(e playback.Event) (*structpb.Struct, error) {
	m := map[string]any{
		"type":        e.Type.String(),
		"sequence_no": e.SequenceNo,
		"status":      e.Status.String(),
		"index":       e.Index,
		"track":       trackValue(e.Track),
		"elapsed":     seconds(e.Elapsed),
		"duration":    seconds(e.Duration),
		"volume":      e.Volume,
		"count":       e.Count,
		"paths":       stringList(e.Paths),
	}
	if e.Err != nil {
		m["error"] = e.Err.Error()
	}
	return structpb.NewStruct(m)
}

// snapshotEventStruct encodes a snapshot as the first message of an event stream.
func snapshotEventStruct(s playback.Snapshot) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":     EventTypeSnapshot,
		"status":   s.Status.String(),
		"index":    s.Index,
		"track":    trackValue(s.Track),
		"elapsed":  seconds(s.Elapsed),
		"duration": seconds(s.Duration),
		"volume":   s.Volume,
		"count":    len(s.Paths),
		"paths":    stringList(s.Paths),
	})
}

// DecodeStatus decodes a control response.
func DecodeStatus(msg *structpb.Struct) (Status, error) {
	var s Status
	if err := decodeMap(msg.AsMap(), &s); err != nil {
		return Status{}, err
	}
	return s, nil
}

// DecodeEvent decodes an event stream message.
func DecodeEvent(msg *structpb.Struct) (EventMessage, error) {
	var e EventMessage
	if err := decodeMap(msg.AsMap(), &e); err != nil {
		return EventMessage{}, err
	}
	return e, nil
}
