package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns events into frames and back. Every frame is an envelope
// {"event": name, "data": payload}.
type Codec interface {
	Name() string
	// Binary reports whether frames must travel as binary websocket messages.
	Binary() bool
	Encode(event string, data any) ([]byte, error)
	Decode(frame []byte) (*Inbound, error)
}

// Inbound is a decoded envelope whose payload is decoded on demand.
type Inbound struct {
	Event  string
	data   []byte
	decode func([]byte, any) error
}

// Into decodes the payload into v.
func (in *Inbound) Into(v any) error {
	if len(in.data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrDeserializationFailed, in.Event)
	}
	if err := in.decode(in.data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeserializationFailed, in.Event, err)
	}
	return nil
}

// NewCodec resolves a codec by config name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

type JSONCodec struct{}

type jsonEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(event string, data any) ([]byte, error) {
	if event == "" {
		return nil, ErrEmptyEvent
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerializationFailed, event, err)
	}
	return json.Marshal(jsonEnvelope{Event: event, Data: payload})
}

func (JSONCodec) Decode(frame []byte) (*Inbound, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	if env.Event == "" {
		return nil, ErrEmptyEvent
	}
	return &Inbound{Event: env.Event, data: env.Data, decode: json.Unmarshal}, nil
}

type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data,omitempty"`
}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(event string, data any) ([]byte, error) {
	if event == "" {
		return nil, ErrEmptyEvent
	}
	payload, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerializationFailed, event, err)
	}
	return msgpack.Marshal(&msgpackEnvelope{Event: event, Data: payload})
}

func (MsgpackCodec) Decode(frame []byte) (*Inbound, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	if env.Event == "" {
		return nil, ErrEmptyEvent
	}
	return &Inbound{Event: env.Event, data: env.Data, decode: msgpack.Unmarshal}, nil
}
