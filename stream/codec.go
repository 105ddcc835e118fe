package stream

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes events for delivery to remote subscribers.
type Codec interface {
	// Encode serializes an event to bytes.
	Encode(evt *Event) ([]byte, error)

	// Decode deserializes bytes into an event.
	Decode(data []byte) (*Event, error)

	// Name returns the codec identifier used in format negotiation.
	Name() string

	// Binary reports whether encoded events must travel as binary frames.
	Binary() bool
}

// Codec names for format negotiation.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Unknown names fall back to JSON.
func GetCodec(name string) Codec {
	if name == CodecNameMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// JSONCodec encodes events as JSON text.
type JSONCodec struct{}

func (JSONCodec) Encode(evt *Event) ([]byte, error) { return json.Marshal(evt) }

func (JSONCodec) Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (JSONCodec) Name() string { return CodecNameJSON }
func (JSONCodec) Binary() bool { return false }

// MsgpackCodec encodes events as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(evt *Event) ([]byte, error) { return msgpack.Marshal(evt) }

func (MsgpackCodec) Decode(data []byte) (*Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (MsgpackCodec) Name() string { return CodecNameMsgpack }
func (MsgpackCodec) Binary() bool { return true }
