package bus

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arloliu/credshare/types"
)

// Codec defines the wire format of bus messages.
type Codec interface {
	// Encode serializes a message to bytes.
	Encode(msg types.Message) ([]byte, error)

	// Decode deserializes and validates a message.
	Decode(data []byte) (types.Message, error)

	// Name returns the codec identifier ("json" or "msgpack").
	Name() string
}

// Codec names accepted by CodecByName.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// CodecByName returns the codec called name. An empty name selects JSON.
//
// Returns:
//   - Codec: The codec
//   - error: types.ErrUnknownCodec (wrapped) for unrecognized names
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecNameJSON, "":
		return JSONCodec{}, nil
	case CodecNameMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownCodec, name)
	}
}

// JSONCodec encodes messages as JSON. It is readable by browser peers.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(msg types.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (types.Message, error) {
	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return types.Message{}, fmt.Errorf("%w: %w", types.ErrInvalidMessage, err)
	}

	return msg, msg.Validate()
}

// Name implements Codec.
func (JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes messages as MessagePack.
type MsgpackCodec struct{}

// Encode implements Codec.
func (MsgpackCodec) Encode(msg types.Message) ([]byte, error) {
	return msgpack.Marshal(&msg)
}

// Decode implements Codec.
func (MsgpackCodec) Decode(data []byte) (types.Message, error) {
	var msg types.Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return types.Message{}, fmt.Errorf("%w: %w", types.ErrInvalidMessage, err)
	}

	return msg, msg.Validate()
}

// Name implements Codec.
func (MsgpackCodec) Name() string { return CodecNameMsgpack }
