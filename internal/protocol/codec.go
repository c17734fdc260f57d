package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrMalformed      = errors.New("malformed payload")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrFileTooLarge   = fmt.Errorf("file exceeds %d bytes", MaxFileSize)
)

// Encode serializes m for the data channel.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case ChatMessage:
		return msgpack.Marshal(v.Text)
	case SystemMessage:
		v.Type = TypeSystem
		return msgpack.Marshal(v)
	case FileMessage:
		if len(v.Data) > MaxFileSize {
			return nil, ErrFileTooLarge
		}
		v.Type = TypeFile
		v.Size = int64(len(v.Data))
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
}

// Decode parses a data channel payload. Strings are chat text; maps are
// dispatched on their "type" field. A system message with an action this
// client does not know is returned as is so the caller can log and ignore it.
func Decode(data []byte) (Message, error) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch v := raw.(type) {
	case string:
		return ChatMessage{Text: v}, nil
	case map[string]any:
		typ, _ := v["type"].(string)
		switch typ {
		case TypeSystem:
			var msg SystemMessage
			if err := msgpack.Unmarshal(data, &msg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return msg, nil
		case TypeFile:
			var msg FileMessage
			if err := msgpack.Unmarshal(data, &msg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			if len(msg.Data) > MaxFileSize {
				return nil, ErrFileTooLarge
			}
			return msg, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, typ)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrMalformed, raw)
	}
}
