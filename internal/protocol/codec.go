// Package protocol encodes and decodes channel messages. Every message is a
// single JSON object with a mandatory "type" field.
package protocol

import (
	"errors"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uilink/api/schemas"
)

// ErrMissingType is returned for payloads that parse but carry no type.
var ErrMissingType = errors.New("message has no type")

// Envelope is a decoded inbound message: its type plus the raw payload for
// handlers to unmarshal into their concrete shape.
type Envelope struct {
	Type schemas.MessageType
	Raw  []byte
}

type header struct {
	Type schemas.MessageType `json:"type"`
}

// Decode parses the type of a raw frame. The payload is retained as-is.
func Decode(raw []byte) (Envelope, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Envelope{}, fmt.Errorf("malformed message: %w", err)
	}
	if h.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return Envelope{Type: h.Type, Raw: raw}, nil
}

// Into unmarshals the envelope payload into v.
func (e Envelope) Into(v interface{}) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// Encode serializes an outbound message.
func Encode(msg interface{}) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return b, nil
}
