package bus

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form of a message.
type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"`
}

// Encode serializes m as a JSON envelope.
func Encode(m Message) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Type, err)
	}
	return json.Marshal(envelope{Type: m.Type, Payload: payload, Origin: m.Origin})
}

// Decode parses a JSON envelope. The payload is decoded into the struct
// registered for the envelope's type.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	mk, ok := contract[env.Type]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	p := mk()
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return Message{Type: env.Type, Payload: p, Origin: env.Origin}, nil
}
