package protocol

import (
	"encoding/json"
	"fmt"
)

// PeekType extracts the message type without a full decode.
func PeekType(data []byte) (MessageType, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env.Type, nil
}

// Decode parses data into a message of type T.
func Decode[T any](data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// DecodeAuth parses and validates an auth message.
func DecodeAuth(data []byte) (Auth, error) {
	msg, err := Decode[Auth](data)
	if err != nil {
		return Auth{}, err
	}
	if msg.Type != TypeAuth {
		return Auth{}, fmt.Errorf("%w: expected auth, got %q", ErrMalformed, msg.Type)
	}
	if !msg.Role.Valid() {
		return Auth{}, ErrInvalidRole
	}
	return msg, nil
}

// Encode marshals a message.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
