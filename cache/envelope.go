package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the self-describing byte blob the remote backend stores
// (spec.md §4.1): it carries enough of its own lifecycle to reconstruct a
// Metadata without a second round-trip, and to detect staleness locally.
type envelope struct {
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// marshalEnvelope serializes a value with its lifecycle timestamps.
func marshalEnvelope(value []byte, createdAt, expiresAt time.Time) ([]byte, error) {
	data, err := json.Marshal(envelope{Value: value, CreatedAt: createdAt, ExpiresAt: expiresAt})
	if err != nil {
		return nil, fmt.Errorf("cache: marshal envelope: %w", err)
	}
	return data, nil
}

// unmarshalEnvelope reverses marshalEnvelope.
func unmarshalEnvelope(data []byte) (*envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cache: cannot unmarshal empty envelope")
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cache: unmarshal envelope: %w", err)
	}
	return &e, nil
}
