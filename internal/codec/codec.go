// Package codec serializes a ledger snapshot to a string safe to embed as a
// single URL query parameter, and back. Encoding is deterministic: the same
// ledger always yields the same string, and Decode(Encode(l)) == l for every
// well-formed ledger, including unicode names. The codec does not validate
// referential integrity; callers run Ledger.Normalize on decoded snapshots.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/checkbill/checkbill/internal/models"
)

// version tags the payload format so future changes are detectable.
// Historical links carry no version field; those decode as version 1.
const version = 1

// snapshot is the wire form of a ledger. Only persons and items travel;
// server-side fields (ID, timestamps) stay home.
type snapshot struct {
	Version int             `json:"v,omitempty"`
	Persons []models.Person `json:"persons"`
	Items   []models.Item   `json:"items"`
}

// DecodeError reports a malformed or truncated share payload. It is always
// recoverable: callers keep their current ledger and log the failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode ledger snapshot: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes the ledger's persons and items to compact JSON and wraps
// it in URL-safe base64. The base64 step operates on the UTF-8 bytes, so
// multi-byte names survive untouched.
func Encode(ledger *models.Ledger) (string, error) {
	raw, err := json.Marshal(snapshot{
		Version: version,
		Persons: ledger.Persons,
		Items:   ledger.Items,
	})
	if err != nil {
		return "", fmt.Errorf("encode ledger snapshot: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode exactly. Malformed input of any kind (bad base64,
// bad JSON, unsupported version) yields a *DecodeError; the zero ledger is
// never partially populated.
func Decode(data string) (*models.Ledger, error) {
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if snap.Version > version {
		return nil, &DecodeError{Err: fmt.Errorf("unsupported snapshot version %d", snap.Version)}
	}

	return &models.Ledger{Persons: snap.Persons, Items: snap.Items}, nil
}
