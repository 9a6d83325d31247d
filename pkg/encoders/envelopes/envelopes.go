// Package envelopes implements the NIP-01 wire framing shared by every
// message a client and relay exchange: a JSON array whose first element is
// a label string identifying the message type.
package envelopes

import (
	"encoding/json"
	"fmt"
)

// Envelope is satisfied by every concrete envelope type in the
// envelopes/* subpackages.
type Envelope interface {
	Label() string
	MarshalJSON() ([]byte, error)
	UnmarshalJSON([]byte) error
}

// Identify inspects a raw JSON array envelope and returns its label (the
// first element) along with the raw array for a type-specific decoder to
// finish parsing.
func Identify(b []byte) (label string, raw []json.RawMessage, err error) {
	if err = json.Unmarshal(b, &raw); err != nil {
		return
	}
	if len(raw) == 0 {
		err = fmt.Errorf("envelopes: empty array")
		return
	}
	if err = json.Unmarshal(raw[0], &label); err != nil {
		return
	}
	return
}

// Array renders label followed by the given already-marshaled fields as a
// JSON array.
func Array(label string, fields ...json.RawMessage) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(fields)+1)
	labelJSON, err := json.Marshal(label)
	if err != nil {
		return nil, err
	}
	out = append(out, labelJSON)
	out = append(out, fields...)
	return json.Marshal(out)
}

// Field marshals a single value to a json.RawMessage, for use with Array.
func Field(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
