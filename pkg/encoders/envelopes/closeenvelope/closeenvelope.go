// Package closeenvelope implements the client-to-relay CLOSE message,
// which requests that a subscription be torn down.
package closeenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "CLOSE"

// T is a CLOSE envelope: ["CLOSE", <subscription id>].
type T struct {
	ID string
}

// New returns an empty CLOSE envelope.
func New() *T { return new(T) }

// NewFrom builds a CLOSE envelope for the given subscription id.
func NewFrom(id string) *T { return &T{ID: id} }

// Label returns "CLOSE".
func (en *T) Label() string { return L }

// Write serializes the envelope to w.
func (en *T) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the envelope as its wire array.
func (en *T) MarshalJSON() ([]byte, error) {
	id, err := envelopes.Field(en.ID)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, id)
}

// UnmarshalJSON parses a CLOSE envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("closeenvelope: expected [label, id], got %d elements", len(raw))
	}
	return json.Unmarshal(raw[1], &en.ID)
}
