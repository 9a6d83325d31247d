// Package negcloseenvelope implements the client-to-relay NEG-CLOSE
// message, which tears down a range-reconciliation session.
package negcloseenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "NEG-CLOSE"

// T is a NEG-CLOSE envelope: ["NEG-CLOSE", <subscription id>].
type T struct {
	Subscription string
}

// New returns an empty NEG-CLOSE envelope.
func New() *T { return new(T) }

// NewFrom builds a NEG-CLOSE envelope for the given subscription id.
func NewFrom(id string) *T { return &T{Subscription: id} }

// Label returns "NEG-CLOSE".
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
	sub, err := envelopes.Field(en.Subscription)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, sub)
}

// UnmarshalJSON parses a NEG-CLOSE envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("negcloseenvelope: expected [label, id], got %d elements", len(raw))
	}
	return json.Unmarshal(raw[1], &en.Subscription)
}
