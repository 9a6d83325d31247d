// Package eoseenvelope implements the relay-to-client EOSE message, which
// marks the end of a subscription's historical scan: everything delivered
// after it is a live match rather than backlog.
package eoseenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "EOSE"

// T is an EOSE envelope: ["EOSE", <subscription id>].
type T struct {
	Subscription string
}

// New returns an empty EOSE envelope.
func New() *T { return new(T) }

// NewFrom builds an EOSE envelope for the given subscription id.
func NewFrom(id string) *T { return &T{Subscription: id} }

// Label returns "EOSE".
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

// UnmarshalJSON parses an EOSE envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("eoseenvelope: expected [label, subscription], got %d elements", len(raw))
	}
	return json.Unmarshal(raw[1], &en.Subscription)
}
