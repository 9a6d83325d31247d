// Package closedenvelope implements the relay-to-client CLOSED message,
// sent when the relay refuses to open or continue a subscription (e.g.
// rejected filter, auth required, rate limited).
package closedenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "CLOSED"

// T is a CLOSED envelope: ["CLOSED", <subscription id>, <message>].
type T struct {
	ID      string
	Message string
}

// New returns an empty CLOSED envelope.
func New() *T { return new(T) }

// NewFrom builds a CLOSED envelope for the given subscription id and
// machine/human message (conventionally a reason.Code-prefixed string).
func NewFrom(id string, message string) *T {
	return &T{ID: id, Message: message}
}

// Label returns "CLOSED".
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
	msg, err := envelopes.Field(en.Message)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, id, msg)
}

// UnmarshalJSON parses a CLOSED envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("closedenvelope: expected [label, id, message], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &en.Message)
}
