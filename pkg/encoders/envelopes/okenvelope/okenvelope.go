// Package okenvelope implements the relay-to-client OK message that
// acknowledges an EVENT submission, reporting whether it was accepted and,
// if not, a machine-readable reason.
package okenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "OK"

// T is an OK envelope: ["OK", <event id>, <accepted>, <message>].
type T struct {
	EventID string
	OK      bool
	Message string
}

// New returns an empty OK envelope.
func New() *T { return new(T) }

// NewFrom builds an OK envelope reporting the outcome of processing the
// event with the given hex id.
func NewFrom(eventID string, ok bool, message string) *T {
	return &T{EventID: eventID, OK: ok, Message: message}
}

// Label returns "OK".
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
	id, err := envelopes.Field(en.EventID)
	if err != nil {
		return nil, err
	}
	ok, err := envelopes.Field(en.OK)
	if err != nil {
		return nil, err
	}
	msg, err := envelopes.Field(en.Message)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, id, ok, msg)
}

// UnmarshalJSON parses an OK envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("okenvelope: expected [label, id, ok, message], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.EventID); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[2], &en.OK); err != nil {
		return err
	}
	return json.Unmarshal(raw[3], &en.Message)
}
