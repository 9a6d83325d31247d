// Package negerrenvelope implements the relay-to-client NEG-ERR message,
// sent when a range-reconciliation session cannot continue (unsupported
// filter, session bound exceeded, internal error).
package negerrenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "NEG-ERR"

// T is a NEG-ERR envelope: ["NEG-ERR", <subscription id>, <message>].
type T struct {
	Subscription string
	Message      string
}

// New returns an empty NEG-ERR envelope.
func New() *T { return new(T) }

// NewFrom builds a NEG-ERR envelope for the given subscription id and
// machine/human message (conventionally a reason.Code-prefixed string).
func NewFrom(id string, message string) *T {
	return &T{Subscription: id, Message: message}
}

// Label returns "NEG-ERR".
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
	msg, err := envelopes.Field(en.Message)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, sub, msg)
}

// UnmarshalJSON parses a NEG-ERR envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("negerrenvelope: expected [label, id, message], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.Subscription); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &en.Message)
}
