// Package noticeenvelope implements the relay-to-client NOTICE message: a
// free-form human-readable string, used for protocol errors that precede
// any subscription or event context (e.g. malformed frame).
package noticeenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "NOTICE"

// T is a NOTICE envelope: ["NOTICE", <message>].
type T struct {
	Message string
}

// New returns an empty NOTICE envelope.
func New() *T { return new(T) }

// NewFrom builds a NOTICE envelope with the given message.
func NewFrom(message string) *T { return &T{Message: message} }

// Label returns "NOTICE".
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
	msg, err := envelopes.Field(en.Message)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, msg)
}

// UnmarshalJSON parses a NOTICE envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("noticeenvelope: expected [label, message], got %d elements", len(raw))
	}
	return json.Unmarshal(raw[1], &en.Message)
}
