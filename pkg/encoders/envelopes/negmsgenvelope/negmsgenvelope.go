// Package negmsgenvelope implements the NEG-MSG message, carried in both
// directions of a range-reconciliation session: each side's reply to the
// other's reconciliation message, hex-encoded.
package negmsgenvelope

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
)

// L is the label identifying this envelope type on the wire.
const L = "NEG-MSG"

// T is a NEG-MSG envelope: ["NEG-MSG", <subscription id>, <message, hex>].
type T struct {
	Subscription string
	Message      []byte
}

// New returns an empty NEG-MSG envelope.
func New() *T { return new(T) }

// NewFrom builds a NEG-MSG envelope for the given subscription id and raw
// reconciliation message.
func NewFrom(id string, msg []byte) *T {
	return &T{Subscription: id, Message: msg}
}

// Label returns "NEG-MSG".
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
	msg, err := envelopes.Field(hex.EncodeToString(en.Message))
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, sub, msg)
}

// UnmarshalJSON parses a NEG-MSG envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("negmsgenvelope: expected [label, id, message], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.Subscription); err != nil {
		return err
	}
	var msgHex string
	if err := json.Unmarshal(raw[2], &msgHex); err != nil {
		return err
	}
	msg, err := hex.DecodeString(msgHex)
	if err != nil {
		return fmt.Errorf("negmsgenvelope: invalid message hex: %w", err)
	}
	en.Message = msg
	return nil
}
