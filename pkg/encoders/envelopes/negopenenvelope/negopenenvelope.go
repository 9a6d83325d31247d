// Package negopenenvelope implements the client-to-relay NEG-OPEN message,
// which starts a range-reconciliation session scoped to a filter: the
// client's initial reconciliation message is carried as a hex string.
package negopenenvelope

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
	"quadrelay.dev/pkg/encoders/filter"
)

// L is the label identifying this envelope type on the wire.
const L = "NEG-OPEN"

// T is a NEG-OPEN envelope:
// ["NEG-OPEN", <subscription id>, <filter>, <initial message, hex>].
type T struct {
	Subscription string
	Filter       *filter.F
	Message      []byte
}

// New returns an empty NEG-OPEN envelope.
func New() *T { return new(T) }

// NewFrom builds a NEG-OPEN envelope for the given subscription id, filter
// and raw initial reconciliation message.
func NewFrom(id string, f *filter.F, msg []byte) *T {
	return &T{Subscription: id, Filter: f, Message: msg}
}

// Label returns "NEG-OPEN".
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
	ff, err := envelopes.Field(en.Filter)
	if err != nil {
		return nil, err
	}
	msg, err := envelopes.Field(hex.EncodeToString(en.Message))
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, sub, ff, msg)
}

// UnmarshalJSON parses a NEG-OPEN envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("negopenenvelope: expected [label, id, filter, message], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.Subscription); err != nil {
		return err
	}
	en.Filter = filter.New()
	if err := json.Unmarshal(raw[2], en.Filter); err != nil {
		return err
	}
	var msgHex string
	if err := json.Unmarshal(raw[3], &msgHex); err != nil {
		return err
	}
	msg, err := hex.DecodeString(msgHex)
	if err != nil {
		return fmt.Errorf("negopenenvelope: invalid message hex: %w", err)
	}
	en.Message = msg
	return nil
}
