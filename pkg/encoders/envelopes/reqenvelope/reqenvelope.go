// Package reqenvelope implements the client-to-relay REQ message: a
// subscription identifier paired with one or more filters (interpreted as
// a disjunction - an event matching any one of them satisfies the
// subscription).
package reqenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
	"quadrelay.dev/pkg/encoders/filter"
)

// L is the label identifying this envelope type on the wire.
const L = "REQ"

// T is a REQ envelope: ["REQ", <subscription id>, <filter>, <filter>...].
type T struct {
	Subscription string
	Filters      filter.S
}

// New returns an empty REQ envelope.
func New() *T { return new(T) }

// NewFrom builds a REQ envelope from a subscription id and filter group.
func NewFrom(id string, ff filter.S) *T {
	return &T{Subscription: id, Filters: ff}
}

// Label returns "REQ".
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
	fields := make([]json.RawMessage, 0, len(en.Filters)+1)
	sub, err := envelopes.Field(en.Subscription)
	if err != nil {
		return nil, err
	}
	fields = append(fields, sub)
	for _, f := range en.Filters {
		ff, err := envelopes.Field(f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ff)
	}
	return envelopes.Array(L, fields...)
}

// UnmarshalJSON parses a REQ envelope's wire array.
func (en *T) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("reqenvelope: expected at least [label, subscription], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.Subscription); err != nil {
		return err
	}
	en.Filters = en.Filters[:0]
	for _, r := range raw[2:] {
		f := filter.New()
		if err := json.Unmarshal(r, f); err != nil {
			return err
		}
		en.Filters = append(en.Filters, f)
	}
	return nil
}
