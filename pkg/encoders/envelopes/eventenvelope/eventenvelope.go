// Package eventenvelope implements the "EVENT" message, used by a client
// to submit an event for publication and by the relay to deliver a
// matching event to a subscription.
package eventenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/hex"
)

// L is the label identifying this envelope type on the wire.
const L = "EVENT"

// I is satisfied by both Submission and Result, letting an OK/CLOSED
// response handler reference the carried event's id without caring which
// direction the envelope travels.
type I interface {
	envelopes.Envelope
	Id() string
}

// Submission is a client-to-relay publish envelope: ["EVENT", <event>].
type Submission struct {
	Event *event.E
}

// NewSubmission returns an empty Submission.
func NewSubmission() *Submission { return new(Submission) }

// NewSubmissionWith wraps ev in a Submission envelope.
func NewSubmissionWith(ev *event.E) *Submission { return &Submission{Event: ev} }

// Label returns "EVENT".
func (en *Submission) Label() string { return L }

// Id returns the hex-encoded id of the carried event, or "" if none is set.
func (en *Submission) Id() string {
	if en.Event == nil {
		return ""
	}
	return hex.Enc(en.Event.ID)
}

// Write serializes the envelope to w.
func (en *Submission) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the envelope as its wire array.
func (en *Submission) MarshalJSON() ([]byte, error) {
	ev, err := envelopes.Field(en.Event)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, ev)
}

// UnmarshalJSON parses a Submission's wire array.
func (en *Submission) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("eventenvelope: expected [label, event], got %d elements", len(raw))
	}
	ev := event.New()
	if err := json.Unmarshal(raw[1], ev); err != nil {
		return err
	}
	en.Event = ev
	return nil
}

// Result is a relay-to-client delivery envelope:
// ["EVENT", <subscription id>, <event>].
type Result struct {
	Subscription string
	Event        *event.E
}

// NewResult returns an empty Result.
func NewResult() *Result { return new(Result) }

// NewResultWith builds a Result for the given subscription and event. It
// rejects subscription ids outside the 1-64 byte range NIP-01 requires.
func NewResultWith(sub string, ev *event.E) (*Result, error) {
	if len(sub) == 0 || len(sub) > 64 {
		return nil, fmt.Errorf("eventenvelope: subscription id must be 1-64 bytes")
	}
	return &Result{Subscription: sub, Event: ev}, nil
}

// Label returns "EVENT".
func (en *Result) Label() string { return L }

// Id returns the hex-encoded id of the carried event, or "" if none is set.
func (en *Result) Id() string {
	if en.Event == nil {
		return ""
	}
	return hex.Enc(en.Event.ID)
}

// Write serializes the envelope to w.
func (en *Result) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the envelope as its wire array.
func (en *Result) MarshalJSON() ([]byte, error) {
	sub, err := envelopes.Field(en.Subscription)
	if err != nil {
		return nil, err
	}
	ev, err := envelopes.Field(en.Event)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, sub, ev)
}

// UnmarshalJSON parses a Result's wire array.
func (en *Result) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("eventenvelope: expected [label, subscription, event], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.Subscription); err != nil {
		return err
	}
	ev := event.New()
	if err := json.Unmarshal(raw[2], ev); err != nil {
		return err
	}
	en.Event = ev
	return nil
}
