// Package authenvelope implements the NIP-42 "AUTH" message: a relay-sent
// challenge string and the client's signed kind 22242 event in response.
package authenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/hex"
)

// L is the label identifying this envelope type on the wire.
const L = "AUTH"

// Challenge is a relay-to-client envelope: ["AUTH", <challenge string>].
type Challenge struct {
	Challenge string
}

// NewChallengeWith builds a Challenge envelope carrying challenge.
func NewChallengeWith(challenge []byte) *Challenge {
	return &Challenge{Challenge: string(challenge)}
}

// Label returns "AUTH".
func (en *Challenge) Label() string { return L }

// Write serializes the envelope to w.
func (en *Challenge) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the envelope as its wire array.
func (en *Challenge) MarshalJSON() ([]byte, error) {
	c, err := envelopes.Field(en.Challenge)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, c)
}

// UnmarshalJSON parses a Challenge envelope's wire array.
func (en *Challenge) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("authenvelope: expected [label, challenge], got %d elements", len(raw))
	}
	return json.Unmarshal(raw[1], &en.Challenge)
}

// Response is a client-to-relay envelope: ["AUTH", <event>].
type Response struct {
	Event *event.E
}

// NewResponse returns an empty Response.
func NewResponse() *Response { return new(Response) }

// Label returns "AUTH".
func (en *Response) Label() string { return L }

// Id returns the hex-encoded id of the carried event, satisfying
// eventenvelope.I so an OK/CLOSED handler can report against an auth
// response the same way it does for an EVENT submission.
func (en *Response) Id() string {
	if en.Event == nil {
		return ""
	}
	return hex.Enc(en.Event.ID)
}

// Write serializes the envelope to w.
func (en *Response) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the envelope as its wire array.
func (en *Response) MarshalJSON() ([]byte, error) {
	ev, err := envelopes.Field(en.Event)
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, ev)
}

// UnmarshalJSON parses a Response envelope's wire array.
func (en *Response) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("authenvelope: expected [label, event], got %d elements", len(raw))
	}
	ev := event.New()
	if err := json.Unmarshal(raw[1], ev); err != nil {
		return err
	}
	en.Event = ev
	return nil
}
