// Package countenvelope implements the NIP-45 COUNT request/response pair:
// a client asks how many stored events match a filter group without
// fetching them, and the relay replies with a count (optionally marked
// approximate).
package countenvelope

import (
	"encoding/json"
	"fmt"
	"io"

	"quadrelay.dev/pkg/encoders/envelopes"
	"quadrelay.dev/pkg/encoders/filter"
)

// L is the label identifying this envelope type on the wire.
const L = "COUNT"

// Request is a COUNT envelope sent by a client:
// ["COUNT", <subscription id>, <filter>, <filter>...].
type Request struct {
	Subscription string
	Filters      filter.S
}

// New returns an empty Request.
func New() *Request { return new(Request) }

// NewRequest builds a Request from a subscription id and filter group.
func NewRequest(id string, filters filter.S) *Request {
	return &Request{Subscription: id, Filters: filters}
}

// Label returns "COUNT".
func (en *Request) Label() string { return L }

// Write serializes the request to w.
func (en *Request) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the request as its wire array.
func (en *Request) MarshalJSON() ([]byte, error) {
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

// UnmarshalJSON parses a COUNT request's wire array.
func (en *Request) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("countenvelope: expected at least [label, subscription], got %d elements", len(raw))
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

// responseBody is the object carried as COUNT's response payload.
type responseBody struct {
	Count       int  `json:"count"`
	Approximate bool `json:"approximate,omitempty"`
}

// Response is a COUNT reply: ["COUNT", <subscription id>, {"count":N}].
type Response struct {
	Subscription string
	Count        int
	Approximate  bool
}

// NewResponse returns an empty Response.
func NewResponse() *Response { return new(Response) }

// NewResponseFrom builds a Response, optionally flagged approximate.
func NewResponseFrom(id string, count int, approximate ...bool) (*Response, error) {
	if len(id) == 0 || len(id) > 64 {
		return nil, fmt.Errorf("countenvelope: subscription id must be 1-64 bytes")
	}
	var a bool
	if len(approximate) > 0 {
		a = approximate[0]
	}
	return &Response{Subscription: id, Count: count, Approximate: a}, nil
}

// Label returns "COUNT".
func (en *Response) Label() string { return L }

// Write serializes the response to w.
func (en *Response) Write(w io.Writer) error {
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalJSON renders the response as its wire array.
func (en *Response) MarshalJSON() ([]byte, error) {
	sub, err := envelopes.Field(en.Subscription)
	if err != nil {
		return nil, err
	}
	body, err := envelopes.Field(responseBody{Count: en.Count, Approximate: en.Approximate})
	if err != nil {
		return nil, err
	}
	return envelopes.Array(L, sub, body)
}

// UnmarshalJSON parses a COUNT response's wire array.
func (en *Response) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("countenvelope: expected [label, subscription, body], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[1], &en.Subscription); err != nil {
		return err
	}
	var body responseBody
	if err := json.Unmarshal(raw[2], &body); err != nil {
		return err
	}
	en.Count = body.Count
	en.Approximate = body.Approximate
	return nil
}
