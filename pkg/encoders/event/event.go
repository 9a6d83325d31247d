// Package event implements the nostr event: the single signed, addressable
// unit of data the relay stores, indexes, matches against filters and
// streams to subscribers.
package event

import (
	"encoding/json"

	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/tag"
)

// E is a nostr event as defined by NIP-01.
type E struct {
	// ID is the sha256 hash of the event's canonical encoding.
	ID []byte
	// Pubkey is the 32-byte schnorr public key of the event's author.
	Pubkey []byte
	// CreatedAt is the author-supplied unix-second timestamp.
	CreatedAt int64
	// Kind is the event type; see package kind.
	Kind uint16
	// Tags carries the event's metadata tags.
	Tags tag.S
	// Content is the event body; its interpretation depends on Kind.
	Content string
	// Sig is the 64-byte schnorr signature over ID.
	Sig []byte
}

// New returns a zero-value event ready to be populated.
func New() *E { return &E{} }

// wireEvent mirrors E's JSON shape; binary fields are hex strings on the
// wire, matching NIP-01.
type wireEvent struct {
	ID        string   `json:"id"`
	Pubkey    string   `json:"pubkey"`
	CreatedAt int64    `json:"created_at"`
	Kind      uint16   `json:"kind"`
	Tags      tag.S    `json:"tags"`
	Content   string   `json:"content"`
	Sig       string   `json:"sig"`
}

// MarshalJSON renders the event in the standard NIP-01 wire shape.
func (ev *E) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:        hex.Enc(ev.ID),
		Pubkey:    hex.Enc(ev.Pubkey),
		CreatedAt: ev.CreatedAt,
		Kind:      ev.Kind,
		Tags:      ev.Tags,
		Content:   ev.Content,
		Sig:       hex.Enc(ev.Sig),
	}
	if w.Tags == nil {
		w.Tags = tag.S{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses an event from its NIP-01 wire shape.
func (ev *E) UnmarshalJSON(b []byte) (err error) {
	var w wireEvent
	if err = json.Unmarshal(b, &w); err != nil {
		return
	}
	if ev.ID, err = hex.Dec(w.ID); err != nil {
		return
	}
	if ev.Pubkey, err = hex.Dec(w.Pubkey); err != nil {
		return
	}
	if ev.Sig, err = hex.Dec(w.Sig); err != nil {
		return
	}
	ev.CreatedAt = w.CreatedAt
	ev.Kind = w.Kind
	ev.Tags = w.Tags
	ev.Content = w.Content
	return
}

// S is a list of events that sorts newest-first.
type S []*E

func (s S) Len() int           { return len(s) }
func (s S) Less(i, j int) bool { return s[i].CreatedAt > s[j].CreatedAt }
func (s S) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// C is a channel carrying events, used to stream query results and live
// matches to a connection's writer goroutine.
type C chan *E
