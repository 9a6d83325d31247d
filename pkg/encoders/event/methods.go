package event

import (
	"crypto/sha256"

	"quadrelay.dev/pkg/crypto/p256k"
	"quadrelay.dev/pkg/encoders/tag"
)

// Free releases any resources held by the event. E carries none, so this
// is a no-op kept for call sites written against pooled-event backends.
func (ev *E) Free() {}

// Clone returns a deep copy of ev.
func (ev *E) Clone() *E {
	if ev == nil {
		return nil
	}
	c := &E{
		CreatedAt: ev.CreatedAt,
		Kind:      ev.Kind,
		Content:   ev.Content,
	}
	c.ID = append([]byte(nil), ev.ID...)
	c.Pubkey = append([]byte(nil), ev.Pubkey...)
	c.Sig = append([]byte(nil), ev.Sig...)
	c.Tags = make(tag.S, len(ev.Tags))
	for i, t := range ev.Tags {
		c.Tags[i] = t.Clone()
	}
	return c
}

// Sign computes the event's id and signature using signer, setting both ID
// and Sig on ev.
func (ev *E) Sign(signer *p256k.Signer) (err error) {
	var id []byte
	if id, err = ev.GetIDBytes(); err != nil {
		return
	}
	ev.ID = id
	ev.Pubkey = signer.Pub()
	var sig []byte
	if sig, err = signer.Sign(id); err != nil {
		return
	}
	ev.Sig = sig
	return
}

// Verify checks that ev's id matches its canonical encoding and that Sig
// is a valid signature over it by Pubkey.
func (ev *E) Verify() (ok bool, err error) {
	var id []byte
	if id, err = ev.GetIDBytes(); err != nil {
		return
	}
	if len(ev.ID) != sha256.Size || string(id) != string(ev.ID) {
		return false, nil
	}
	var signer p256k.Signer
	if err = signer.InitPub(ev.Pubkey); err != nil {
		return
	}
	return signer.Verify(id, ev.Sig)
}

// Serialize renders the event as its NIP-01 JSON form, used in log lines
// and debug output.
func (ev *E) Serialize() string {
	b, err := ev.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}
