package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"

	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/tag"
)

// ToCanonical returns the exact byte sequence nostr hashes to derive an
// event's ID: a compact JSON array, HTML-unescaped, with hex-encoded
// pubkey and raw tags/content:
// [0, pubkey, created_at, kind, tags, content].
func (ev *E) ToCanonical() ([]byte, error) {
	tags := ev.Tags
	if tags == nil {
		tags = tag.S{}
	}
	arr := []any{
		0,
		hex.Enc(ev.Pubkey),
		ev.CreatedAt,
		ev.Kind,
		tags,
		ev.Content,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; the hash preimage
	// must not include it.
	b := buf.Bytes()
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return b, nil
}

// GetIDBytes returns the sha256 hash of the event's canonical encoding.
func (ev *E) GetIDBytes() ([]byte, error) {
	b, err := ev.ToCanonical()
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(b)
	return h[:], nil
}
