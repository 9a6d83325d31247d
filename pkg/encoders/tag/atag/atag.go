// Package atag implements the "a" tag coordinate used to address a
// parameterized-replaceable or replaceable event: "<kind>:<pubkey-hex>:<d-tag>".
package atag

import (
	"fmt"
	"strconv"
	"strings"

	"quadrelay.dev/pkg/encoders/hex"
)

// T is a parsed "a" tag coordinate.
type T struct {
	Kind   uint16
	Pubkey []byte
	DTag   string
}

// Marshal appends the tag's string form to dst and returns the result.
func (t *T) Marshal(dst []byte) []byte {
	s := fmt.Sprintf("%d:%s:%s", t.Kind, hex.Enc(t.Pubkey), t.DTag)
	return append(dst, s...)
}

// Unmarshal parses b as an "a" tag coordinate, returning any trailing bytes.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	s := string(b)
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		err = fmt.Errorf("invalid a tag coordinate: %q", s)
		return
	}
	var k uint64
	if k, err = strconv.ParseUint(parts[0], 10, 16); err != nil {
		return
	}
	t.Kind = uint16(k)
	if t.Pubkey, err = hex.Dec(parts[1]); err != nil {
		return
	}
	if len(parts) == 3 {
		t.DTag = parts[2]
	}
	return
}

// String renders the coordinate in its wire form.
func (t *T) String() string {
	return string(t.Marshal(nil))
}
