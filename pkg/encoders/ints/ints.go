// Package ints parses the decimal ASCII numbers nostr embeds as tag
// values (expiration timestamps, k-tag kind numbers) out of raw bytes.
package ints

import (
	"strconv"

	"lol.mleku.dev/errorf"
)

// T holds a parsed unsigned integer.
type T struct{ N uint64 }

// New returns a T preset to n, useful as a destination for Unmarshal.
func New(n uint64) *T { return &T{N: n} }

// Unmarshal reads the leading run of ASCII digits from b, sets N, and
// returns whatever follows them.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == 0 {
		err = errorf.E("no digits found")
		return
	}
	var v uint64
	if v, err = strconv.ParseUint(string(b[:i]), 10, 64); err != nil {
		return
	}
	t.N = v
	rem = b[i:]
	return
}

// Uint16 returns N truncated to 16 bits.
func (t *T) Uint16() uint16 { return uint16(t.N) }
