// Package hex wraps the standard library hex codec with the lower-case,
// no-prefix conventions nostr's wire format expects for ids, pubkeys and
// signatures.
package hex

import "encoding/hex"

// Enc encodes b as a lower-case hex string.
func Enc(b []byte) string { return hex.EncodeToString(b) }

// Dec decodes a hex string into bytes.
func Dec(s string) ([]byte, error) { return hex.DecodeString(s) }

// MustDec decodes a hex string into bytes, panicking on malformed input; only
// safe for constants and tests.
func MustDec(s string) []byte {
	b, err := Dec(s)
	if err != nil {
		panic(err)
	}
	return b
}
