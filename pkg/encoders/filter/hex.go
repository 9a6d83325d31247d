package filter

import "quadrelay.dev/pkg/encoders/hex"

// Hexes hex-encodes each of bs, producing the []string form used by the
// IDs and Authors fields.
func Hexes(bs ...[]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = hex.Enc(b)
	}
	return out
}
