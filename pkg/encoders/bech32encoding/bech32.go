// Package bech32encoding implements the bare bech32 checksummed encoding
// (BIP-173) needed for NIP-19's npub/nsec/note identifiers. No third-party
// bech32 library appears anywhere in the retrieval pack, and the encoding
// is a fixed ~40-line checksum algorithm, so it is implemented directly
// against the standard library rather than pulled in as a dependency.
package bech32encoding

import (
	"fmt"
	"strings"

	"quadrelay.dev/pkg/encoders/hex"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func polymod(values []byte) uint32 {
	gen := []uint32{
		0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3,
	}
	chk := uint32(1)
	for _, v := range values {
		b := byte(chk >> 25)
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		out = append(out, byte(c)>>5)
	}
	out = append(out, 0)
	for _, c := range hrp {
		out = append(out, byte(c)&31)
	}
	return out
}

func createChecksum(hrp string, data []byte) []byte {
	values := append(hrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ 1
	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return out
}

func verifyChecksum(hrp string, data []byte) bool {
	return polymod(append(hrpExpand(hrp), data...)) == 1
}

// convertBits regroups a slice of fromBits-wide values into toBits-wide
// values, used to pack 8-bit bytes into 5-bit bech32 words and back.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	var out []byte
	maxv := uint32(1)<<toBits - 1
	for _, b := range data {
		if uint32(b)>>fromBits != 0 {
			return nil, fmt.Errorf("bech32encoding: invalid data range")
		}
		acc = acc<<fromBits | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, fmt.Errorf("bech32encoding: invalid padding")
	}
	return out, nil
}

// Encode renders hrp and data (arbitrary bytes, prior to 5-bit regrouping)
// as a bech32 string.
func Encode(hrp string, data []byte) (string, error) {
	five, err := convertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	sum := createChecksum(hrp, five)
	combined := append(five, sum...)
	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, b := range combined {
		sb.WriteByte(charset[b])
	}
	return sb.String(), nil
}

// Decode parses a bech32 string, returning its human-readable part and
// byte payload (after regrouping back to 8-bit bytes).
func Decode(s string) (hrp string, data []byte, err error) {
	s = strings.ToLower(s)
	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) {
		err = fmt.Errorf("bech32encoding: invalid separator position in %q", s)
		return
	}
	hrp = s[:pos]
	five := make([]byte, len(s)-pos-1)
	for i, c := range s[pos+1:] {
		idx := strings.IndexRune(charset, c)
		if idx < 0 {
			err = fmt.Errorf("bech32encoding: invalid character %q", c)
			return
		}
		five[i] = byte(idx)
	}
	if !verifyChecksum(hrp, five) {
		err = fmt.Errorf("bech32encoding: invalid checksum")
		return
	}
	data, err = convertBits(five[:len(five)-6], 5, 8, false)
	return
}

// BinToNpub renders a 32-byte pubkey as its bech32 "npub1..." identifier.
func BinToNpub(pub []byte) (npub string, err error) {
	return Encode("npub", pub)
}

// NpubOrHexToPublicKeyBinary accepts either a bech32 "npub1..." identifier
// or a plain 64-character hex pubkey and returns the 32 raw bytes.
func NpubOrHexToPublicKeyBinary(s string) (pub []byte, err error) {
	if strings.HasPrefix(s, "npub1") {
		var hrp string
		if hrp, pub, err = Decode(s); err != nil {
			return
		}
		if hrp != "npub" {
			err = fmt.Errorf("bech32encoding: expected hrp npub, got %s", hrp)
			return
		}
		if len(pub) != 32 {
			err = fmt.Errorf("bech32encoding: expected 32 byte pubkey, got %d", len(pub))
		}
		return
	}
	return hex.Dec(s)
}
