// Package keys provides small helpers for generating and deriving nostr
// keypairs, built on top of p256k's schnorr signer.
package keys

import (
	"quadrelay.dev/pkg/crypto/p256k"
	"quadrelay.dev/pkg/encoders/hex"
)

// GenerateSecretKey returns a fresh random 32-byte secret key.
func GenerateSecretKey() (sec []byte, err error) {
	var s p256k.Signer
	if err = s.Generate(); err != nil {
		return
	}
	sec = s.Sec()
	return
}

// SecretBytesToPubKeyHex derives the hex-encoded x-only public key for a
// 32-byte secret key.
func SecretBytesToPubKeyHex(skb []byte) (pub string, err error) {
	var s p256k.Signer
	if err = s.InitSec(skb); err != nil {
		return
	}
	pub = hex.Enc(s.Pub())
	return
}
