// Package p256k wraps the secp256k1 schnorr signature scheme (BIP-340) used
// to sign and verify nostr events, via the decred implementation.
package p256k

import (
	"crypto/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"lol.mleku.dev/errorf"
)

// Signer holds a keypair (or just a public key, for verify-only use) and
// performs schnorr sign/verify operations against it.
type Signer struct {
	sec *secp256k1.PrivateKey
	pub *secp256k1.PublicKey
}

// Generate creates a new random keypair.
func (s *Signer) Generate() (err error) {
	sec, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return err
	}
	s.sec = sec
	s.pub = sec.PubKey()
	return
}

// InitSec loads a 32-byte secret key and derives its public key.
func (s *Signer) InitSec(skb []byte) (err error) {
	if len(skb) != 32 {
		return errorf.E("secret key must be 32 bytes, got %d", len(skb))
	}
	s.sec = secp256k1.PrivKeyFromBytes(skb)
	s.pub = s.sec.PubKey()
	return
}

// InitPub loads a 32-byte x-only public key, for verify-only use.
func (s *Signer) InitPub(pkb []byte) (err error) {
	if len(pkb) != 32 {
		return errorf.E("public key must be 32 bytes, got %d", len(pkb))
	}
	pub, err := schnorr.ParsePubKey(pkb)
	if err != nil {
		return err
	}
	s.pub = pub
	return
}

// Sec returns the 32-byte secret key, or nil if this signer has none.
func (s *Signer) Sec() []byte {
	if s.sec == nil {
		return nil
	}
	b := s.sec.Serialize()
	return b[:]
}

// Pub returns the 32-byte x-only public key.
func (s *Signer) Pub() []byte {
	if s.pub == nil {
		return nil
	}
	return schnorr.SerializePubKey(s.pub)
}

// Sign produces a 64-byte schnorr signature over a 32-byte message digest.
func (s *Signer) Sign(digest []byte) (sig []byte, err error) {
	if s.sec == nil {
		return nil, errorf.E("signer has no secret key")
	}
	if len(digest) != 32 {
		return nil, errorf.E("digest must be 32 bytes, got %d", len(digest))
	}
	sg, err := schnorr.Sign(s.sec, digest, schnorr.SignRand(rand.Reader))
	if err != nil {
		return nil, err
	}
	return sg.Serialize(), nil
}

// Verify checks a 64-byte schnorr signature over a 32-byte message digest.
func (s *Signer) Verify(digest, sig []byte) (ok bool, err error) {
	if s.pub == nil {
		return false, errorf.E("signer has no public key")
	}
	if len(digest) != 32 {
		return false, errorf.E("digest must be 32 bytes, got %d", len(digest))
	}
	sg, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, err
	}
	return sg.Verify(digest, s.pub), nil
}
