// Package sha256 re-exports the standard library's sha256 under the
// project's crypto namespace, alongside p256k and keys.
package sha256

import "crypto/sha256"

// Sum256 returns the SHA-256 checksum of data.
func Sum256(data []byte) [sha256.Size]byte { return sha256.Sum256(data) }
