package negentropy

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// FingerprintSize is the width of a range's wire fingerprint.
const FingerprintSize = 16

// digestWidth is the width of a single item's contribution to an
// Accumulator; wider than FingerprintSize so finalisation (which mixes in
// the item count) still has enough entropy to draw from.
const digestWidth = 32

// itemDigest derives a domain-separated, fixed-width pseudorandom value
// for a single item. Four independently-seeded xxhash outputs fill the 32
// bytes so that additive combination across a range behaves like a
// one-time-pad sum rather than repeating a short pattern.
func itemDigest(it Item) (out [digestWidth]byte) {
	var buf [8 + IDSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(it.Timestamp))
	copy(buf[8:], it.ID[:])
	for i, salt := range [4][]byte{
		[]byte("negentropy-item-a"), []byte("negentropy-item-b"),
		[]byte("negentropy-item-c"), []byte("negentropy-item-d"),
	} {
		h := xxhash.New()
		h.Write(salt)
		h.Write(buf[:])
		binary.BigEndian.PutUint64(out[i*8:i*8+8], h.Sum64())
	}
	return
}

// Accumulator combines item digests byte-wise modulo 256. Addition modulo
// 256 is associative and commutative, so the accumulator for the union of
// two disjoint ranges equals the byte-wise sum of their accumulators: a
// parent range's state can be built directly from its children's without
// revisiting their items, which is what lets Fingerprint comparisons fold
// over an entire subtree in one pass.
type Accumulator struct {
	sum   [digestWidth]byte
	count int
}

// Add folds a single item into the accumulator.
func (a *Accumulator) Add(it Item) {
	d := itemDigest(it)
	for i := range a.sum {
		a.sum[i] += d[i]
	}
	a.count++
}

// AddRange folds every item in items into the accumulator.
func (a *Accumulator) AddRange(items Items) {
	for _, it := range items {
		a.Add(it)
	}
}

// Merge folds another accumulator's state into a, as if every item it had
// seen had been added to a directly.
func (a *Accumulator) Merge(o *Accumulator) {
	for i := range a.sum {
		a.sum[i] += o.sum[i]
	}
	a.count += o.count
}

// Fingerprint renders the accumulator's current state as a fixed-length
// digest for the wire. The item count is mixed in so that two different
// sets whose digest sums happen to collide byte-wise are still very
// unlikely to collide once their sizes differ.
func (a *Accumulator) Fingerprint() []byte {
	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], uint64(a.count))
	out := make([]byte, FingerprintSize)
	h1 := xxhash.New()
	h1.Write([]byte("negentropy-fp1"))
	h1.Write(a.sum[:])
	h1.Write(countBuf[:])
	binary.BigEndian.PutUint64(out[0:8], h1.Sum64())
	h2 := xxhash.New()
	h2.Write([]byte("negentropy-fp2"))
	h2.Write(a.sum[:])
	h2.Write(countBuf[:])
	binary.BigEndian.PutUint64(out[8:16], h2.Sum64())
	return out
}

// fingerprintOf is a convenience for the common case of fingerprinting a
// plain slice of items without keeping the accumulator around.
func fingerprintOf(items Items) []byte {
	var acc Accumulator
	acc.AddRange(items)
	return acc.Fingerprint()
}
