// Package negentropy implements range-based set reconciliation between a
// relay's event set and a client's: instead of a client re-requesting a
// filter's full result set to find what it is missing, both sides exchange
// a small tree of range fingerprints and only the ranges that disagree are
// ever spelled out as literal id lists.
package negentropy

import (
	"bytes"
	"sort"
)

// IDSize is the width of an event id in a reconciliation item.
const IDSize = 32

// Item is one event's position in a reconciliation set: the pair the set
// is sorted and range-bounded by. Two items with equal Timestamp are
// ordered by ID, which also gives every distinct bound a total order.
type Item struct {
	Timestamp int64
	ID        [IDSize]byte
}

// Bound is a point in the (timestamp, id) space marking the edge of a
// range; it reuses Item's shape and ordering since the protocol's bounds
// are themselves points that may or may not correspond to a stored item.
type Bound = Item

// zeroBound and infiniteBound delimit the full domain a session can cover.
var (
	zeroBound     = Bound{Timestamp: 0}
	infiniteBound = Bound{Timestamp: 1<<63 - 1, ID: maxID}
)

var maxID = func() (id [IDSize]byte) {
	for i := range id {
		id[i] = 0xff
	}
	return
}()

// compareBound orders two points the same way Items is sorted.
func compareBound(a, b Bound) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

// Items is a set of Item, always kept sorted ascending by (Timestamp, ID).
type Items []Item

func (it Items) Len() int      { return len(it) }
func (it Items) Swap(i, j int) { it[i], it[j] = it[j], it[i] }
func (it Items) Less(i, j int) bool {
	return compareBound(it[i], it[j]) < 0
}

// Sort orders it ascending by (Timestamp, ID), as the reconciliation
// algorithm requires.
func (it Items) Sort() { sort.Sort(it) }

// between returns the contiguous slice of it covering [lower, upper), i.e.
// everything at or after lower and strictly before upper. it must already
// be sorted.
func (it Items) between(lower, upper Bound) Items {
	lo := sort.Search(len(it), func(i int) bool { return compareBound(it[i], lower) >= 0 })
	hi := sort.Search(len(it), func(i int) bool { return compareBound(it[i], upper) >= 0 })
	if hi < lo {
		hi = lo
	}
	return it[lo:hi]
}

// idSet indexes a slice of ids for fast membership tests.
type idSet map[[IDSize]byte]struct{}

func newIDSet(ids [][IDSize]byte) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func idsOf(items Items) [][IDSize]byte {
	out := make([][IDSize]byte, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
