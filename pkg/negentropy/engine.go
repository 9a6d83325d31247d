package negentropy

import (
	"bytes"

	"lol.mleku.dev/errorf"
)

// idListThreshold is the largest span, by item count on either side, that
// gets resolved by spelling out ids directly rather than splitting again.
// Below it the id list is cheaper than another fingerprint round trip;
// above it a wrong guess wastes more bandwidth than a split would have.
const idListThreshold = 32

// splitFanout is how many children a mismatched span is divided into
// before each gets its own fingerprint. Higher values converge in fewer
// round trips at the cost of a bigger message per round.
const splitFanout = 16

// DefaultMaxSyncEvents bounds how many ids a single session may report as
// have/need before it is aborted; keeps one session from retaining
// unbounded have/need slices against a pathological filter.
const DefaultMaxSyncEvents = 200_000

// Session holds one side's state for a single NEG-OPEN subscription: the
// sorted item set the session was opened against and the bound on how
// much it may resolve. A Session has no other mutable state - every call
// to Reconcile is a pure function of its incoming message and the fixed
// item set, which is what lets either side be the one to restart after a
// dropped connection without losing track of where it was.
type Session struct {
	items         Items
	maxSyncEvents int
}

// NewSession builds a Session over items, which must already satisfy the
// filter the client opened NEG-OPEN with. items is sorted in place.
func NewSession(items Items, maxSyncEvents int) *Session {
	if maxSyncEvents <= 0 {
		maxSyncEvents = DefaultMaxSyncEvents
	}
	items.Sort()
	return &Session{items: items, maxSyncEvents: maxSyncEvents}
}

// Open produces the initial message an Initiator sends: a single span
// covering the whole domain, fingerprinted or spelled out depending on
// how many items the session holds.
func (s *Session) Open() Message {
	return rangeMessage(s.items, zeroBound, infiniteBound)
}

// Reconcile is the step both an Initiator (after its first Open) and a
// Responder (on receiving a NEG-OPEN) run: it walks every span of
// incoming, compares the sender's claim for that span against this
// session's own items, and produces whatever this side has left to say.
// have is this session's items absent from the peer's claimed span
// (events the peer should fetch from here); need is the reverse (events
// this session is missing and should request). Reconcile returns
// exceeded=true, with a partial result, the moment the cumulative
// have+need count would cross the session's maxSyncEvents bound; the
// caller treats that as a fatal session error, not a continuable state.
func (s *Session) Reconcile(incoming Message) (
	outgoing Message, have, need [][IDSize]byte, exceeded bool, err error,
) {
	for _, rm := range incoming {
		sub := s.items.between(rm.Lower, rm.Upper)
		switch rm.Mode {
		case ModeIdList:
			theirs := newIDSet(rm.IDs)
			ours := newIDSet(idsOf(sub))
			var localHave, localNeed [][IDSize]byte
			for id := range ours {
				if _, ok := theirs[id]; !ok {
					localHave = append(localHave, id)
				}
			}
			for id := range theirs {
				if _, ok := ours[id]; !ok {
					localNeed = append(localNeed, id)
				}
			}
			have = append(have, localHave...)
			need = append(need, localNeed...)
			// Answer the peer's id list with our own once, so it can
			// compute its side of the diff too. Terminal stops this from
			// repeating: a reply to a reply is never itself answered.
			if !rm.Terminal && (len(localHave) > 0 || len(localNeed) > 0) {
				outgoing = append(
					outgoing, RangeMsg{
						Lower: rm.Lower, Upper: rm.Upper,
						Mode: ModeIdList, Terminal: true, IDs: idsOf(sub),
					},
				)
			}
		case ModeFingerprint:
			if bytes.Equal(fingerprintOf(sub), rm.Fingerprint) {
				continue
			}
			outgoing = append(outgoing, rangeMessage(sub, rm.Lower, rm.Upper)...)
		default:
			err = errorf.E("negentropy: unsupported range mode %d", rm.Mode)
			return
		}
		if len(have)+len(need) > s.maxSyncEvents {
			exceeded = true
			return
		}
	}
	return
}

// rangeMessage decides, for a single span, whether to report its items as
// one fingerprint or to split it into splitFanout child spans (each
// fingerprinted in turn), or - once small enough - to spell out the
// literal id list.
func rangeMessage(items Items, lower, upper Bound) Message {
	if len(items) <= idListThreshold {
		return Message{{Lower: lower, Upper: upper, Mode: ModeIdList, IDs: idsOf(items)}}
	}
	bounds := splitBounds(items, lower, upper, splitFanout)
	out := make(Message, 0, len(bounds))
	lo := lower
	for _, hi := range bounds {
		sub := items.between(lo, hi)
		out = append(out, RangeMsg{Lower: lo, Upper: hi, Mode: ModeFingerprint, Fingerprint: fingerprintOf(sub)})
		lo = hi
	}
	return out
}

// splitBounds divides items into up to fanout roughly-equal buckets by
// count and returns the exclusive upper bound of each bucket, the last of
// which is always upper. Bucket edges are taken from the items
// themselves (the bound right after the last item of a bucket) so that
// both peers, applying the same bound values to their own possibly
// different item sets, partition the domain identically.
func splitBounds(items Items, lower, upper Bound, fanout int) []Bound {
	n := len(items)
	if n == 0 {
		return []Bound{upper}
	}
	if fanout > n {
		fanout = n
	}
	bucketSize := (n + fanout - 1) / fanout
	bounds := make([]Bound, 0, fanout)
	for i := bucketSize; i < n; i += bucketSize {
		bounds = append(bounds, items[i])
	}
	bounds = append(bounds, upper)
	return bounds
}
