package database

import "lol.mleku.dev/chk"

// NextQuadID hands out the next value in the event sequence, advancing
// lastQuadID, the watermark REQ scans snapshot for the scan-to-live
// hand-off. Persisted events get theirs from SaveEventTxn; ephemeral
// events, which are never stored, still call this directly so the whole
// event stream — stored or not — shares one monotonic ordering.
func (d *D) NextQuadID() (quadID uint64, err error) {
	if quadID, err = d.seq.Next(); chk.E(err) {
		return
	}
	d.bumpLastQuadID(quadID)
	return
}

// LastQuadID reports the highest quadID handed out so far. A REQ's
// historical scan reads this before issuing its first query: every event
// committed at or before this value is covered by the scan, so the live
// subscription registered at EOSE only needs delivery for quadIDs above it.
func (d *D) LastQuadID() uint64 { return d.lastQuadID.Load() }

func (d *D) bumpLastQuadID(v uint64) {
	for {
		cur := d.lastQuadID.Load()
		if v <= cur {
			return
		}
		if d.lastQuadID.CompareAndSwap(cur, v) {
			return
		}
	}
}
