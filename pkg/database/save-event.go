package database

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/errorf"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/database/indexes"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
)

// supersedes reports whether ev should replace oldEv under the
// replaceable-event tie-break rule: newer created_at wins, and on an
// exact tie the event with the numerically greater id wins.
func supersedes(ev, oldEv *event.E) bool {
	if ev.CreatedAt != oldEv.CreatedAt {
		return ev.CreatedAt > oldEv.CreatedAt
	}
	return bytes.Compare(ev.ID, oldEv.ID) > 0
}

// GetSerialsFromFilter narrows candidate serials using the single most
// selective index available (see GetIndexesFromFilter), then re-verifies
// each candidate event against every constraint in f before returning it.
// The re-check makes the narrowing step safe to simplify: it only needs to
// avoid false negatives, never false positives.
func (d *D) GetSerialsFromFilter(f *filter.F) (
	sers types.Uint40s, err error,
) {
	if err = d.View(
		func(txn *badger.Txn) (err error) {
			sers, err = d.getSerialsFromFilterTxn(txn, f)
			return
		},
	); chk.E(err) {
		return
	}
	return
}

// getSerialsFromFilterTxn is GetSerialsFromFilter against a caller-supplied
// transaction.
func (d *D) getSerialsFromFilterTxn(txn *badger.Txn, f *filter.F) (
	sers types.Uint40s, err error,
) {
	var idxs []Range
	if idxs, err = GetIndexesFromFilter(f); chk.E(err) {
		return
	}
	var candidates types.Uint40s
	for _, idx := range idxs {
		var s types.Uint40s
		if s, err = d.getSerialsByRangeTxn(txn, idx); chk.E(err) {
			continue
		}
		candidates = append(candidates, s...)
	}
	for _, s := range candidates {
		var ev *event.E
		if ev, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) || ev == nil {
			err = nil
			continue
		}
		if f.Matches(ev) {
			sers = append(sers, s)
		}
	}
	return
}

// SaveEvent saves an event to the database, generating all the necessary
// indexes, inside its own single transaction. Batched writers should use
// SaveEventTxn against a transaction they already hold open, so a
// replaceable event's delete-old and insert-new land atomically together
// with the rest of the batch.
func (d *D) SaveEvent(c context.Context, ev *event.E) (kc, vc int, err error) {
	err = d.Update(
		func(txn *badger.Txn) (err error) {
			kc, vc, _, err = d.SaveEventTxn(txn, ev)
			return
		},
	)
	return
}

// SaveEventTxn is SaveEvent against a caller-supplied transaction. It is
// the install operation the writer runs, once per event, inside the single
// transaction it opens for a whole drained batch (see pkg/writer).
//
// An event whose id is already stored is reported via a "duplicate:"
// prefixed error rather than "blocked:" — resubmission of an already-known
// event is not a policy rejection, it is the NIP-01 duplicate outcome.
func (d *D) SaveEventTxn(txn *badger.Txn, ev *event.E) (
	kc, vc int, quadID uint64, err error,
) {
	if ev == nil {
		err = errorf.E("nil event")
		return
	}
	// check if the event already exists
	var ser *types.Uint40
	if ser, err = d.getSerialByIdTxn(txn, ev.ID); err == nil && ser != nil {
		err = errorf.E("duplicate: event already exists: %0x", ev.ID)
		return
	}

	// If the error is "id not found", we can proceed with saving the event
	if err != nil && strings.Contains(err.Error(), "id not found in database") {
		// Reset error since this is expected for new events
		err = nil
	} else if err != nil {
		// For any other error, return it
		log.E.F("error checking if event exists: %s", err)
		return
	}

	// Check if the event has been deleted before allowing resubmission
	if err = d.checkForDeletedTxn(txn, ev, nil); err != nil {
		err = errorf.E("blocked: %s", err.Error())
		return
	}
	// check for replacement
	if kind.IsReplaceable(ev.Kind) {
		// find the events and check timestamps before deleting
		f := &filter.F{
			Authors: filter.Hexes(ev.Pubkey),
			Kinds:   kind.NewS(ev.Kind),
		}
		var sers types.Uint40s
		if sers, err = d.getSerialsFromFilterTxn(txn, f); chk.E(err) {
			return
		}
		// if found, check timestamps before deleting
		if len(sers) > 0 {
			var shouldReplace bool = true
			for _, s := range sers {
				var oldEv *event.E
				if oldEv, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) {
					continue
				}
				// replace unless the stored event is newer, or equally
				// recent with a greater id
				if !supersedes(ev, oldEv) {
					log.I.F(
						"SaveEvent: rejecting older replaceable event ID=%s (created_at=%d) - existing event ID=%s (created_at=%d)",
						hex.Enc(ev.ID), ev.CreatedAt, hex.Enc(oldEv.ID),
						oldEv.CreatedAt,
					)
					shouldReplace = false
					break
				}
			}
			if shouldReplace {
				for _, s := range sers {
					var oldEv *event.E
					if oldEv, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) {
						continue
					}
					log.I.F(
						"SaveEvent: replacing older replaceable event ID=%s (created_at=%d) with newer event ID=%s (created_at=%d)",
						hex.Enc(oldEv.ID), oldEv.CreatedAt, hex.Enc(ev.ID),
						ev.CreatedAt,
					)
					if err = d.deleteEventBySerialTxn(
						txn, s, oldEv,
					); chk.E(err) {
						continue
					}
				}
			} else {
				// Don't save the older event - return an error
				err = errorf.E("blocked: event is older than existing replaceable event")
				return
			}
		}
	} else if kind.IsParameterizedReplaceable(ev.Kind) {
		// find the events and check timestamps before deleting
		dTag := ev.Tags.GetFirst("d")
		if dTag == nil {
			err = errorf.E("event is missing a d tag identifier")
			return
		}
		f := &filter.F{
			Authors: filter.Hexes(ev.Pubkey),
			Kinds:   kind.NewS(ev.Kind),
			Tags:    tag.NewS(tag.New("#d", dTag.Value())),
		}
		var sers types.Uint40s
		if sers, err = d.getSerialsFromFilterTxn(txn, f); chk.E(err) {
			return
		}
		// if found, check timestamps before deleting
		if len(sers) > 0 {
			var shouldReplace bool = true
			for _, s := range sers {
				var oldEv *event.E
				if oldEv, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) {
					continue
				}
				// replace unless the stored event is newer, or equally
				// recent with a greater id
				if !supersedes(ev, oldEv) {
					log.I.F(
						"SaveEvent: rejecting older addressable event ID=%s (created_at=%d) - existing event ID=%s (created_at=%d)",
						hex.Enc(ev.ID), ev.CreatedAt, hex.Enc(oldEv.ID),
						oldEv.CreatedAt,
					)
					shouldReplace = false
					break
				}
			}
			if shouldReplace {
				for _, s := range sers {
					var oldEv *event.E
					if oldEv, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) {
						continue
					}
					log.I.F(
						"SaveEvent: replacing older addressable event ID=%s (created_at=%d) with newer event ID=%s (created_at=%d)",
						hex.Enc(oldEv.ID), oldEv.CreatedAt, hex.Enc(ev.ID),
						ev.CreatedAt,
					)
					if err = d.deleteEventBySerialTxn(
						txn, s, oldEv,
					); chk.E(err) {
						continue
					}
				}
			} else {
				// Don't save the older event - return an error
				err = errorf.E("blocked: event is older than existing addressable event")
				return
			}
		}
	}
	// Get the next sequence number for the event
	var serial uint64
	if serial, err = d.NextQuadID(); chk.E(err) {
		return
	}
	quadID = serial
	// Generate all indexes for the event
	var idxs [][]byte
	if idxs, err = GetIndexesForEvent(ev, serial); chk.E(err) {
		return
	}
	for _, k := range idxs {
		kc += len(k)
	}
	// Save each index
	for _, key := range idxs {
		if err = txn.Set(key, nil); chk.E(err) {
			return
		}
	}
	// write the event
	k := new(bytes.Buffer)
	serBuf := new(types.Uint40)
	if err = serBuf.Set(serial); chk.E(err) {
		return
	}
	if err = indexes.EventEnc(serBuf).MarshalWrite(k); chk.E(err) {
		return
	}
	v := new(bytes.Buffer)
	if err = ev.MarshalBinary(v); chk.E(err) {
		return
	}
	kb, vb := k.Bytes(), v.Bytes()
	kc += len(kb)
	vc += len(vb)
	if err = txn.Set(kb, vb); chk.E(err) {
		return
	}
	log.T.F(
		"total data written: %d bytes keys %d bytes values for event ID %s", kc,
		vc, hex.Enc(ev.ID),
	)
	log.T.C(
		func() string {
			return fmt.Sprintf("event:\n%s\n", ev.Serialize())
		},
	)
	return
}
