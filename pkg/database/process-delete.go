package database

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/ints"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/encoders/tag/atag"
	"quadrelay.dev/pkg/interfaces/store"
	"quadrelay.dev/pkg/utils"
)

func (d *D) ProcessDelete(ev *event.E, admins [][]byte) (err error) {
	eTags := ev.Tags.GetAll("e")
	aTags := ev.Tags.GetAll("a")
	kTags := ev.Tags.GetAll("k")
	// if there are no e or a tags, we assume the intent is to delete all
	// replaceable events of the kinds specified by the k tags for the pubkey of
	// the delete event.
	if len(eTags) == 0 && len(aTags) == 0 {
		// parse the kind tags
		var kinds []uint16
		for _, k := range kTags {
			kv := k.Value()
			iv := ints.New(0)
			if _, err = iv.Unmarshal([]byte(kv)); chk.E(err) {
				continue
			}
			if !kind.IsReplaceable(iv.Uint16()) {
				continue
			}
			kinds = append(kinds, iv.Uint16())
		}
		if len(kinds) == 0 {
			return nil
		}
		var idxs []Range
		if idxs, err = GetIndexesFromFilter(
			&filter.F{
				Authors: filter.Hexes(ev.Pubkey),
				Kinds:   kind.NewS(kinds...),
			},
		); chk.E(err) {
			return
		}
		var sers types.Uint40s
		for _, idx := range idxs {
			var s types.Uint40s
			if s, err = d.GetSerialsByRange(idx); chk.E(err) {
				return
			}
			sers = append(sers, s...)
		}
		if len(sers) > 0 {
			var idPkTss []*store.IdPkTs
			var tmp []*store.IdPkTs
			if tmp, err = d.GetFullIdPubkeyBySerials(sers); chk.E(err) {
				return
			}
			idPkTss = append(idPkTss, tmp...)
			// sort by timestamp, newest first; every event older than the
			// delete event is removed.
			sort.Slice(
				idPkTss, func(i, j int) bool {
					return idPkTss[i].Ts > idPkTss[j].Ts
				},
			)
			for _, v := range idPkTss {
				if v.Ts < ev.CreatedAt {
					if err = d.DeleteEvent(
						context.Background(), v.Id,
					); chk.E(err) {
						continue
					}
				}
			}
		}
	}
	return
}

// ApplyDeletion walks a kind-5 deletion event's a/e/k tags and removes
// whatever they name, enforcing that only the target's author (or one of
// admins) may delete it. It reports valid=false if the deletion event
// named nothing this caller was authorized to delete, which the writer
// treats as a rejected event.
func (d *D) ApplyDeletion(
	c context.Context, ev *event.E, admins [][]byte,
) (valid bool, err error) {
	err = d.Update(
		func(txn *badger.Txn) (err error) {
			valid, err = d.ApplyDeletionTxn(txn, ev, admins)
			return
		},
	)
	return
}

// ApplyDeletionTxn is ApplyDeletion against a caller-supplied transaction,
// used by the writer so a kind-5 event's deletes commit atomically with
// the rest of its batch.
func (d *D) ApplyDeletionTxn(
	txn *badger.Txn, ev *event.E, admins [][]byte,
) (valid bool, err error) {
	var ownerDelete bool
	for _, pk := range admins {
		if utils.FastEqual(pk, ev.Pubkey) {
			ownerDelete = true
			break
		}
	}
	for _, t := range ev.Tags {
		switch t.Key() {
		case "a":
			at := new(atag.T)
			if _, err = at.Unmarshal([]byte(t.Value())); chk.E(err) {
				err = nil
				continue
			}
			if !ownerDelete && !utils.FastEqual(ev.Pubkey, at.Pubkey) {
				continue
			}
			f := &filter.F{
				Authors: filter.Hexes(at.Pubkey),
				Kinds:   kind.NewS(at.Kind),
			}
			if len(at.DTag) > 0 {
				f.Tags = tag.NewS(tag.New("#d", at.DTag))
			}
			var sers types.Uint40s
			if sers, err = d.getSerialsFromFilterTxn(txn, f); chk.E(err) {
				err = nil
				continue
			}
			for _, s := range sers {
				var target *event.E
				if target, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) || target == nil {
					err = nil
					continue
				}
				if kind.IsParameterizedReplaceable(target.Kind) {
					if len(at.DTag) == 0 {
						continue
					}
				} else if !kind.IsReplaceable(target.Kind) {
					continue
				}
				if err = d.deleteEventBySerialTxn(txn, s, target); chk.E(err) {
					err = nil
					continue
				}
				valid = true
			}
		case "e":
			dst, derr := hex.Dec(t.Value())
			if derr != nil || len(dst) == 0 {
				continue
			}
			var sers types.Uint40s
			if sers, err = d.getSerialsFromFilterTxn(txn, &filter.F{IDs: filter.Hexes(dst)}); chk.E(err) {
				err = nil
				continue
			}
			for _, s := range sers {
				var target *event.E
				if target, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) || target == nil {
					err = nil
					continue
				}
				if !utils.FastEqual(ev.Pubkey, target.Pubkey) {
					log.W.F(
						"ApplyDeletion: refused cross-author delete of %0x by %0x",
						target.ID, ev.Pubkey,
					)
					continue
				}
				if target.Kind == uint16(kind.EventDeletion) {
					continue
				}
				if err = d.deleteEventBySerialTxn(txn, s, target); chk.E(err) {
					err = nil
					continue
				}
				valid = true
			}
		case "k":
			iv := ints.New(0)
			if _, err = iv.Unmarshal([]byte(t.Value())); chk.E(err) {
				err = nil
				continue
			}
			kn := iv.Uint16()
			if !kind.IsReplaceable(kn) || kn == uint16(kind.EventDeletion) {
				continue
			}
			var sers types.Uint40s
			if sers, err = d.getSerialsFromFilterTxn(
				txn, &filter.F{Authors: filter.Hexes(ev.Pubkey), Kinds: kind.NewS(kn)},
			); chk.E(err) {
				err = nil
				continue
			}
			for _, s := range sers {
				var target *event.E
				if target, err = d.fetchEventBySerialTxn(txn, s); chk.E(err) || target == nil {
					err = nil
					continue
				}
				if !utils.FastEqual(ev.Pubkey, target.Pubkey) {
					continue
				}
				if target.CreatedAt >= ev.CreatedAt {
					continue
				}
				if err = d.deleteEventBySerialTxn(txn, s, target); chk.E(err) {
					err = nil
					continue
				}
				valid = true
			}
		}
	}
	return
}
