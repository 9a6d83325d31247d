package database

import (
	"bytes"
	"time"

	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/database/indexes"
	"quadrelay.dev/pkg/database/indexes/types"
)

// DeleteExpired sweeps the expiration index for every record whose
// expiration timestamp has passed and deletes the underlying events.
func (d *D) DeleteExpired() {
	var err error
	now := new(types.Uint64)
	now.Set(uint64(time.Now().Unix()))
	var due types.Uint40s
	if err = d.View(
		func(txn *badger.Txn) (err error) {
			prefixBuf := new(bytes.Buffer)
			if err = indexes.ExpirationEnc(nil, nil).MarshalWrite(prefixBuf); chk.E(err) {
				return
			}
			it := txn.NewIterator(
				badger.IteratorOptions{Prefix: prefixBuf.Bytes()},
			)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				key := it.Item().Key()
				exp, ser := indexes.ExpirationVars()
				if err = indexes.ExpirationDec(exp, ser).UnmarshalRead(
					bytes.NewBuffer(key),
				); chk.E(err) {
					continue
				}
				if exp.Get() > now.Get() {
					// expiration keys sort ascending by timestamp; once we
					// pass "now" nothing further in the scan is due.
					break
				}
				due = append(due, ser)
			}
			return
		},
	); chk.E(err) {
		return
	}
	for _, ser := range due {
		ev, err := d.FetchEventBySerial(ser)
		if chk.E(err) || ev == nil {
			continue
		}
		if err = d.DeleteEventBySerial(d.ctx, ser, ev); chk.E(err) {
			continue
		}
		log.T.F("expired event deleted: serial=%d", ser.Get())
	}
}
