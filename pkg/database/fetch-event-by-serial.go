package database

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/database/indexes"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/event"
)

func (d *D) FetchEventBySerial(ser *types.Uint40) (ev *event.E, err error) {
	if err = d.View(
		func(txn *badger.Txn) (err error) {
			ev, err = d.fetchEventBySerialTxn(txn, ser)
			return
		},
	); err != nil {
		return
	}
	return
}

// fetchEventBySerialTxn is FetchEventBySerial against a caller-supplied
// transaction.
func (d *D) fetchEventBySerialTxn(txn *badger.Txn, ser *types.Uint40) (
	ev *event.E, err error,
) {
	buf := new(bytes.Buffer)
	if err = indexes.EventEnc(ser).MarshalWrite(buf); chk.E(err) {
		return
	}
	var item *badger.Item
	if item, err = txn.Get(buf.Bytes()); err != nil {
		return
	}
	var v []byte
	if v, err = item.ValueCopy(nil); chk.E(err) {
		return
	}
	// Check if we have valid data before attempting to unmarshal
	const minLen = 32 + 32 + 8 + 2 + 1 + 4 + 64 // id+pubkey+created_at+kind+tag-count+content-len+sig
	if len(v) < minLen {
		err = fmt.Errorf(
			"incomplete event data: got %d bytes, expected at least %d",
			len(v), minLen,
		)
		return
	}
	ev = new(event.E)
	if err = ev.UnmarshalBinary(bytes.NewBuffer(v)); err != nil {
		// Add more context to EOF errors for debugging
		if err.Error() == "EOF" {
			err = fmt.Errorf(
				"EOF while unmarshaling event (serial=%v, data_len=%d): %w",
				ser, len(v), err,
			)
		}
		return
	}
	return
}
