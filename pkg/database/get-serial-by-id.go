package database

import (
	"bytes"

	"quadrelay.dev/pkg/database/indexes"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/hex"
	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/errorf"
	"lol.mleku.dev/log"
)

// GetSerialById resolves an event's 32-byte id to its database serial via
// the by-id index.
func (d *D) GetSerialById(id []byte) (ser *types.Uint40, err error) {
	if err = d.View(
		func(txn *badger.Txn) (err error) {
			ser, err = d.getSerialByIdTxn(txn, id)
			return
		},
	); chk.E(err) {
		return
	}
	return
}

// getSerialByIdTxn is GetSerialById against a caller-supplied transaction,
// used when the lookup must see writes from the same transaction (e.g. the
// writer's single batch commit).
func (d *D) getSerialByIdTxn(txn *badger.Txn, id []byte) (
	ser *types.Uint40, err error,
) {
	log.T.F("GetSerialById: input id=%s", hex.Enc(id))
	var ident types.Ident
	if err = ident.Set(id); chk.E(err) {
		return
	}
	prefix := new(bytes.Buffer)
	if err = indexes.ByIdEnc(&ident, nil).MarshalWrite(prefix); chk.E(err) {
		return
	}
	idFound := false
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	it.Seek(prefix.Bytes())
	if it.ValidForPrefix(prefix.Bytes()) {
		item := it.Item()
		key := item.Key()
		ser = new(types.Uint40)
		buf := bytes.NewBuffer(key[len(key)-types.Uint40Len:])
		if err = ser.UnmarshalRead(buf); chk.E(err) {
			return
		}
		idFound = true
	} else {
		log.T.F(
			"GetSerialById: ID not found in database: %s", hex.Enc(id),
		)
	}
	if !idFound {
		err = errorf.T("id not found in database: %s", hex.Enc(id))
	}
	return
}
