package database

import (
	"github.com/dgraph-io/badger/v4"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/interfaces/store"
)

// GetFullIdPubkeyBySerials resolves a batch of serials to their IdPkTs
// records, skipping any serial with no matching index entry.
func (d *D) GetFullIdPubkeyBySerials(sers types.Uint40s) (
	out []*store.IdPkTs, err error,
) {
	for _, ser := range sers {
		var idpk *store.IdPkTs
		if idpk, err = d.GetFullIdPubkeyBySerial(ser); err != nil {
			return
		}
		if idpk != nil {
			out = append(out, idpk)
		}
	}
	return
}

// getFullIdPubkeyBySerialsTxn is GetFullIdPubkeyBySerials against a
// caller-supplied transaction.
func (d *D) getFullIdPubkeyBySerialsTxn(
	txn *badger.Txn, sers types.Uint40s,
) (out []*store.IdPkTs, err error) {
	for _, ser := range sers {
		var idpk *store.IdPkTs
		if idpk, err = d.getFullIdPubkeyBySerialTxn(txn, ser); err != nil {
			return
		}
		if idpk != nil {
			out = append(out, idpk)
		}
	}
	return
}
