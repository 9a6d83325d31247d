package database

import "github.com/dgraph-io/badger/v4"

// WriteBatch runs fn once inside a single badger write transaction. The
// writer uses this to fold every event in a drained batch — including a
// replaceable event's delete-old and insert-new — into one commit, so a
// crash mid-batch leaves either all of it durable or none of it.
func (d *D) WriteBatch(fn func(txn *badger.Txn) error) error {
	return d.Update(fn)
}
