// Package repositories implements the persistent store collaborator on
// BadgerDB. Records are JSON documents under prefixed keys; chronological
// collections use zero-padded nanosecond timestamps in the key so a prefix
// scan returns them in time order.
package repositories

import (
	"encoding/json"
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/errors"
)

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// mapNotFound converts Badger's key miss into the business sentinel.
func mapNotFound(err error) error {
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	return err
}
