package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type CallRepository struct {
	db *badger.DB
}

func NewCallRepository(db *badger.DB) *CallRepository {
	return &CallRepository{db: db}
}

func callKey(id string) []byte { return []byte("call:" + id) }

// callUserKey indexes a call under each member for history scans, newest
// first thanks to the padded creation timestamp.
func callUserKey(userID string, c domain.Call) []byte {
	return []byte(fmt.Sprintf("calluser:%s:%019d:%s", userID, c.CreatedAt.UnixNano(), c.ID))
}

func callUserPrefix(userID string) []byte { return []byte("calluser:" + userID + ":") }

func (r *CallRepository) SaveCall(_ context.Context, c domain.Call) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, callKey(c.ID), c); err != nil {
			return err
		}
		for _, member := range c.Members() {
			if err := txn.Set(callUserKey(member, c), []byte(c.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CallRepository) GetCall(_ context.Context, id string) (domain.Call, error) {
	var c domain.Call
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, callKey(id), &c)
	})
	return c, err
}

// UpdateCall applies fn to the stored record inside a single transaction.
// A business error returned by fn aborts the write and propagates unchanged.
// The call service serializes updates per call id.
func (r *CallRepository) UpdateCall(_ context.Context, id string, fn func(*domain.Call) error) (domain.Call, error) {
	var c domain.Call
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, callKey(id), &c); err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		return setJSON(txn, callKey(id), c)
	})
	if err != nil {
		return domain.Call{}, err
	}
	return c, nil
}

// ListCallsByUser returns the user's call history, newest first, with
// 1-based page numbering.
func (r *CallRepository) ListCallsByUser(_ context.Context, userID string, page, limit int) ([]domain.Call, error) {
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * limit

	var calls []domain.Call
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := callUserPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if limit > 0 && len(calls) == limit {
				break
			}
			c, err := r.resolveCall(txn, it.Item())
			if err != nil {
				return err
			}
			calls = append(calls, c)
		}
		return nil
	})
	return calls, err
}

// ListActiveCalls returns the user's calls still in a non-terminal status.
func (r *CallRepository) ListActiveCalls(_ context.Context, userID string) ([]domain.Call, error) {
	var calls []domain.Call
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := callUserPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			c, err := r.resolveCall(txn, it.Item())
			if err != nil {
				return err
			}
			if !c.Status.Terminal() {
				calls = append(calls, c)
			}
		}
		return nil
	})
	return calls, err
}

func (r *CallRepository) resolveCall(txn *badger.Txn, item *badger.Item) (domain.Call, error) {
	id, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Call{}, err
	}
	var c domain.Call
	primary, err := txn.Get(callKey(string(id)))
	if err != nil {
		return domain.Call{}, mapNotFound(err)
	}
	err = primary.Value(func(val []byte) error {
		return json.Unmarshal(val, &c)
	})
	return c, err
}
