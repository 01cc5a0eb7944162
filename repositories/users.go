package repositories

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(id string) []byte     { return []byte("user:" + id) }
func phoneKey(phone string) []byte { return []byte("userphone:" + phone) }

func (r *UserRepository) SaveUser(_ context.Context, u domain.User) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, userKey(u.ID), u); err != nil {
			return err
		}
		if u.PhoneNumber == "" {
			return nil
		}
		return txn.Set(phoneKey(u.PhoneNumber), []byte(u.ID))
	})
}

func (r *UserRepository) GetUser(_ context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &u)
	})
	return u, err
}

func (r *UserRepository) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	var id string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(phoneKey(phone))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return r.GetUser(ctx, id)
}

// SetUserPresence persists the online flag and last-seen timestamp on the
// connect/disconnect edges of the session lifecycle.
func (r *UserRepository) SetUserPresence(_ context.Context, id string, online bool, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var u domain.User
		if err := getJSON(txn, userKey(id), &u); err != nil {
			return err
		}
		u.IsOnline = online
		u.LastSeen = at
		return setJSON(txn, userKey(id), u)
	})
}
