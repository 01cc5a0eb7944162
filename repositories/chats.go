package repositories

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func chatKey(id string) []byte { return []byte("chat:" + id) }

func (r *ChatRepository) SaveChat(_ context.Context, c domain.Chat) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, chatKey(c.ID), c)
	})
}

func (r *ChatRepository) GetChat(_ context.Context, id string) (domain.Chat, error) {
	var c domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, chatKey(id), &c)
	})
	return c, err
}

// SetLastMessage moves the chat's last-message pointer. Applied in the same
// logical step as the message write by the fan-out pipeline.
func (r *ChatRepository) SetLastMessage(_ context.Context, chatID, messageID string, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var c domain.Chat
		if err := getJSON(txn, chatKey(chatID), &c); err != nil {
			return err
		}
		c.LastMessageID = messageID
		c.LastMessageAt = at
		return setJSON(txn, chatKey(chatID), c)
	})
}
