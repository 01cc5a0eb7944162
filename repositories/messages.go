package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// messageKey formats the primary key as "msg:{chat_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector if
//     two messages arrive at the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID))
}

// messageIDKey indexes a message id to its primary key for O(1) by-id access.
func messageIDKey(id string) []byte { return []byte("msgid:" + id) }

func messagePrefix(chatID string) []byte { return []byte("msg:" + chatID + ":") }

func (r *MessageRepository) SaveMessage(_ context.Context, m domain.Message) error {
	key := messageKey(m)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, m); err != nil {
			return err
		}
		return txn.Set(messageIDKey(m.ID), key)
	})
}

// GetMessage returns the record by id, tombstoned or not. Tombstone
// filtering belongs to listing only.
func (r *MessageRepository) GetMessage(_ context.Context, id string) (domain.Message, error) {
	var m domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &m)
	})
	return m, err
}

// UpdateMessage applies fn to the stored record inside a single transaction.
// A business error returned by fn aborts the write and propagates unchanged.
// Callers serialize updates per message id; the store itself does not retry
// on transaction conflicts.
func (r *MessageRepository) UpdateMessage(_ context.Context, id string, fn func(*domain.Message) error) (domain.Message, error) {
	var m domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		if err := getJSON(txn, key, &m); err != nil {
			return err
		}
		if err := fn(&m); err != nil {
			return err
		}
		return setJSON(txn, key, m)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// ListMessages retrieves non-tombstoned messages for a chat using a reverse
// prefix scan, newest first. Thanks to the padded timestamp in the key the
// iteration order is the chronological order. It stops once the configured
// limitMessages is reached and returns the cursor to resume from.
func (r *MessageRepository) ListMessages(_ context.Context, chatID string, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(messages) == *r.limitMessages {
				r.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *r.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])

			var m domain.Message
			err := item.Value(func(val []byte) error {
				return decodeMessage(val, &m)
			})
			if err != nil {
				return err
			}
			if m.IsDeleted {
				// Tombstones keep their slot in storage but are hidden
				// from default listings.
				continue
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lastKey == "" {
		// Scan walked past the last record; no further page exists.
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// UnreadMessageIDs lists ids of every chat message not yet read by userID,
// oldest first, skipping the user's own messages. Used by the chat-level
// read mark.
func (r *MessageRepository) UnreadMessageIDs(_ context.Context, chatID, userID string) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m domain.Message
			err := it.Item().Value(func(val []byte) error {
				return decodeMessage(val, &m)
			})
			if err != nil {
				return err
			}
			if m.SenderID != userID && !m.IsReadBy(userID) {
				ids = append(ids, m.ID)
			}
		}
		return nil
	})
	return ids, err
}

func decodeMessage(val []byte, m *domain.Message) error {
	return json.Unmarshal(val, m)
}

func resolveMessageKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(messageIDKey(id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return item.ValueCopy(nil)
}
