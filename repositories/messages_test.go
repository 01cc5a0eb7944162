package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func textMessage(chatID, senderID, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      domain.MessageText,
		Content:   content,
		CreatedAt: at,
	}
}

func TestMessageRepository_ListMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)

	at := time.Now().UTC()
	stored := []domain.Message{
		textMessage("chat-1", "alice", "first", at),
		textMessage("chat-1", "bob", "second", at.Add(1*time.Minute)),
		textMessage("chat-1", "clara", "third", at.Add(2*time.Minute)),
	}
	for _, m := range stored {
		req.NoError(repo.SaveMessage(ctx, m))
	}
	// A message from another chat must never leak into the scan.
	req.NoError(repo.SaveMessage(ctx, textMessage("chat-2", "dave", "noise", at)))

	messages, _, err := repo.ListMessages(ctx, "chat-1", nil)
	req.NoError(err)
	req.Equal([]string{"third", "second", "first"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestMessageRepository_ListMessages_CursorAndLimit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMessageRepository(newTestDB(t), slog.Default(), lo.ToPtr(2))

	at := time.Now().UTC()
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		req.NoError(repo.SaveMessage(ctx, textMessage("chat-1", "alice", content, at.Add(time.Duration(i)*time.Minute))))
	}

	firstPage, cursor, err := repo.ListMessages(ctx, "chat-1", nil)
	req.NoError(err)
	req.Equal([]string{"five", "four"},
		lo.Map(firstPage, func(m domain.Message, _ int) string { return m.Content }))
	req.NotNil(cursor)

	secondPage, cursor, err := repo.ListMessages(ctx, "chat-1", cursor)
	req.NoError(err)
	req.Equal([]string{"three", "two"},
		lo.Map(secondPage, func(m domain.Message, _ int) string { return m.Content }))

	thirdPage, cursor, err := repo.ListMessages(ctx, "chat-1", cursor)
	req.NoError(err)
	req.Equal([]string{"one"},
		lo.Map(thirdPage, func(m domain.Message, _ int) string { return m.Content }))

	// An exhausted scan reports the end of the list with a nil cursor.
	lastPage, cursor, err := repo.ListMessages(ctx, "chat-1", cursor)
	req.NoError(err)
	req.Empty(lastPage)
	req.Nil(cursor)
}

func TestMessageRepository_Tombstones(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)

	at := time.Now().UTC()
	kept := textMessage("chat-1", "alice", "kept", at)
	deleted := textMessage("chat-1", "alice", "deleted", at.Add(time.Minute))
	req.NoError(repo.SaveMessage(ctx, kept))
	req.NoError(repo.SaveMessage(ctx, deleted))

	_, err := repo.UpdateMessage(ctx, deleted.ID, func(m *domain.Message) error {
		m.IsDeleted = true
		m.DeletedAt = lo.ToPtr(time.Now().UTC())
		return nil
	})
	req.NoError(err)

	// Hidden from the default listing...
	messages, _, err := repo.ListMessages(ctx, "chat-1", nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("kept", messages[0].Content)

	// ...but still reachable by id, flag raised.
	fetched, err := repo.GetMessage(ctx, deleted.ID)
	req.NoError(err)
	req.True(fetched.IsDeleted)
	req.NotNil(fetched.DeletedAt)
}

func TestMessageRepository_UpdateMessage(t *testing.T) {
	t.Run("should abort the write when fn fails", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)

		m := textMessage("chat-1", "alice", "original", time.Now().UTC())
		req.NoError(repo.SaveMessage(ctx, m))

		_, err := repo.UpdateMessage(ctx, m.ID, func(m *domain.Message) error {
			m.Content = "mutated"
			return errors.ErrForbidden
		})
		req.ErrorIs(err, errors.ErrForbidden)

		fetched, err := repo.GetMessage(ctx, m.ID)
		req.NoError(err)
		req.Equal("original", fetched.Content)
	})

	t.Run("should return not-found for an unknown id", func(t *testing.T) {
		req := require.New(t)
		repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)

		_, err := repo.UpdateMessage(context.Background(), uuid.NewString(), func(*domain.Message) error {
			return nil
		})
		req.ErrorIs(err, errors.ErrNotFound)
	})
}

func TestMessageRepository_UnreadMessageIDs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)

	at := time.Now().UTC()
	read := textMessage("chat-1", "alice", "seen", at)
	read.ReadBy = []string{"bob"}
	unread := textMessage("chat-1", "alice", "not yet", at.Add(time.Minute))
	own := textMessage("chat-1", "bob", "mine", at.Add(2*time.Minute))
	req.NoError(repo.SaveMessage(ctx, read))
	req.NoError(repo.SaveMessage(ctx, unread))
	req.NoError(repo.SaveMessage(ctx, own))

	ids, err := repo.UnreadMessageIDs(ctx, "chat-1", "bob")
	req.NoError(err)
	req.Equal([]string{unread.ID}, ids)
}
