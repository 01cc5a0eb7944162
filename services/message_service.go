package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
)

// editWindow is how long after creation a sender may still edit a message.
const editWindow = 15 * time.Minute

type IMessageService interface {
	Send(ctx context.Context, cmd SendMessageCommand) (domain.Message, error)
	Edit(ctx context.Context, messageID, newContent, actingUser string) (domain.Message, error)
	Delete(ctx context.Context, messageID, actingUser string) error
	MarkRead(ctx context.Context, messageID, actingUser string) error
	MarkChatRead(ctx context.Context, chatID, actingUser string) ([]string, error)
	ListMessages(ctx context.Context, chatID, actingUser string, cursor *string) ([]domain.Message, *string, error)
	GetMessage(ctx context.Context, messageID, actingUser string) (domain.Message, error)
}

type SendMessageCommand struct {
	ChatID   string             `validate:"required"`
	SenderID string             `validate:"required"`
	Type     domain.MessageType `validate:"required"`
	Content  string

	MediaURL  string
	MediaType string
	FileName  string
	FileSize  int64
	Location  *domain.Location
	Contact   *domain.ContactCard

	ReplyTo  string
	Mentions []string
}

// MessageService is the fan-out pipeline: persist first, then deliver.
// A store or encryption failure aborts the operation; a delivery failure
// never does.
type MessageService struct {
	log      *slog.Logger
	chats    contract.ChatStore
	messages contract.MessageStore
	presence contract.Presence
	router   contract.Router
	crypto   contract.Encryptor
	push     contract.PushNotifier
	locks    *runtime.KeyedMutex
	validate *validator.Validate
}

func NewMessageService(
	log *slog.Logger,
	chats contract.ChatStore,
	messages contract.MessageStore,
	presence contract.Presence,
	router contract.Router,
	crypto contract.Encryptor,
	push contract.PushNotifier,
) *MessageService {
	return &MessageService{
		log:      log,
		chats:    chats,
		messages: messages,
		presence: presence,
		router:   router,
		crypto:   crypto,
		push:     push,
		locks:    runtime.NewKeyedMutex(),
		validate: validator.New(),
	}
}

// Send persists a new message encrypted at rest, moves the chat's
// last-message pointer and fans out the plaintext to every participant.
// Participants with zero live sessions get a best-effort push instead.
func (s *MessageService) Send(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if cmd.Type == domain.MessageText && cmd.Content == "" {
		return domain.Message{}, fmt.Errorf("%w: empty text message", errors.ErrValidation)
	}

	chat, err := s.chats.GetChat(ctx, cmd.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !chat.HasParticipant(cmd.SenderID) {
		return domain.Message{}, fmt.Errorf("%w: sender is not a participant of chat %s", errors.ErrForbidden, chat.ID)
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    cmd.ChatID,
		SenderID:  cmd.SenderID,
		Type:      cmd.Type,
		Content:   cmd.Content,
		MediaURL:  cmd.MediaURL,
		MediaType: cmd.MediaType,
		FileName:  cmd.FileName,
		FileSize:  cmd.FileSize,
		Location:  cmd.Location,
		Contact:   cmd.Contact,
		ReplyTo:   cmd.ReplyTo,
		Mentions:  cmd.Mentions,
		CreatedAt: time.Now().UTC(),
	}

	stored := msg
	if msg.Content != "" {
		ciphertext, key, err := s.crypto.Encrypt(msg.Content)
		if err != nil {
			return domain.Message{}, fmt.Errorf("%w: encrypting message: %v", errors.ErrStoreFailure, err)
		}
		stored.Content = ""
		stored.Ciphertext = ciphertext
		stored.ContentKey = key
	}

	if err := s.messages.SaveMessage(ctx, stored); err != nil {
		return domain.Message{}, fmt.Errorf("%w: saving message: %v", errors.ErrStoreFailure, err)
	}
	if err := s.chats.SetLastMessage(ctx, chat.ID, msg.ID, msg.CreatedAt); err != nil {
		s.log.Warn("failed to move last-message pointer", "chat_id", chat.ID, "error", err)
	}

	delivery := event.NewMessage(msg)
	s.fanOut(chat, delivery)
	for _, participant := range chat.Participants {
		if participant == msg.SenderID {
			continue
		}
		if len(s.presence.SessionsFor(participant)) == 0 {
			s.push.Notify(participant, delivery)
		}
	}
	return msg, nil
}

// Edit replaces the content of a message. Only the sender may edit, and
// only within the edit window; both violations are forbidden, not state
// errors, so clients render them the same way as a membership failure.
func (s *MessageService) Edit(ctx context.Context, messageID, newContent, actingUser string) (domain.Message, error) {
	if newContent == "" {
		return domain.Message{}, fmt.Errorf("%w: empty content", errors.ErrValidation)
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	updated, err := s.messages.UpdateMessage(ctx, messageID, func(m *domain.Message) error {
		if m.IsDeleted {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
		}
		if m.SenderID != actingUser {
			return fmt.Errorf("%w: only the sender may edit", errors.ErrForbidden)
		}
		if time.Since(m.CreatedAt) > editWindow {
			return fmt.Errorf("%w: edit window expired", errors.ErrForbidden)
		}
		ciphertext, key, err := s.crypto.Encrypt(newContent)
		if err != nil {
			return fmt.Errorf("%w: encrypting message: %v", errors.ErrStoreFailure, err)
		}
		now := time.Now().UTC()
		m.Content = ""
		m.Ciphertext = ciphertext
		m.ContentKey = key
		m.IsEdited = true
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	out := updated
	out.Content = newContent
	out.Ciphertext, out.ContentKey = "", ""

	chat, err := s.chats.GetChat(ctx, out.ChatID)
	if err != nil {
		s.log.Warn("edited message chat vanished, skipping fan-out", "chat_id", out.ChatID, "error", err)
		return out, nil
	}
	s.fanOut(chat, event.NewMessage(out))
	return out, nil
}

// Delete tombstones a message. The record stays in the store so clients
// keep a stable ordering; only the flag and the deletion time change.
func (s *MessageService) Delete(ctx context.Context, messageID, actingUser string) error {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	updated, err := s.messages.UpdateMessage(ctx, messageID, func(m *domain.Message) error {
		if m.IsDeleted {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
		}
		if m.SenderID != actingUser {
			return fmt.Errorf("%w: only the sender may delete", errors.ErrForbidden)
		}
		now := time.Now().UTC()
		m.IsDeleted = true
		m.DeletedAt = &now
		m.Content = ""
		m.Ciphertext = ""
		m.ContentKey = ""
		return nil
	})
	if err != nil {
		return err
	}

	chat, err := s.chats.GetChat(ctx, updated.ChatID)
	if err != nil {
		s.log.Warn("deleted message chat vanished, skipping fan-out", "chat_id", updated.ChatID, "error", err)
		return nil
	}
	s.fanOut(chat, event.MessageDeleted(messageID, updated.ChatID))
	return nil
}

// MarkRead adds the acting user to the message's read-by set. Idempotent:
// a second call is a silent no-op and triggers no fan-out.
func (s *MessageService) MarkRead(ctx context.Context, messageID, actingUser string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	chat, err := s.chats.GetChat(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(actingUser) {
		return fmt.Errorf("%w: not a participant of chat %s", errors.ErrForbidden, chat.ID)
	}
	return s.markRead(ctx, chat, messageID, actingUser)
}

// MarkChatRead marks every unread message of the chat read for the acting
// user and returns the ids that actually changed.
func (s *MessageService) MarkChatRead(ctx context.Context, chatID, actingUser string) ([]string, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(actingUser) {
		return nil, fmt.Errorf("%w: not a participant of chat %s", errors.ErrForbidden, chatID)
	}

	ids, err := s.messages.UnreadMessageIDs(ctx, chatID, actingUser)
	if err != nil {
		return nil, fmt.Errorf("%w: listing unread messages: %v", errors.ErrStoreFailure, err)
	}

	var marked []string
	for _, id := range ids {
		if err := s.markRead(ctx, chat, id, actingUser); err != nil {
			s.log.Warn("failed to mark message read", "message_id", id, "error", err)
			continue
		}
		marked = append(marked, id)
	}
	return marked, nil
}

func (s *MessageService) markRead(ctx context.Context, chat domain.Chat, messageID, actingUser string) error {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	var grew bool
	_, err := s.messages.UpdateMessage(ctx, messageID, func(m *domain.Message) error {
		grew = m.MarkReadBy(actingUser)
		return nil
	})
	if err != nil {
		return err
	}
	if grew {
		s.fanOut(chat, event.MessageRead(messageID, actingUser))
	}
	return nil
}

// ListMessages returns a page of the chat's messages, newest first, with
// content decrypted for delivery. Tombstoned records are filtered by the
// store.
func (s *MessageService) ListMessages(ctx context.Context, chatID, actingUser string, cursor *string) ([]domain.Message, *string, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if !chat.HasParticipant(actingUser) {
		return nil, nil, fmt.Errorf("%w: not a participant of chat %s", errors.ErrForbidden, chatID)
	}

	messages, next, err := s.messages.ListMessages(ctx, chatID, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing messages: %v", errors.ErrStoreFailure, err)
	}
	for i := range messages {
		if err := s.decrypt(&messages[i]); err != nil {
			return nil, nil, err
		}
	}
	return messages, next, nil
}

// GetMessage returns a single message, tombstoned or not. Tombstones come
// back with the flag raised and no content.
func (s *MessageService) GetMessage(ctx context.Context, messageID, actingUser string) (domain.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	chat, err := s.chats.GetChat(ctx, msg.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !chat.HasParticipant(actingUser) {
		return domain.Message{}, fmt.Errorf("%w: not a participant of chat %s", errors.ErrForbidden, chat.ID)
	}
	if err := s.decrypt(&msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *MessageService) decrypt(m *domain.Message) error {
	if m.Ciphertext == "" {
		return nil
	}
	plaintext, err := s.crypto.Decrypt(m.Ciphertext, m.ContentKey)
	if err != nil {
		return fmt.Errorf("%w: decrypting message %s: %v", errors.ErrStoreFailure, m.ID, err)
	}
	m.Content = plaintext
	m.Ciphertext, m.ContentKey = "", ""
	return nil
}

// fanOut emits e to every chat participant in declaration order. Session
// delivery only; Send alone follows up with pushes for offline users.
func (s *MessageService) fanOut(chat domain.Chat, e event.Event) {
	for _, participant := range chat.Participants {
		s.router.SendToUser(participant, e)
	}
}
