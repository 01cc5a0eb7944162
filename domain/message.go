package domain

import (
	"slices"
	"time"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageLocation MessageType = "location"
	MessageContact  MessageType = "contact"
	MessageSticker  MessageType = "sticker"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type ContactCard struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// Message is the canonical chat message record.
//
// Content is only populated in flight: at rest the body lives in Ciphertext
// with its per-message ContentKey. Deletion is a tombstone flag, never a
// physical removal, so other clients keep a stable ordering for their local
// caches. ReadBy grows monotonically and is never pruned.
type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chatId"`
	SenderID   string      `json:"senderId"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content,omitempty"`
	Ciphertext string      `json:"ciphertext,omitempty"`
	ContentKey string      `json:"contentKey,omitempty"`

	MediaURL  string       `json:"mediaUrl,omitempty"`
	MediaType string       `json:"mediaType,omitempty"`
	FileName  string       `json:"fileName,omitempty"`
	FileSize  int64        `json:"fileSize,omitempty"`
	Location  *Location    `json:"location,omitempty"`
	Contact   *ContactCard `json:"contact,omitempty"`

	ReplyTo  string   `json:"replyTo,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
	ReadBy   []string `json:"readBy,omitempty"`

	IsEdited  bool       `json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// MarkReadBy appends userID to the read-by set. Idempotent: marking twice
// leaves a single entry. Reports whether the set actually grew.
func (m *Message) MarkReadBy(userID string) bool {
	if slices.Contains(m.ReadBy, userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

func (m Message) IsReadBy(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}
