package domain

import (
	"slices"
	"time"
)

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// Chat membership is owned by an external surface; the relay only reads the
// participant set to compute fan-out targets and never mutates it.
type Chat struct {
	ID            string    `json:"id"`
	Type          ChatType  `json:"type"`
	Participants  []string  `json:"participants"`
	Admins        []string  `json:"admins,omitempty"`
	Name          string    `json:"name,omitempty"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (c Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}
