// Package domain contains the core concepts of the relay: users, chats,
// messages and calls. Types here carry no transport or storage concerns.
package domain

import "time"

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PhoneNumber    string    `json:"phoneNumber"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Contacts       []string  `json:"contacts,omitempty"` // phone numbers
	IsOnline       bool      `json:"isOnline"`
	LastSeen       time.Time `json:"lastSeen"`
	CreatedAt      time.Time `json:"createdAt"`
}
