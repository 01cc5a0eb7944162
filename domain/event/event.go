// Package event defines the outbound wire events pushed to live sessions,
// together with their payload shapes. Event names are part of the client
// protocol and must not change without a client migration.
package event

import (
	"time"

	"chat-relay/domain"
)

const (
	NameNewMessage        = "new_message"
	NameMessageDeleted    = "message_deleted"
	NameMessageRead       = "message_read"
	NameIncomingCall      = "incoming_call"
	NameIncomingGroupCall = "incoming_group_call"
	NameCallAnswered      = "call_answered"
	NameCallRejected      = "call_rejected"
	NameCallEnded         = "call_ended"
	NameIceCandidate      = "ice_candidate"
	NameUserTyping        = "user_typing"
	NameContactStatus     = "contact_status"
)

// Event is the envelope delivered to a session. Data marshals as-is onto
// the wire.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

func NewMessage(m domain.Message) Event {
	return Event{Name: NameNewMessage, Data: m}
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

func MessageDeleted(messageID, chatID string) Event {
	return Event{Name: NameMessageDeleted, Data: MessageDeletedPayload{MessageID: messageID, ChatID: chatID}}
}

type MessageReadPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

func MessageRead(messageID, userID string) Event {
	return Event{Name: NameMessageRead, Data: MessageReadPayload{MessageID: messageID, UserID: userID}}
}

type IncomingCallPayload struct {
	CallID   string              `json:"callId"`
	CallerID string              `json:"callerId"`
	Type     domain.CallType     `json:"type"`
	GroupID  string              `json:"groupId,omitempty"`
	SDPOffer string              `json:"sdpOffer,omitempty"`
	Settings domain.CallSettings `json:"callSettings"`
}

func IncomingCall(c domain.Call) Event {
	return Event{Name: NameIncomingCall, Data: IncomingCallPayload{
		CallID: c.ID, CallerID: c.CallerID, Type: c.Type,
		SDPOffer: c.SDPOffer, Settings: c.Settings,
	}}
}

func IncomingGroupCall(c domain.Call) Event {
	return Event{Name: NameIncomingGroupCall, Data: IncomingCallPayload{
		CallID: c.ID, CallerID: c.CallerID, Type: c.Type,
		GroupID: c.GroupID, SDPOffer: c.SDPOffer, Settings: c.Settings,
	}}
}

type CallAnsweredPayload struct {
	CallID    string `json:"callId"`
	SDPAnswer string `json:"sdpAnswer"`
}

func CallAnswered(callID, sdpAnswer string) Event {
	return Event{Name: NameCallAnswered, Data: CallAnsweredPayload{CallID: callID, SDPAnswer: sdpAnswer}}
}

type CallRejectedPayload struct {
	CallID string `json:"callId"`
}

func CallRejected(callID string) Event {
	return Event{Name: NameCallRejected, Data: CallRejectedPayload{CallID: callID}}
}

type CallEndedPayload struct {
	CallID   string `json:"callId"`
	Duration int64  `json:"duration"`
}

func CallEnded(callID string, duration int64) Event {
	return Event{Name: NameCallEnded, Data: CallEndedPayload{CallID: callID, Duration: duration}}
}

type IceCandidatePayload struct {
	CallID     string `json:"callId"`
	Candidate  string `json:"candidate"`
	FromUserID string `json:"fromUserId"`
}

func IceCandidate(callID, candidate, fromUserID string) Event {
	return Event{Name: NameIceCandidate, Data: IceCandidatePayload{
		CallID: callID, Candidate: candidate, FromUserID: fromUserID,
	}}
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

func UserTyping(userID, chatID string, isTyping bool) Event {
	return Event{Name: NameUserTyping, Data: UserTypingPayload{
		UserID: userID, ChatID: chatID, IsTyping: isTyping,
	}}
}

type ContactStatusPayload struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

func ContactStatus(userID string, isOnline bool, lastSeen time.Time) Event {
	return Event{Name: NameContactStatus, Data: ContactStatusPayload{
		UserID: userID, IsOnline: isOnline, LastSeen: lastSeen,
	}}
}
