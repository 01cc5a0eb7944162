package domain

import (
	"slices"
	"time"
)

type CallType string

const (
	CallVoice CallType = "voice"
	CallVideo CallType = "video"
)

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallRinging   CallStatus = "ringing"
	CallAnswered  CallStatus = "answered"
	CallRejected  CallStatus = "rejected"
	CallMissed    CallStatus = "missed"
	CallEnded     CallStatus = "ended"
	CallFailed    CallStatus = "failed"
)

// callTransitions is the authoritative transition table of the signaling
// state machine. A status absent from the map is terminal. Guards beyond
// state legality (who may act) live in the call service.
var callTransitions = map[CallStatus][]CallStatus{
	CallInitiated: {CallRinging, CallMissed, CallFailed},
	CallRinging:   {CallAnswered, CallRejected, CallMissed, CallEnded, CallFailed},
	CallAnswered:  {CallEnded, CallFailed},
}

// CanTransition reports whether the state machine allows moving from s to
// the given status.
func (s CallStatus) CanTransition(to CallStatus) bool {
	return slices.Contains(callTransitions[s], to)
}

// Terminal reports whether s admits no further transition. Terminal call
// records are immutable except for the final duration write performed by
// the transition that sealed them.
func (s CallStatus) Terminal() bool {
	return len(callTransitions[s]) == 0
}

type CallSettings struct {
	VideoEnabled       bool `json:"videoEnabled"`
	AudioEnabled       bool `json:"audioEnabled"`
	ScreenShareEnabled bool `json:"screenShareEnabled"`
}

// Call is the shared signaling record of a one-to-one or group call.
// Status transitions are the only mutation path; IceCandidates is
// append-only and never deduplicated.
type Call struct {
	ID         string     `json:"id"`
	CallerID   string     `json:"callerId"`
	ReceiverID string     `json:"receiverId,omitempty"`
	Type       CallType   `json:"type"`
	Status     CallStatus `json:"status"`

	GroupID      string   `json:"groupId,omitempty"`
	Participants []string `json:"participants,omitempty"`
	IsGroupCall  bool     `json:"isGroupCall"`

	SDPOffer      string       `json:"sdpOffer,omitempty"`
	SDPAnswer     string       `json:"sdpAnswer,omitempty"`
	IceCandidates []string     `json:"iceCandidates,omitempty"`
	Settings      CallSettings `json:"callSettings"`

	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Duration  int64      `json:"duration,omitempty"` // seconds
	CreatedAt time.Time  `json:"createdAt"`
}

// Members returns every identity attached to the call: caller, direct
// receiver and invited participants.
func (c Call) Members() []string {
	members := []string{c.CallerID}
	if c.ReceiverID != "" {
		members = append(members, c.ReceiverID)
	}
	for _, p := range c.Participants {
		if !slices.Contains(members, p) {
			members = append(members, p)
		}
	}
	return members
}

func (c Call) HasMember(userID string) bool {
	return slices.Contains(c.Members(), userID)
}

// IsReceiver reports whether userID may answer or reject the call. For a
// one-to-one call that is the designated receiver; a group call accepts any
// invited participant except the caller.
func (c Call) IsReceiver(userID string) bool {
	if c.ReceiverID != "" {
		return c.ReceiverID == userID
	}
	return userID != c.CallerID && slices.Contains(c.Participants, userID)
}
