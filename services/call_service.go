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
	"chat-relay/observability"
	"chat-relay/runtime"
)

const defaultHistoryLimit = 50

type ICallService interface {
	Initiate(ctx context.Context, cmd InitiateCallCommand) (domain.Call, error)
	Answer(ctx context.Context, callID, sdpAnswer, actingUser string) (domain.Call, error)
	Reject(ctx context.Context, callID, actingUser string) (domain.Call, error)
	End(ctx context.Context, callID string, duration int64, actingUser string) (domain.Call, error)
	AddIceCandidate(ctx context.Context, callID, candidate, actingUser string) error
	History(ctx context.Context, userID string, page, limit int) ([]domain.Call, error)
	Active(ctx context.Context, userID string) ([]domain.Call, error)
}

type InitiateCallCommand struct {
	CallerID string          `validate:"required"`
	Type     domain.CallType `validate:"required"`
	SDPOffer string          `validate:"required"`

	// Direct call.
	ReceiverID string

	// Group call.
	GroupID      string
	Participants []string

	Settings domain.CallSettings
}

// CallService drives the signaling state machine. Every transition runs
// under the call's keyed mutex with the record re-read inside the store
// transaction, so concurrent actors resolve first-writer-wins.
type CallService struct {
	log      *slog.Logger
	calls    contract.CallStore
	presence contract.Presence
	router   contract.Router
	push     contract.PushNotifier
	locks    *runtime.KeyedMutex
	validate *validator.Validate
}

func NewCallService(
	log *slog.Logger,
	calls contract.CallStore,
	presence contract.Presence,
	router contract.Router,
	push contract.PushNotifier,
) *CallService {
	return &CallService{
		log:      log,
		calls:    calls,
		presence: presence,
		router:   router,
		push:     push,
		locks:    runtime.NewKeyedMutex(),
		validate: validator.New(),
	}
}

// Initiate creates the call record, hands the offer to every callee and
// only then advances to ringing. A direct receiver gets incoming_call, each
// invited group participant gets incoming_group_call; offline callees get a
// best-effort push.
func (s *CallService) Initiate(ctx context.Context, cmd InitiateCallCommand) (domain.Call, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Call{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	group := cmd.GroupID != "" || len(cmd.Participants) > 0
	if group {
		if cmd.GroupID == "" || len(cmd.Participants) == 0 {
			return domain.Call{}, fmt.Errorf("%w: group call needs a group id and participants", errors.ErrValidation)
		}
	} else {
		if cmd.ReceiverID == "" {
			return domain.Call{}, fmt.Errorf("%w: missing receiver", errors.ErrValidation)
		}
		if cmd.ReceiverID == cmd.CallerID {
			return domain.Call{}, fmt.Errorf("%w: caller cannot call themselves", errors.ErrValidation)
		}
	}

	call := domain.Call{
		ID:           uuid.NewString(),
		CallerID:     cmd.CallerID,
		ReceiverID:   cmd.ReceiverID,
		Type:         cmd.Type,
		Status:       domain.CallInitiated,
		GroupID:      cmd.GroupID,
		Participants: cmd.Participants,
		IsGroupCall:  group,
		SDPOffer:     cmd.SDPOffer,
		Settings:     cmd.Settings,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.calls.SaveCall(ctx, call); err != nil {
		return domain.Call{}, fmt.Errorf("%w: saving call: %v", errors.ErrStoreFailure, err)
	}

	if group {
		offer := event.IncomingGroupCall(call)
		for _, participant := range cmd.Participants {
			if participant == cmd.CallerID {
				continue
			}
			s.deliver(participant, offer)
		}
	} else {
		s.deliver(cmd.ReceiverID, event.IncomingCall(call))
	}

	return s.transition(ctx, call.ID, domain.CallRinging, func(c *domain.Call) {})
}

// Answer moves a ringing call to answered. Only the designated receiver
// (any invited participant for a group call) may answer; the losing side
// of a concurrent answer observes the already-advanced status.
func (s *CallService) Answer(ctx context.Context, callID, sdpAnswer, actingUser string) (domain.Call, error) {
	if sdpAnswer == "" {
		return domain.Call{}, fmt.Errorf("%w: missing sdp answer", errors.ErrValidation)
	}

	unlock := s.locks.Lock(callID)
	defer unlock()

	updated, err := s.calls.UpdateCall(ctx, callID, func(c *domain.Call) error {
		if !c.IsReceiver(actingUser) {
			return fmt.Errorf("%w: only the receiver may answer", errors.ErrForbidden)
		}
		if !c.Status.CanTransition(domain.CallAnswered) {
			return fmt.Errorf("%w: cannot answer a %s call", errors.ErrInvalidState, c.Status)
		}
		now := time.Now().UTC()
		c.Status = domain.CallAnswered
		c.SDPAnswer = sdpAnswer
		c.StartedAt = &now
		return nil
	})
	if err != nil {
		return domain.Call{}, err
	}
	observability.CallTransitions.WithLabelValues(string(domain.CallAnswered)).Inc()

	s.router.SendToUser(updated.CallerID, event.CallAnswered(callID, sdpAnswer))
	return updated, nil
}

// Reject declines a ringing call. Receiver-only; the caller is notified.
func (s *CallService) Reject(ctx context.Context, callID, actingUser string) (domain.Call, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	updated, err := s.calls.UpdateCall(ctx, callID, func(c *domain.Call) error {
		if !c.IsReceiver(actingUser) {
			return fmt.Errorf("%w: only the receiver may reject", errors.ErrForbidden)
		}
		if c.Status != domain.CallRinging {
			return fmt.Errorf("%w: cannot reject a %s call", errors.ErrInvalidState, c.Status)
		}
		now := time.Now().UTC()
		c.Status = domain.CallRejected
		c.EndedAt = &now
		return nil
	})
	if err != nil {
		return domain.Call{}, err
	}
	observability.CallTransitions.WithLabelValues(string(domain.CallRejected)).Inc()

	s.router.SendToUser(updated.CallerID, event.CallRejected(callID))
	return updated, nil
}

// End terminates a call from any non-terminal status. Any member may end;
// every other member is notified with the final duration.
func (s *CallService) End(ctx context.Context, callID string, duration int64, actingUser string) (domain.Call, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	updated, err := s.calls.UpdateCall(ctx, callID, func(c *domain.Call) error {
		if !c.HasMember(actingUser) {
			return fmt.Errorf("%w: not a member of the call", errors.ErrForbidden)
		}
		if !c.Status.CanTransition(domain.CallEnded) {
			return fmt.Errorf("%w: cannot end a %s call", errors.ErrInvalidState, c.Status)
		}
		now := time.Now().UTC()
		c.Status = domain.CallEnded
		c.EndedAt = &now
		c.Duration = duration
		if duration == 0 && c.StartedAt != nil {
			c.Duration = int64(now.Sub(*c.StartedAt) / time.Second)
		}
		return nil
	})
	if err != nil {
		return domain.Call{}, err
	}
	observability.CallTransitions.WithLabelValues(string(domain.CallEnded)).Inc()

	ended := event.CallEnded(callID, updated.Duration)
	for _, member := range updated.Members() {
		if member == actingUser {
			continue
		}
		s.router.SendToUser(member, ended)
	}
	return updated, nil
}

// AddIceCandidate appends a candidate to the call record and relays it to
// every other member. Candidates are never deduplicated; signaling on a
// terminated call is a state error.
func (s *CallService) AddIceCandidate(ctx context.Context, callID, candidate, actingUser string) error {
	if candidate == "" {
		return fmt.Errorf("%w: empty candidate", errors.ErrValidation)
	}

	unlock := s.locks.Lock(callID)
	defer unlock()

	updated, err := s.calls.UpdateCall(ctx, callID, func(c *domain.Call) error {
		if !c.HasMember(actingUser) {
			return fmt.Errorf("%w: not a member of the call", errors.ErrForbidden)
		}
		if c.Status.Terminal() {
			return fmt.Errorf("%w: call already %s", errors.ErrInvalidState, c.Status)
		}
		c.IceCandidates = append(c.IceCandidates, candidate)
		return nil
	})
	if err != nil {
		return err
	}

	relay := event.IceCandidate(callID, candidate, actingUser)
	for _, member := range updated.Members() {
		if member == actingUser {
			continue
		}
		s.router.SendToUser(member, relay)
	}
	return nil
}

// History returns the user's call records, newest first, 1-based pages.
func (s *CallService) History(ctx context.Context, userID string, page, limit int) ([]domain.Call, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	calls, err := s.calls.ListCallsByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing call history: %v", errors.ErrStoreFailure, err)
	}
	return calls, nil
}

// Active returns the user's calls still in a non-terminal status.
func (s *CallService) Active(ctx context.Context, userID string) ([]domain.Call, error) {
	calls, err := s.calls.ListActiveCalls(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing active calls: %v", errors.ErrStoreFailure, err)
	}
	return calls, nil
}

func (s *CallService) transition(ctx context.Context, callID string, to domain.CallStatus, apply func(*domain.Call)) (domain.Call, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	updated, err := s.calls.UpdateCall(ctx, callID, func(c *domain.Call) error {
		if !c.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidState, c.Status, to)
		}
		c.Status = to
		apply(c)
		return nil
	})
	if err != nil {
		return domain.Call{}, err
	}
	observability.CallTransitions.WithLabelValues(string(to)).Inc()
	return updated, nil
}

func (s *CallService) deliver(userID string, e event.Event) {
	s.router.SendToUser(userID, e)
	if len(s.presence.SessionsFor(userID)) == 0 {
		s.push.Notify(userID, e)
	}
}
