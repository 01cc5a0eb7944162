package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"chat-relay/runtime"
)

type callFixture struct {
	service  *CallService
	registry *runtime.Registry
	calls    *repositories.CallRepository
	push     *mocks.MockPushNotifier
}

func newCallFixture(t *testing.T) callFixture {
	t.Helper()
	db := newTestDB(t)
	log := slog.Default()

	registry := runtime.NewRegistry()
	router := runtime.NewDeliveryRouter(log, registry)
	calls := repositories.NewCallRepository(db)
	push := mocks.NewMockPushNotifier(gomock.NewController(t))

	return callFixture{
		service:  NewCallService(log, calls, registry, router, push),
		registry: registry,
		calls:    calls,
		push:     push,
	}
}

func (f callFixture) connect(t *testing.T, userID string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	f.registry.Register(userID, userID+"-session", sink)
	return sink
}

func directCall(f callFixture, t *testing.T) domain.Call {
	t.Helper()
	call, err := f.service.Initiate(context.Background(), InitiateCallCommand{
		CallerID:   "alice",
		ReceiverID: "bob",
		Type:       domain.CallVoice,
		SDPOffer:   "v=0 offer",
	})
	require.NoError(t, err)
	return call
}

func TestCallService_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("should ring the receiver and advance to ringing", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		bobSink := f.connect(t, "bob")

		call := directCall(f, t)
		req.Equal(domain.CallRinging, call.Status)

		events := bobSink.Events()
		req.Len(events, 1)
		req.Equal(event.NameIncomingCall, events[0].Name)
		payload := events[0].Data.(event.IncomingCallPayload)
		req.Equal(call.ID, payload.CallID)
		req.Equal("alice", payload.CallerID)
		req.Equal("v=0 offer", payload.SDPOffer)

		stored, err := f.calls.GetCall(ctx, call.ID)
		req.NoError(err)
		req.Equal(domain.CallRinging, stored.Status)
	})

	t.Run("should push the offer to an offline receiver", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)

		f.push.EXPECT().Notify("bob", gomock.Any()).Times(1)

		call := directCall(f, t)
		req.Equal(domain.CallRinging, call.Status)
	})

	t.Run("should ring every invited group participant except the caller", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		bobSink := f.connect(t, "bob")
		claraSink := f.connect(t, "clara")
		aliceSink := f.connect(t, "alice")

		call, err := f.service.Initiate(ctx, InitiateCallCommand{
			CallerID:     "alice",
			Type:         domain.CallVideo,
			SDPOffer:     "v=0 offer",
			GroupID:      "group-1",
			Participants: []string{"alice", "bob", "clara"},
		})
		req.NoError(err)
		req.True(call.IsGroupCall)

		for _, sink := range []*recordingSink{bobSink, claraSink} {
			events := sink.Events()
			req.Len(events, 1)
			req.Equal(event.NameIncomingGroupCall, events[0].Name)
			req.Equal("group-1", events[0].Data.(event.IncomingCallPayload).GroupID)
		}
		req.Empty(aliceSink.Events())
	})

	t.Run("should reject malformed commands", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)

		_, err := f.service.Initiate(ctx, InitiateCallCommand{
			CallerID: "alice", Type: domain.CallVoice, SDPOffer: "v=0",
		})
		req.ErrorIs(err, errors.ErrValidation)

		_, err = f.service.Initiate(ctx, InitiateCallCommand{
			CallerID: "alice", ReceiverID: "alice", Type: domain.CallVoice, SDPOffer: "v=0",
		})
		req.ErrorIs(err, errors.ErrValidation)

		_, err = f.service.Initiate(ctx, InitiateCallCommand{
			CallerID: "alice", GroupID: "group-1", Type: domain.CallVoice, SDPOffer: "v=0",
		})
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestCallService_Answer(t *testing.T) {
	ctx := context.Background()

	t.Run("should move a ringing call to answered and tell the caller", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		aliceSink := f.connect(t, "alice")
		f.connect(t, "bob")

		call := directCall(f, t)

		answered, err := f.service.Answer(ctx, call.ID, "v=0 answer", "bob")
		req.NoError(err)
		req.Equal(domain.CallAnswered, answered.Status)
		req.Equal("v=0 answer", answered.SDPAnswer)
		req.NotNil(answered.StartedAt)

		events := aliceSink.Events()
		req.Len(events, 1)
		req.Equal(event.NameCallAnswered, events[0].Name)
		req.Equal("v=0 answer", events[0].Data.(event.CallAnsweredPayload).SDPAnswer)
	})

	t.Run("should refuse anyone but the receiver", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		_, err := f.service.Answer(ctx, call.ID, "v=0 answer", "alice")
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("should refuse a second answer", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		_, err := f.service.Answer(ctx, call.ID, "v=0 answer", "bob")
		req.NoError(err)
		_, err = f.service.Answer(ctx, call.ID, "v=0 again", "bob")
		req.ErrorIs(err, errors.ErrInvalidState)
	})

	t.Run("should require an sdp answer", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		_, err := f.service.Answer(ctx, call.ID, "", "bob")
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should let exactly one concurrent answer win", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "alice")
		f.connect(t, "bob")
		f.connect(t, "clara")

		call, err := f.service.Initiate(ctx, InitiateCallCommand{
			CallerID:     "alice",
			Type:         domain.CallVoice,
			SDPOffer:     "v=0 offer",
			GroupID:      "group-1",
			Participants: []string{"bob", "clara"},
		})
		req.NoError(err)

		start := make(chan struct{})
		results := make(chan error, 2)
		var wg sync.WaitGroup
		for _, user := range []string{"bob", "clara"} {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				<-start
				_, err := f.service.Answer(ctx, call.ID, "v=0 "+user, user)
				results <- err
			}(user)
		}
		close(start)
		wg.Wait()
		close(results)

		var wins, losses int
		for err := range results {
			switch {
			case err == nil:
				wins++
			default:
				req.ErrorIs(err, errors.ErrInvalidState)
				losses++
			}
		}
		req.Equal(1, wins)
		req.Equal(1, losses)
	})
}

func TestCallService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("should decline a ringing call and tell the caller", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		aliceSink := f.connect(t, "alice")
		f.connect(t, "bob")

		call := directCall(f, t)

		rejected, err := f.service.Reject(ctx, call.ID, "bob")
		req.NoError(err)
		req.Equal(domain.CallRejected, rejected.Status)
		req.NotNil(rejected.EndedAt)

		req.Equal([]string{event.NameCallRejected}, aliceSink.Names())
	})

	t.Run("should refuse anyone but the receiver", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		_, err := f.service.Reject(ctx, call.ID, "alice")
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("should refuse rejecting an answered call", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)
		_, err := f.service.Answer(ctx, call.ID, "v=0 answer", "bob")
		req.NoError(err)

		_, err = f.service.Reject(ctx, call.ID, "bob")
		req.ErrorIs(err, errors.ErrInvalidState)
	})
}

func TestCallService_End(t *testing.T) {
	ctx := context.Background()

	t.Run("should end an answered call and notify the other members", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "alice")
		bobSink := f.connect(t, "bob")

		call := directCall(f, t)
		_, err := f.service.Answer(ctx, call.ID, "v=0 answer", "bob")
		req.NoError(err)

		ended, err := f.service.End(ctx, call.ID, 42, "alice")
		req.NoError(err)
		req.Equal(domain.CallEnded, ended.Status)
		req.EqualValues(42, ended.Duration)
		req.NotNil(ended.EndedAt)

		names := bobSink.Names()
		req.Equal(event.NameCallEnded, names[len(names)-1])
		last := bobSink.Events()[len(names)-1]
		req.EqualValues(42, last.Data.(event.CallEndedPayload).Duration)
	})

	t.Run("should let either side hang up while still ringing", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		ended, err := f.service.End(ctx, call.ID, 0, "bob")
		req.NoError(err)
		req.Equal(domain.CallEnded, ended.Status)
	})

	t.Run("should refuse a non-member", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		_, err := f.service.End(ctx, call.ID, 0, "mallory")
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("should refuse ending twice", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)
		_, err := f.service.End(ctx, call.ID, 0, "alice")
		req.NoError(err)

		_, err = f.service.End(ctx, call.ID, 0, "bob")
		req.ErrorIs(err, errors.ErrInvalidState)
	})
}

func TestCallService_AddIceCandidate(t *testing.T) {
	ctx := context.Background()

	t.Run("should append and relay to the other members", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		aliceSink := f.connect(t, "alice")
		bobSink := f.connect(t, "bob")

		call := directCall(f, t)

		req.NoError(f.service.AddIceCandidate(ctx, call.ID, "candidate:1", "alice"))
		req.NoError(f.service.AddIceCandidate(ctx, call.ID, "candidate:2", "bob"))

		stored, err := f.calls.GetCall(ctx, call.ID)
		req.NoError(err)
		req.Equal([]string{"candidate:1", "candidate:2"}, stored.IceCandidates)

		// Each side only hears the other's candidates.
		bobNames := bobSink.Names()
		req.Equal(event.NameIceCandidate, bobNames[len(bobNames)-1])
		relayed := bobSink.Events()[len(bobNames)-1].Data.(event.IceCandidatePayload)
		req.Equal("candidate:1", relayed.Candidate)
		req.Equal("alice", relayed.FromUserID)

		aliceNames := aliceSink.Names()
		req.Equal(event.NameIceCandidate, aliceNames[len(aliceNames)-1])
		req.Equal("candidate:2", aliceSink.Events()[len(aliceNames)-1].Data.(event.IceCandidatePayload).Candidate)
	})

	t.Run("should refuse signaling on a terminated call", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)
		_, err := f.service.Reject(ctx, call.ID, "bob")
		req.NoError(err)

		req.ErrorIs(f.service.AddIceCandidate(ctx, call.ID, "candidate:1", "alice"), errors.ErrInvalidState)
	})

	t.Run("should refuse a non-member and an empty candidate", func(t *testing.T) {
		req := require.New(t)
		f := newCallFixture(t)
		f.connect(t, "bob")

		call := directCall(f, t)

		req.ErrorIs(f.service.AddIceCandidate(ctx, call.ID, "candidate:1", "mallory"), errors.ErrForbidden)
		req.ErrorIs(f.service.AddIceCandidate(ctx, call.ID, "", "alice"), errors.ErrValidation)
	})
}

func TestCallService_HistoryAndActive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t)
	f.connect(t, "bob")

	first := directCall(f, t)
	_, err := f.service.Reject(ctx, first.ID, "bob")
	req.NoError(err)
	second := directCall(f, t)

	history, err := f.service.History(ctx, "alice", 1, 0)
	req.NoError(err)
	req.Len(history, 2)

	active, err := f.service.Active(ctx, "alice")
	req.NoError(err)
	req.Len(active, 1)
	req.Equal(second.ID, active[0].ID)
}
