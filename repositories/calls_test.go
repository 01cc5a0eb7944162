package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func voiceCall(caller, receiver string, at time.Time) domain.Call {
	return domain.Call{
		ID:         uuid.NewString(),
		CallerID:   caller,
		ReceiverID: receiver,
		Type:       domain.CallVoice,
		Status:     domain.CallRinging,
		CreatedAt:  at,
	}
}

func TestCallRepository_SaveGet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewCallRepository(newTestDB(t))

	call := voiceCall("alice", "bob", time.Now().UTC())
	req.NoError(repo.SaveCall(ctx, call))

	fetched, err := repo.GetCall(ctx, call.ID)
	req.NoError(err)
	req.Equal(call.ID, fetched.ID)
	req.Equal(domain.CallRinging, fetched.Status)

	_, err = repo.GetCall(ctx, uuid.NewString())
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestCallRepository_UpdateCall(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewCallRepository(newTestDB(t))

	call := voiceCall("alice", "bob", time.Now().UTC())
	req.NoError(repo.SaveCall(ctx, call))

	updated, err := repo.UpdateCall(ctx, call.ID, func(c *domain.Call) error {
		c.Status = domain.CallAnswered
		c.SDPAnswer = "v=0"
		return nil
	})
	req.NoError(err)
	req.Equal(domain.CallAnswered, updated.Status)

	// A guard failure inside fn must leave the record untouched.
	_, err = repo.UpdateCall(ctx, call.ID, func(c *domain.Call) error {
		c.Status = domain.CallEnded
		return errors.ErrInvalidState
	})
	req.ErrorIs(err, errors.ErrInvalidState)

	fetched, err := repo.GetCall(ctx, call.ID)
	req.NoError(err)
	req.Equal(domain.CallAnswered, fetched.Status)
}

func TestCallRepository_ListCallsByUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewCallRepository(newTestDB(t))

	at := time.Now().UTC()
	oldest := voiceCall("alice", "bob", at)
	middle := voiceCall("bob", "alice", at.Add(time.Minute))
	newest := voiceCall("alice", "clara", at.Add(2*time.Minute))
	for _, c := range []domain.Call{oldest, middle, newest} {
		req.NoError(repo.SaveCall(ctx, c))
	}

	history, err := repo.ListCallsByUser(ctx, "alice", 1, 2)
	req.NoError(err)
	req.Equal([]string{newest.ID, middle.ID},
		lo.Map(history, func(c domain.Call, _ int) string { return c.ID }))

	secondPage, err := repo.ListCallsByUser(ctx, "alice", 2, 2)
	req.NoError(err)
	req.Equal([]string{oldest.ID},
		lo.Map(secondPage, func(c domain.Call, _ int) string { return c.ID }))

	// Bob only appears in the calls he is a member of.
	bobHistory, err := repo.ListCallsByUser(ctx, "bob", 1, 10)
	req.NoError(err)
	req.Len(bobHistory, 2)
}

func TestCallRepository_ListActiveCalls(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewCallRepository(newTestDB(t))

	at := time.Now().UTC()
	active := voiceCall("alice", "bob", at)
	finished := voiceCall("alice", "clara", at.Add(time.Minute))
	finished.Status = domain.CallEnded
	req.NoError(repo.SaveCall(ctx, active))
	req.NoError(repo.SaveCall(ctx, finished))

	calls, err := repo.ListActiveCalls(ctx, "alice")
	req.NoError(err)
	req.Len(calls, 1)
	req.Equal(active.ID, calls[0].ID)
}
