package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/session"
)

func TestServiceGetSession(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	created, err := svc.Create(ctx, affirmation.ModeCustom)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Session.ID, got.Session.ID)
	assert.Equal(t, affirmation.ModeCustom, got.Session.Mode)
	assert.Equal(t, affirmation.StateEditing, got.Session.State)
	assert.Empty(t, got.Busy)
}

func TestServiceCreateDefaultsToAIMode(t *testing.T) {
	svc := session.NewService()
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, affirmation.ModeAI, created.Session.Mode)

	_, err = svc.Create(context.Background(), "karaoke")
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := session.NewService()
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestServiceUpdateReturnsSnapshotOnError(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()
	created, err := svc.Create(ctx, affirmation.ModeCustom)
	require.NoError(t, err)

	snap, err := svc.Update(ctx, created.Session.ID, func(s *affirmation.Session) error {
		return s.Confirm("I am calm")
	})
	require.NoError(t, err)
	assert.Equal(t, affirmation.StatePendingValidation, snap.Session.State)

	boom := errors.New("boom")
	snap, err = svc.Update(ctx, created.Session.ID, func(*affirmation.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, affirmation.StatePendingValidation, snap.Session.State)
}

func TestServiceSnapshotsAreCopies(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()
	created, err := svc.Create(ctx, affirmation.ModeCustom)
	require.NoError(t, err)

	snap, err := svc.Update(ctx, created.Session.ID, func(s *affirmation.Session) error {
		return s.Confirm("A\nB")
	})
	require.NoError(t, err)
	snap.Session.Items[0].Text = "mutated"

	again, err := svc.Get(ctx, created.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", again.Session.Items[0].Text)
}

func TestServiceBeginRejectsDuplicateAction(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()
	created, err := svc.Create(ctx, affirmation.ModeAI)
	require.NoError(t, err)
	id := created.Session.ID

	release, err := svc.Begin(ctx, id, session.ActionGenerate)
	require.NoError(t, err)

	_, err = svc.Begin(ctx, id, session.ActionGenerate)
	assert.ErrorIs(t, err, session.ErrActionInFlight)

	other, err := svc.Begin(ctx, id, session.ActionSynthesize)
	require.NoError(t, err, "independent actions are not coordinated")
	other()

	snap, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.Busy[session.ActionGenerate])
	assert.False(t, snap.Busy[session.ActionSynthesize])

	release()
	release()
	snap, err = svc.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, snap.Busy[session.ActionGenerate])

	again, err := svc.Begin(ctx, id, session.ActionGenerate)
	require.NoError(t, err)
	again()
}

func TestServiceDelete(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()
	created, err := svc.Create(ctx, affirmation.ModeAI)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Count())

	require.NoError(t, svc.Delete(ctx, created.Session.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.Session.ID), session.ErrSessionNotFound)
	assert.Zero(t, svc.Count())
}

func TestServiceVersionGrowsWithEveryChange(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()
	created, err := svc.Create(ctx, affirmation.ModeAI)
	require.NoError(t, err)
	id := created.Session.ID
	assert.Equal(t, uint64(1), created.Version)

	release, err := svc.Begin(ctx, id, session.ActionGenerate)
	require.NoError(t, err)
	busy, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, busy.Version, created.Version)

	updated, err := svc.Update(ctx, id, func(s *affirmation.Session) error {
		return s.BeginGenerate("calm")
	})
	require.NoError(t, err)
	assert.Greater(t, updated.Version, busy.Version)

	release()
	released, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, released.Version, updated.Version)

	again, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, released.Version, again.Version)
}
