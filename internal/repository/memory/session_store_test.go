package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(userID uuid.UUID, deviceID string, at time.Time) *model.Session {
	return &model.Session{
		UserID:       userID,
		DeviceID:     deviceID,
		DeviceType:   model.DeviceTypeComputer,
		DeviceName:   "Desk",
		LoginTime:    at,
		SessionToken: uuid.NewString(),
	}
}

func TestSessionStore_UpsertActiveRenews(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	userID := uuid.New()
	now := time.Now()

	first, created, err := store.UpsertActive(ctx, newSession(userID, "dev-1", now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.IsActive)

	renewal := newSession(userID, "dev-1", now.Add(time.Minute))
	renewal.DeviceName = "Renamed"
	second, created, err := store.UpsertActive(ctx, renewal)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)
	assert.Equal(t, "Renamed", second.DeviceName)

	active, err := store.ListByUser(ctx, userID, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSessionStore_NewRowAfterLogout(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	userID := uuid.New()
	now := time.Now()

	first, _, err := store.UpsertActive(ctx, newSession(userID, "dev-1", now))
	require.NoError(t, err)

	out, err := store.Deactivate(ctx, userID, first.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	require.NotNil(t, out.LogoutTime)

	second, created, err := store.UpsertActive(ctx, newSession(userID, "dev-1", now.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = store.FindActiveByToken(ctx, userID, first.SessionToken)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionStore_TouchActivityIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	userID := uuid.New()
	now := time.Now()

	s, _, err := store.UpsertActive(ctx, newSession(userID, "dev-1", now))
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, store.TouchActivity(ctx, s.ID, later))
	require.NoError(t, store.TouchActivity(ctx, s.ID, now.Add(time.Minute)))

	got, err := store.FindByID(ctx, userID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, later, *got.LastActivity)
}

func TestSessionStore_MostRecentActive(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	userID := uuid.New()
	now := time.Now()

	older, _, err := store.UpsertActive(ctx, newSession(userID, "old", now.Add(-time.Hour)))
	require.NoError(t, err)
	newer, _, err := store.UpsertActive(ctx, newSession(userID, "new", now))
	require.NoError(t, err)

	got, err := store.FindMostRecentActive(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	require.NoError(t, store.TouchActivity(ctx, older.ID, now.Add(time.Minute)))
	got, err = store.FindMostRecentActive(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	_, err = store.FindMostRecentActive(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionStore_DeactivateDeviceAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	userID := uuid.New()

	s, _, err := store.UpsertActive(ctx, newSession(userID, "cert-thumb", time.Now()))
	require.NoError(t, err)

	n, err := store.DeactivateDevice(ctx, userID, "cert-thumb", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.FindActiveByDevice(ctx, userID, "cert-thumb")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, uuid.New(), s.ID), repository.ErrNotFound)
	require.NoError(t, store.Delete(ctx, userID, s.ID))
	_, err = store.FindByID(ctx, userID, s.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProgressStore_UpsertKeepsRow(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	userID := uuid.New()

	first, err := store.Upsert(ctx, &model.WatchProgress{UserID: userID, TitleID: 7, PositionSeconds: 10, LastWatchedAt: time.Now()})
	require.NoError(t, err)
	second, err := store.Upsert(ctx, &model.WatchProgress{UserID: userID, TitleID: 7, PositionSeconds: 5, LastWatchedAt: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	rows, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].PositionSeconds)

	require.NoError(t, store.DeleteByTitle(ctx, userID, 7))
	assert.ErrorIs(t, store.DeleteByTitle(ctx, userID, 7), repository.ErrNotFound)
}
