package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/quocanhngo/reelsync/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginContext(userID uuid.UUID, deviceID string) model.LoginContext {
	return model.LoginContext{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceType: model.DeviceTypeComputer,
		DeviceName: "Desk",
		ClientIP:   "198.51.100.4",
	}
}

func TestSessionService_SequentialLoginsRenewOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "dev-1"))
	require.NoError(t, err)

	next := loginContext(userID, "dev-1")
	next.ClientIP = "198.51.100.99"
	second, err := f.sessionSvc.FindOrCreate(ctx, next)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)
	assert.True(t, second.LoginTime.After(first.LoginTime))
	assert.Equal(t, "198.51.100.99", second.ClientIP)

	active, err := f.sessionSvc.ListActive(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// the rotated-out token no longer resolves
	_, err = f.sessionSvc.Current(ctx, userID, first.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_ConcurrentLoginsYieldOneActiveRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "same-device"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	active, err := f.sessionSvc.ListActive(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

// racingStore reports a uniqueness violation a fixed number of times
type racingStore struct {
	*memory.SessionStore
	conflicts int
	calls     int
	err       error
}

func (s *racingStore) UpsertActive(ctx context.Context, candidate *model.Session) (*model.Session, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	if s.calls <= s.conflicts {
		return nil, false, repository.ErrDuplicate
	}
	return s.SessionStore.UpsertActive(ctx, candidate)
}

func TestSessionService_RetriesOnceOnConflict(t *testing.T) {
	store := &racingStore{SessionStore: memory.NewSessionStore(), conflicts: 1}
	svc := NewSessionService(store, nil, zerolog.Nop())

	session, err := svc.FindOrCreate(context.Background(), loginContext(uuid.New(), "dev"))
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.Equal(t, 2, store.calls)
}

func TestSessionService_ConflictSurfacesAfterRetry(t *testing.T) {
	store := &racingStore{SessionStore: memory.NewSessionStore(), conflicts: 5}
	svc := NewSessionService(store, nil, zerolog.Nop())

	_, err := svc.FindOrCreate(context.Background(), loginContext(uuid.New(), "dev"))
	assert.ErrorIs(t, err, ErrConflictingSession)
	assert.Equal(t, 2, store.calls)
}

func TestSessionService_PersistenceFailure(t *testing.T) {
	store := &racingStore{SessionStore: memory.NewSessionStore(), err: errors.New("connection reset")}
	svc := NewSessionService(store, nil, zerolog.Nop())

	_, err := svc.FindOrCreate(context.Background(), loginContext(uuid.New(), "dev"))
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestSessionService_LogoutThenCurrentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	session, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "dev-1"))
	require.NoError(t, err)

	current, err := f.sessionSvc.Current(ctx, userID, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, session.ID, current.ID)

	out, err := f.sessionSvc.Logout(ctx, userID, session.ID)
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	require.NotNil(t, out.LogoutTime)

	_, err = f.sessionSvc.Current(ctx, userID, session.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// logging out again leaves the row as it was
	again, err := f.sessionSvc.Logout(ctx, userID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, *out.LogoutTime, *again.LogoutTime)

	assert.Len(t, f.notifier.ofType(model.WSEventSessionLoggedOut), 1)
}

func TestSessionService_ReloginAfterLogoutCreatesFreshRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "dev-1"))
	require.NoError(t, err)
	_, err = f.sessionSvc.Logout(ctx, userID, first.ID)
	require.NoError(t, err)

	second, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "dev-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)

	all, err := f.sessionSvc.ListAll(ctx, userID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestSessionService_UnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.sessionSvc.Logout(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.sessionSvc.Delete(ctx, userID, uuid.New()), ErrSessionNotFound)
	_, err = f.sessionSvc.Current(ctx, userID, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_DeleteIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	session, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "dev-1"))
	require.NoError(t, err)

	// another user cannot delete it
	assert.ErrorIs(t, f.sessionSvc.Delete(ctx, uuid.New(), session.ID), ErrSessionNotFound)

	require.NoError(t, f.sessionSvc.Delete(ctx, userID, session.ID))
	_, err = f.sessionSvc.Get(ctx, userID, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_TouchActivityNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	session, err := f.sessionSvc.FindOrCreate(ctx, loginContext(userID, "dev-1"))
	require.NoError(t, err)

	later := session.LoginTime.Add(time.Hour)
	require.NoError(t, f.sessionSvc.TouchActivity(ctx, session.ID, later))
	require.NoError(t, f.sessionSvc.TouchActivity(ctx, session.ID, session.LoginTime.Add(time.Minute)))

	got, err := f.sessionSvc.Get(ctx, userID, session.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivity.Equal(later))
}
