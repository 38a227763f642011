package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
)

// SessionStore keeps sessions in a map. A single mutex gives UpsertActive the
// same at-most-one-active guarantee the Postgres partial index provides.
type SessionStore struct {
	sessions map[uuid.UUID]model.Session
	mu       sync.RWMutex
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]model.Session)}
}

func (s *SessionStore) UpsertActive(ctx context.Context, candidate *model.Session) (*model.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.sessions {
		if existing.IsActive && existing.UserID == candidate.UserID && existing.DeviceID == candidate.DeviceID {
			existing.Renew(candidate)
			existing.UpdatedAt = time.Now()
			s.sessions[id] = existing
			return &existing, false, nil
		}
	}

	for _, existing := range s.sessions {
		if existing.SessionToken == candidate.SessionToken {
			return nil, false, repository.ErrDuplicate
		}
	}

	created := *candidate
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.IsActive = true
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	s.sessions[created.ID] = created
	*candidate = created
	return &created, true, nil
}

func (s *SessionStore) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (s *SessionStore) FindActiveByToken(ctx context.Context, userID uuid.UUID, token string) (*model.Session, error) {
	return s.findFirst(func(x *model.Session) bool {
		return x.IsActive && x.UserID == userID && x.SessionToken == token
	})
}

func (s *SessionStore) FindActiveByDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*model.Session, error) {
	return s.findFirst(func(x *model.Session) bool {
		return x.IsActive && x.UserID == userID && x.DeviceID == deviceID
	})
}

func (s *SessionStore) FindMostRecentActive(ctx context.Context, userID uuid.UUID) (*model.Session, error) {
	return s.findFirst(func(x *model.Session) bool {
		return x.IsActive && x.UserID == userID
	})
}

func (s *SessionStore) FindMostRecentByDeviceType(ctx context.Context, userID uuid.UUID, deviceType model.DeviceType) (*model.Session, error) {
	return s.findFirst(func(x *model.Session) bool {
		return x.UserID == userID && x.DeviceType == deviceType
	})
}

func (s *SessionStore) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]model.Session, error) {
	return s.filter(func(x *model.Session) bool {
		return x.UserID == userID && (!activeOnly || x.IsActive)
	}), nil
}

func (s *SessionStore) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !session.IsActive {
		return nil
	}
	if session.LastActivity != nil && !session.LastActivity.Before(at) {
		return nil
	}
	session.LastActivity = &at
	s.sessions[id] = session
	return nil
}

func (s *SessionStore) Deactivate(ctx context.Context, userID, id uuid.UUID, at time.Time) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		return nil, repository.ErrNotFound
	}
	session.Deactivate(at)
	s.sessions[id] = session
	return &session, nil
}

func (s *SessionStore) DeactivateDevice(ctx context.Context, userID uuid.UUID, deviceID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, session := range s.sessions {
		if session.IsActive && session.UserID == userID && session.DeviceID == deviceID {
			session.Deactivate(at)
			s.sessions[id] = session
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// filter returns matching sessions ordered most recently used first
func (s *SessionStore) filter(match func(*model.Session) bool) []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Session, 0)
	for _, session := range s.sessions {
		if match(&session) {
			out = append(out, session)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSeen().After(out[j].LastSeen())
	})
	return out
}

func (s *SessionStore) findFirst(match func(*model.Session) bool) (*model.Session, error) {
	found := s.filter(match)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}
