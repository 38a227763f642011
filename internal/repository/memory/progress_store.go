package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
)

type progressKey struct {
	userID  uuid.UUID
	titleID uint
}

// ProgressStore keeps watch progress keyed by (user, title)
type ProgressStore struct {
	rows map[progressKey]model.WatchProgress
	mu   sync.RWMutex
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{rows: make(map[progressKey]model.WatchProgress)}
}

func (s *ProgressStore) Upsert(ctx context.Context, p *model.WatchProgress) (*model.WatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{p.UserID, p.TitleID}
	row := *p
	if existing, ok := s.rows[key]; ok {
		row.ID = existing.ID
	} else if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	s.rows[key] = row
	*p = row
	return &row, nil
}

func (s *ProgressStore) FindByTitle(ctx context.Context, userID uuid.UUID, titleID uint) (*model.WatchProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[progressKey{userID, titleID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (s *ProgressStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.WatchProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WatchProgress, 0)
	for key, row := range s.rows {
		if key.userID == userID {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastWatchedAt.After(out[j].LastWatchedAt)
	})
	return out, nil
}

func (s *ProgressStore) DeleteByTitle(ctx context.Context, userID uuid.UUID, titleID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID, titleID}
	if _, ok := s.rows[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, key)
	return nil
}
