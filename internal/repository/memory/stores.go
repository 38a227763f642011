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

// ========== Titles ==========

type TitleStore struct {
	titles map[uint]model.Title
	mu     sync.RWMutex
}

func NewTitleStore() *TitleStore {
	return &TitleStore{titles: make(map[uint]model.Title)}
}

func (s *TitleStore) FindByID(ctx context.Context, id uint) (*model.Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	title, ok := s.titles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &title, nil
}

func (s *TitleStore) Save(ctx context.Context, title *model.Title) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title.CreatedAt.IsZero() {
		title.CreatedAt = time.Now()
	}
	s.titles[title.ID] = *title
	return nil
}

// ========== Users ==========

type UserStore struct {
	users map[uuid.UUID]model.User
	mu    sync.RWMutex
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]model.User)}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ========== Device certificates ==========

type CertificateStore struct {
	certs map[string]model.DeviceCertificate
	mu    sync.RWMutex
}

func NewCertificateStore() *CertificateStore {
	return &CertificateStore{certs: make(map[string]model.DeviceCertificate)}
}

func (s *CertificateStore) Create(ctx context.Context, cert *model.DeviceCertificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.certs[cert.Thumbprint]; ok {
		return repository.ErrDuplicate
	}
	s.certs[cert.Thumbprint] = *cert
	return nil
}

func (s *CertificateStore) FindByThumbprint(ctx context.Context, thumbprint string) (*model.DeviceCertificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certs[thumbprint]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cert, nil
}

func (s *CertificateStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceCertificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DeviceCertificate, 0)
	for _, cert := range s.certs {
		if cert.UserID == userID {
			out = append(out, cert)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out, nil
}

func (s *CertificateStore) MarkRevoked(ctx context.Context, thumbprint string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[thumbprint]
	if !ok || cert.RevokedAt != nil {
		return false, nil
	}
	cert.RevokedAt = &at
	s.certs[thumbprint] = cert
	return true, nil
}

// ========== Revocation list ==========

type RevocationList struct {
	denied map[string]struct{}
	mu     sync.RWMutex
}

func NewRevocationList() *RevocationList {
	return &RevocationList{denied: make(map[string]struct{})}
}

func (l *RevocationList) Add(ctx context.Context, thumbprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.denied[thumbprint] = struct{}{}
	return nil
}

func (l *RevocationList) Contains(ctx context.Context, thumbprint string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.denied[thumbprint]
	return ok, nil
}
