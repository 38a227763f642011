package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/pkg/mailer"
)

// SessionStore persists sessions. Implemented by repository.SessionRepository
// and memory.SessionStore.
type SessionStore interface {
	UpsertActive(ctx context.Context, candidate *model.Session) (*model.Session, bool, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Session, error)
	FindActiveByToken(ctx context.Context, userID uuid.UUID, token string) (*model.Session, error)
	FindActiveByDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*model.Session, error)
	FindMostRecentActive(ctx context.Context, userID uuid.UUID) (*model.Session, error)
	FindMostRecentByDeviceType(ctx context.Context, userID uuid.UUID, deviceType model.DeviceType) (*model.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]model.Session, error)
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, userID, id uuid.UUID, at time.Time) (*model.Session, error)
	DeactivateDevice(ctx context.Context, userID uuid.UUID, deviceID string, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type ProgressStore interface {
	Upsert(ctx context.Context, p *model.WatchProgress) (*model.WatchProgress, error)
	FindByTitle(ctx context.Context, userID uuid.UUID, titleID uint) (*model.WatchProgress, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.WatchProgress, error)
	DeleteByTitle(ctx context.Context, userID uuid.UUID, titleID uint) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type CertificateStore interface {
	Create(ctx context.Context, cert *model.DeviceCertificate) error
	FindByThumbprint(ctx context.Context, thumbprint string) (*model.DeviceCertificate, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceCertificate, error)
	MarkRevoked(ctx context.Context, thumbprint string, at time.Time) (bool, error)
}

// RevocationList is the local certificate deny-list
type RevocationList interface {
	Add(ctx context.Context, thumbprint string) error
	Contains(ctx context.Context, thumbprint string) (bool, error)
}

// Catalog is the read-only title registry
type Catalog interface {
	Title(ctx context.Context, id uint) (*model.Title, error)
	TitleDuration(ctx context.Context, id uint) (int, error)
	TitleExists(ctx context.Context, id uint) (bool, error)
}

// Notifier pushes events to a user's other connected devices, best-effort
type Notifier interface {
	SendToUser(userID uuid.UUID, event *model.WSEvent, exceptSession uuid.UUID)
}

type nopNotifier struct{}

func (nopNotifier) SendToUser(uuid.UUID, *model.WSEvent, uuid.UUID) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// DeviceAlerter mails the account owner about certificate enrollment and
// revocation. *mailer.Mailer satisfies it.
type DeviceAlerter interface {
	SendDeviceEnrolled(toEmail, name string, device mailer.DeviceNotice) error
	SendDeviceRevoked(toEmail, name string, device mailer.DeviceNotice) error
}
