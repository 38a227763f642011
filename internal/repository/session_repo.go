package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const lastSeenOrder = "COALESCE(last_activity, login_time) DESC"

// SessionRepository handles database operations for Session
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// UpsertActive renews the active session for (user, device) or inserts candidate
// as a new one. The returned bool is true when a row was inserted.
// A concurrent insert for the same pair surfaces as ErrDuplicate.
func (r *SessionRepository) UpsertActive(ctx context.Context, candidate *model.Session) (*model.Session, bool, error) {
	var (
		result  *model.Session
		created bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND device_id = ? AND is_active", candidate.UserID, candidate.DeviceID).
			First(&existing).Error
		switch translate(err) {
		case nil:
			existing.Renew(candidate)
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = &existing
			return nil
		case ErrNotFound:
			candidate.IsActive = true
			if err := tx.Create(candidate).Error; err != nil {
				return err
			}
			result, created = candidate, true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return result, created, nil
}

// FindByID finds a session owned by userID
func (r *SessionRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// FindActiveByToken finds the active session carrying token
func (r *SessionRepository) FindActiveByToken(ctx context.Context, userID uuid.UUID, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_token = ? AND is_active", userID, token).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// FindActiveByDevice finds the active session of a device
func (r *SessionRepository) FindActiveByDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ? AND is_active", userID, deviceID).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// FindMostRecentActive returns the user's most recently used active session
func (r *SessionRepository) FindMostRecentActive(ctx context.Context, userID uuid.UUID) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active", userID).
		Order(lastSeenOrder).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// FindMostRecentByDeviceType returns the user's most recently used session of a
// device type, active or not
func (r *SessionRepository) FindMostRecentByDeviceType(ctx context.Context, userID uuid.UUID, deviceType model.DeviceType) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_type = ?", userID, deviceType).
		Order(lastSeenOrder).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// ListByUser returns the user's sessions, most recently used first
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]model.Session, error) {
	var sessions []model.Session
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active")
	}
	err := q.Order(lastSeenOrder).Find(&sessions).Error
	return sessions, translate(err)
}

// TouchActivity advances last_activity of an active session. Older timestamps
// are ignored so the value never moves backwards.
func (r *SessionRepository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND is_active AND (last_activity IS NULL OR last_activity < ?)", id, at).
		Update("last_activity", at).Error
}

// Deactivate logs a session out and returns its current state.
// An already inactive session is returned unchanged.
func (r *SessionRepository) Deactivate(ctx context.Context, userID, id uuid.UUID, at time.Time) (*model.Session, error) {
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND user_id = ? AND is_active", id, userID).
		Updates(map[string]interface{}{
			"is_active":   false,
			"logout_time": at,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, userID, id)
}

// DeactivateDevice logs out every active session of a device
func (r *SessionRepository) DeactivateDevice(ctx context.Context, userID uuid.UUID, deviceID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND device_id = ? AND is_active", userID, deviceID).
		Updates(map[string]interface{}{
			"is_active":   false,
			"logout_time": at,
		})
	return res.RowsAffected, res.Error
}

// Delete removes a session permanently
func (r *SessionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Session{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
