package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/metrics"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/rs/zerolog"
)

const unknownDeviceLabel = "Unknown Device"

// ProgressService reconciles watch progress across a user's devices.
// The most recently received report always wins: a stale report from a device
// that was offline can move the position backwards, and that is accepted.
type ProgressService struct {
	progress ProgressStore
	sessions SessionStore
	catalog  Catalog
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewProgressService(progress ProgressStore, sessions SessionStore, catalog Catalog, notifier Notifier, log zerolog.Logger) *ProgressService {
	return &ProgressService{
		progress: progress,
		sessions: sessions,
		catalog:  catalog,
		notifier: notifierOrNop(notifier),
		log:      log.With().Str("component", "progress").Logger(),
		now:      time.Now,
	}
}

// Report records the caller's position on a title, stamped with server time
// and the reporting session's device
func (s *ProgressService) Report(ctx context.Context, id *model.Identity, titleID uint, positionSeconds int) (*model.WatchProgress, error) {
	if !id.HasSession() {
		return nil, ErrSessionNotFound
	}
	if positionSeconds < 0 {
		return nil, ErrInvalidProgress
	}

	exists, err := s.catalog.TitleExists(ctx, titleID)
	if err != nil {
		return nil, persistence(err)
	}
	if !exists {
		return nil, ErrTitleNotFound
	}
	duration, err := s.catalog.TitleDuration(ctx, titleID)
	if err != nil {
		return nil, persistence(err)
	}

	session := id.Session
	percentage := model.Percentage(positionSeconds, duration)
	row := &model.WatchProgress{
		UserID:                id.UserID,
		TitleID:               titleID,
		PositionSeconds:       positionSeconds,
		ProgressPercentage:    percentage,
		Completed:             percentage >= model.CompletionThreshold,
		LastWatchedAt:         s.now().UTC(),
		LastWatchedDeviceType: session.DeviceType,
		LastWatchedDeviceID:   session.DeviceID,
		LastWatchedDeviceName: session.DeviceName,
	}

	saved, err := s.progress.Upsert(ctx, row)
	if err != nil {
		s.log.Error().Err(err).
			Str("op", "report").
			Str("user_id", id.UserID.String()).
			Str("device_id", session.DeviceID).
			Uint("title_id", titleID).
			Msg("upsert progress")
		return nil, persistence(err)
	}

	metrics.ProgressReportsTotal.WithLabelValues(string(session.DeviceType)).Inc()
	s.notifier.SendToUser(id.UserID, &model.WSEvent{
		Type: model.WSEventProgressUpdated,
		Payload: model.ProgressUpdatedEvent{
			TitleID:            saved.TitleID,
			PositionSeconds:    saved.PositionSeconds,
			ProgressPercentage: saved.ProgressPercentage,
			Completed:          saved.Completed,
			DeviceType:         saved.LastWatchedDeviceType,
			DeviceID:           saved.LastWatchedDeviceID,
			DeviceName:         saved.LastWatchedDeviceName,
		},
	}, session.ID)

	return saved, nil
}

// Get returns the user's progress on one title
func (s *ProgressService) Get(ctx context.Context, userID uuid.UUID, titleID uint) (*model.WatchProgress, error) {
	row, err := s.progress.FindByTitle(ctx, userID, titleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, persistence(err)
	}
	return row, nil
}

// Delete forgets the user's progress on one title
func (s *ProgressService) Delete(ctx context.Context, userID uuid.UUID, titleID uint) error {
	if err := s.progress.DeleteByTitle(ctx, userID, titleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProgressNotFound
		}
		s.log.Error().Err(err).
			Str("op", "delete").
			Str("user_id", userID.String()).
			Uint("title_id", titleID).
			Msg("delete progress")
		return persistence(err)
	}
	return nil
}

// Sync lists every title the user has progress on, newest first, each labelled
// with the device it was last watched on
func (s *ProgressService) Sync(ctx context.Context, userID uuid.UUID) ([]model.SyncItem, error) {
	rows, err := s.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistence(err)
	}

	labels := make(map[model.DeviceType]*model.Session)
	items := make([]model.SyncItem, 0, len(rows))
	for i := range rows {
		row := &rows[i]

		session, seen := labels[row.LastWatchedDeviceType]
		if !seen {
			session, err = s.sessions.FindMostRecentByDeviceType(ctx, userID, row.LastWatchedDeviceType)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, persistence(err)
			}
			labels[row.LastWatchedDeviceType] = session
		}

		item := model.SyncItem{
			TitleID:            row.TitleID,
			PositionSeconds:    row.PositionSeconds,
			ProgressPercentage: row.ProgressPercentage,
			Completed:          row.Completed,
			LastWatchedAt:      row.LastWatchedAt,
			DeviceType:         row.LastWatchedDeviceType,
			DeviceLabel:        deviceLabel(session, row),
		}
		// Titles are decoration here; a catalog miss must not hide the row
		if title, err := s.catalog.Title(ctx, row.TitleID); err == nil {
			item.TitleName = title.Name
		}
		items = append(items, item)
	}
	return items, nil
}

func deviceLabel(session *model.Session, row *model.WatchProgress) string {
	if session != nil {
		if session.DeviceName != "" {
			return session.DeviceName
		}
		if session.ComputerName != "" {
			return session.ComputerName
		}
	}
	if row.LastWatchedDeviceName != "" {
		return row.LastWatchedDeviceName
	}
	return unknownDeviceLabel
}
