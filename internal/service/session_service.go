package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/metrics"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/quocanhngo/reelsync/pkg/fingerprint"
	"github.com/rs/zerolog"
)

// SessionService owns the session lifecycle per (user, device)
type SessionService struct {
	sessions SessionStore
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewSessionService(sessions SessionStore, notifier Notifier, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		notifier: notifierOrNop(notifier),
		log:      log.With().Str("component", "sessions").Logger(),
		now:      time.Now,
	}
}

// ==================== Create / Renew ====================

// FindOrCreate is the only way a session comes into existence. An active
// session for the same (user, device) is renewed in place with a fresh token.
// Losing a concurrent-login race is retried once as a renewal.
func (s *SessionService) FindOrCreate(ctx context.Context, lc model.LoginContext) (*model.Session, error) {
	now := s.now().UTC()

	for attempt := 0; attempt < 2; attempt++ {
		candidate := newCandidate(lc, now)

		session, created, err := s.sessions.UpsertActive(ctx, candidate)
		if err == nil {
			outcome := "renewed"
			if created {
				outcome = "created"
			}
			metrics.SessionsTotal.WithLabelValues(outcome).Inc()
			s.log.Info().
				Str("op", "find_or_create").
				Str("user_id", lc.UserID.String()).
				Str("device_id", lc.DeviceID).
				Str("session_id", session.ID.String()).
				Str("outcome", outcome).
				Msg("session ready")
			return session, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			s.log.Error().Err(err).
				Str("op", "find_or_create").
				Str("user_id", lc.UserID.String()).
				Str("device_id", lc.DeviceID).
				Msg("upsert session")
			return nil, persistence(err)
		}
		s.log.Debug().
			Str("user_id", lc.UserID.String()).
			Str("device_id", lc.DeviceID).
			Int("attempt", attempt+1).
			Msg("concurrent login detected")
	}

	s.log.Warn().
		Str("op", "find_or_create").
		Str("user_id", lc.UserID.String()).
		Str("device_id", lc.DeviceID).
		Msg("session still conflicting after retry")
	return nil, ErrConflictingSession
}

// RegisterDevice opens or renews the session of an extra device for a user
// who is already signed in elsewhere. The device identifier is derived from info.
func (s *SessionService) RegisterDevice(ctx context.Context, userID uuid.UUID, deviceType string, info fingerprint.DeviceInfo, clientIP string) (*model.Session, error) {
	return s.FindOrCreate(ctx, model.LoginContext{
		UserID:     userID,
		DeviceID:   fingerprint.Derive(info),
		DeviceType: model.ResolveDeviceType(deviceType, info.UserAgent),
		DeviceName: fingerprint.DisplayName(info),
		Device:     info,
		ClientIP:   clientIP,
	})
}

func newCandidate(lc model.LoginContext, now time.Time) *model.Session {
	deviceType := lc.DeviceType
	if deviceType == "" {
		deviceType = model.DeviceTypeUnknown
	}

	session := &model.Session{
		UserID:       lc.UserID,
		DeviceType:   deviceType,
		DeviceID:     lc.DeviceID,
		DeviceName:   lc.DeviceName,
		ComputerName: lc.Device.ComputerName,
		MacAddress:   lc.Device.MacAddress,
		ProcessorID:  lc.Device.ProcessorID,
		LocalIP:      lc.Device.LocalIP,
		UserAgent:    lc.Device.UserAgent,
		ClientIP:     lc.ClientIP,
		LoginTime:    now,
		LastActivity: &now,
		IsActive:     true,
		SessionToken: uuid.NewString(),
	}

	if cert := lc.Certificate; cert != nil {
		thumbprint := cert.Thumbprint
		validFrom, validTo := cert.ValidFrom, cert.ValidTo
		session.CertificateThumbprint = &thumbprint
		session.CertificateSubject = cert.Subject
		session.CertificateValidFrom = &validFrom
		session.CertificateValidTo = &validTo
	}
	return session
}

// discard deactivates a session whose setup could not be completed. It does
// not count as a logout and nobody is notified.
func (s *SessionService) discard(ctx context.Context, session *model.Session) {
	if _, err := s.sessions.Deactivate(ctx, session.UserID, session.ID, s.now().UTC()); err != nil {
		s.log.Error().Err(err).
			Str("op", "discard").
			Str("user_id", session.UserID.String()).
			Str("session_id", session.ID.String()).
			Msg("deactivate unfinished session")
	}
}

// ==================== Activity ====================

// TouchActivity records that a session was just used. Time never moves backwards.
func (s *SessionService) TouchActivity(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	if err := s.sessions.TouchActivity(ctx, sessionID, at.UTC()); err != nil {
		return persistence(err)
	}
	return nil
}

// ==================== Queries ====================

// Current returns the active session carrying token
func (s *SessionService) Current(ctx context.Context, userID uuid.UUID, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.sessions.FindActiveByToken(ctx, userID, token)
	return session, s.lookupErr(err)
}

// MostRecentActive returns the user's most recently used active session
func (s *SessionService) MostRecentActive(ctx context.Context, userID uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.FindMostRecentActive(ctx, userID)
	return session, s.lookupErr(err)
}

// ActiveForDevice returns the active session of a device
func (s *SessionService) ActiveForDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*model.Session, error) {
	session, err := s.sessions.FindActiveByDevice(ctx, userID, deviceID)
	return session, s.lookupErr(err)
}

// Get returns one of the user's sessions regardless of state
func (s *SessionService) Get(ctx context.Context, userID, sessionID uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, userID, sessionID)
	return session, s.lookupErr(err)
}

// ListAll returns every session of the user, most recently used first
func (s *SessionService) ListAll(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, persistence(err)
	}
	return sessions, nil
}

// ListActive returns the user's active sessions, most recently used first
func (s *SessionService) ListActive(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, persistence(err)
	}
	return sessions, nil
}

func (s *SessionService) lookupErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrSessionNotFound
	default:
		return persistence(err)
	}
}

// ==================== Logout / Delete ====================

// Logout deactivates a session. Logging out an inactive session returns it unchanged.
func (s *SessionService) Logout(ctx context.Context, userID, sessionID uuid.UUID) (*model.Session, error) {
	before, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !before.IsActive {
		return before, nil
	}

	session, err := s.sessions.Deactivate(ctx, userID, sessionID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		s.log.Error().Err(err).
			Str("op", "logout").
			Str("user_id", userID.String()).
			Str("session_id", sessionID.String()).
			Msg("deactivate session")
		return nil, persistence(err)
	}

	metrics.SessionLogoutsTotal.WithLabelValues("logout").Inc()
	s.publish(userID, model.WSEventSessionLoggedOut, before)
	return session, nil
}

// Delete removes a session permanently
func (s *SessionService) Delete(ctx context.Context, userID, sessionID uuid.UUID) error {
	before, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	if err := s.sessions.Delete(ctx, userID, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		s.log.Error().Err(err).
			Str("op", "delete").
			Str("user_id", userID.String()).
			Str("session_id", sessionID.String()).
			Msg("delete session")
		return persistence(err)
	}

	if before.IsActive {
		s.publish(userID, model.WSEventSessionLoggedOut, before)
	}
	return nil
}

// RevokeDevice deactivates every active session of a device, used when its
// certificate is revoked
func (s *SessionService) RevokeDevice(ctx context.Context, userID uuid.UUID, deviceID string) (int64, error) {
	n, err := s.sessions.DeactivateDevice(ctx, userID, deviceID, s.now().UTC())
	if err != nil {
		s.log.Error().Err(err).
			Str("op", "revoke_device").
			Str("user_id", userID.String()).
			Str("device_id", deviceID).
			Msg("deactivate device sessions")
		return 0, persistence(err)
	}
	if n > 0 {
		metrics.SessionLogoutsTotal.WithLabelValues("revoked").Add(float64(n))
		s.notifier.SendToUser(userID, &model.WSEvent{
			Type:    model.WSEventSessionRevoked,
			Payload: model.SessionEvent{DeviceID: deviceID},
		}, uuid.Nil)
	}
	return n, nil
}

func (s *SessionService) publish(userID uuid.UUID, eventType string, session *model.Session) {
	s.notifier.SendToUser(userID, &model.WSEvent{
		Type: eventType,
		Payload: model.SessionEvent{
			SessionID:  session.ID,
			DeviceID:   session.DeviceID,
			DeviceType: session.DeviceType,
		},
	}, uuid.Nil)
}
