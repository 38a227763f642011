package service

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/metrics"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/quocanhngo/reelsync/pkg/auth"
	"github.com/quocanhngo/reelsync/pkg/certauth"
	"github.com/quocanhngo/reelsync/pkg/fingerprint"
	"github.com/quocanhngo/reelsync/pkg/mailer"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// CertificateService enrolls devices with client certificates and validates
// them without any network revocation check
type CertificateService struct {
	authority  *certauth.Authority
	certs      CertificateStore
	users      UserStore
	sessions   *SessionService
	revoked    RevocationList
	jwtManager *auth.JWTManager
	alerts     DeviceAlerter
	log        zerolog.Logger
	now        func() time.Time
}

func NewCertificateService(
	authority *certauth.Authority,
	certs CertificateStore,
	users UserStore,
	sessions *SessionService,
	revoked RevocationList,
	jwtManager *auth.JWTManager,
	alerts DeviceAlerter,
	log zerolog.Logger,
) *CertificateService {
	return &CertificateService{
		authority:  authority,
		certs:      certs,
		users:      users,
		sessions:   sessions,
		revoked:    revoked,
		jwtManager: jwtManager,
		alerts:     alerts,
		log:        log.With().Str("component", "certificates").Logger(),
		now:        time.Now,
	}
}

// ==================== Enrollment ====================

// Enroll issues a certificate for a device of the account identified by
// email and password and opens its session. The private key is returned
// once and never stored.
func (s *CertificateService) Enroll(ctx context.Context, req model.EnrollRequest) (*model.EnrollResponse, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEnrollment
		}
		return nil, persistence(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.log.Info().Str("user_id", user.ID.String()).Msg("enrollment with wrong password")
		return nil, ErrEnrollment
	}

	deviceType := model.ResolveDeviceType(req.DeviceType, req.UserAgent)
	now := s.now().UTC()

	issued, err := s.authority.Issue(certauth.EnrollmentRequest{
		DeviceName:   req.DeviceName,
		DeviceType:   string(deviceType),
		ComputerName: req.ComputerName,
		LocalIP:      req.LocalIP,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}
	cert := issued.Certificate

	session, err := s.sessions.FindOrCreate(ctx, model.LoginContext{
		UserID:     user.ID,
		DeviceID:   issued.Thumbprint,
		DeviceType: deviceType,
		DeviceName: req.DeviceName,
		Device: fingerprint.DeviceInfo{
			ComputerName: req.ComputerName,
			LocalIP:      req.LocalIP,
			UserAgent:    req.UserAgent,
		},
		ClientIP: req.ClientIP,
		Certificate: &model.CertificateBinding{
			Thumbprint: issued.Thumbprint,
			Subject:    cert.Subject.String(),
			ValidFrom:  cert.NotBefore,
			ValidTo:    cert.NotAfter,
		},
	})
	if err != nil {
		return nil, err
	}

	binding := &model.DeviceCertificate{
		Thumbprint:   issued.Thumbprint,
		UserID:       user.ID,
		SessionID:    session.ID,
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		DeviceName:   req.DeviceName,
		DeviceType:   deviceType,
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
		RegisteredAt: now,
	}
	if err := s.certs.Create(ctx, binding); err != nil {
		s.log.Error().Err(err).
			Str("op", "enroll").
			Str("user_id", user.ID.String()).
			Str("device_id", issued.Thumbprint).
			Msg("store certificate binding")
		s.sessions.discard(ctx, session)
		return nil, persistence(err)
	}

	metrics.CertificatesIssuedTotal.Inc()
	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("device_id", issued.Thumbprint).
		Str("device_type", string(deviceType)).
		Msg("device enrolled")
	if s.alerts != nil {
		s.alert(user, binding, s.alerts.SendDeviceEnrolled)
	}

	return &model.EnrollResponse{
		DeviceID:     issued.Thumbprint,
		Certificate:  issued.CertPEM,
		PrivateKey:   issued.KeyPEM,
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
		SessionToken: session.SessionToken,
	}, nil
}

// ==================== Validation ====================

// Validate checks a presented certificate against the local authority and the
// deny-list. The returned error carries the precise reason for logging only.
func (s *CertificateService) Validate(ctx context.Context, cert *x509.Certificate) (*model.DeviceCertificate, error) {
	if err := s.authority.Validate(cert, s.now()); err != nil {
		return nil, err
	}

	thumbprint := certauth.Thumbprint(cert)
	denied, err := s.revoked.Contains(ctx, thumbprint)
	if err != nil {
		return nil, persistence(err)
	}
	if denied {
		return nil, ErrCertificateRevoked
	}

	binding, err := s.certs.FindByThumbprint(ctx, thumbprint)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, persistence(err)
	}
	if binding.IsRevoked() {
		return nil, ErrCertificateRevoked
	}
	return binding, nil
}

// ==================== Revocation ====================

// Revoke revokes a device certificate of the user and ends its sessions.
// Revoking twice is not an error.
func (s *CertificateService) Revoke(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	binding, err := s.certs.FindByThumbprint(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrCertificateNotFound
		}
		return false, persistence(err)
	}
	if binding.UserID != userID {
		return false, ErrCertificateNotFound
	}

	first, err := s.certs.MarkRevoked(ctx, deviceID, s.now().UTC())
	if err != nil {
		s.log.Error().Err(err).
			Str("op", "revoke").
			Str("user_id", userID.String()).
			Str("device_id", deviceID).
			Msg("mark certificate revoked")
		return false, persistence(err)
	}
	if _, err := s.sessions.RevokeDevice(ctx, userID, deviceID); err != nil {
		return false, err
	}
	if err := s.revoked.Add(ctx, deviceID); err != nil {
		s.log.Error().Err(err).
			Str("op", "revoke").
			Str("user_id", userID.String()).
			Str("device_id", deviceID).
			Msg("add to deny-list")
		return false, persistence(err)
	}

	if first {
		s.log.Info().Str("user_id", userID.String()).Str("device_id", deviceID).Msg("certificate revoked")
		if user, err := s.users.FindByID(ctx, userID); err == nil && s.alerts != nil {
			s.alert(user, binding, s.alerts.SendDeviceRevoked)
		}
	}
	return true, nil
}

// alert mails the account owner. Delivery failures never fail the operation.
func (s *CertificateService) alert(user *model.User, binding *model.DeviceCertificate, send func(string, string, mailer.DeviceNotice) error) {
	err := send(user.Email, user.Name, mailer.DeviceNotice{
		DeviceName: binding.DeviceName,
		DeviceType: string(binding.DeviceType),
		DeviceID:   binding.Thumbprint,
		At:         s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("user_id", user.ID.String()).
			Str("device_id", binding.Thumbprint).
			Msg("device alert not delivered")
	}
}

// ==================== Devices ====================

// ListDevices returns the user's enrolled devices, newest first
func (s *CertificateService) ListDevices(ctx context.Context, userID uuid.UUID) ([]model.DeviceCertificateResponse, error) {
	bindings, err := s.certs.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistence(err)
	}

	devices := make([]model.DeviceCertificateResponse, 0, len(bindings))
	for _, b := range bindings {
		device := model.DeviceCertificateResponse{
			DeviceID:     b.Thumbprint,
			DeviceName:   b.DeviceName,
			DeviceType:   b.DeviceType,
			Subject:      b.Subject,
			ValidFrom:    b.ValidFrom,
			ValidTo:      b.ValidTo,
			RegisteredAt: b.RegisteredAt,
			Revoked:      b.IsRevoked(),
			RevokedAt:    b.RevokedAt,
		}
		if session, err := s.sessions.Get(ctx, userID, b.SessionID); err == nil {
			lastUsed := session.LastSeen()
			device.LastUsed = &lastUsed
		} else if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// Authenticate exchanges a resolved certificate identity for a bearer token
// bound to the device's session
func (s *CertificateService) Authenticate(ctx context.Context, id *model.Identity) (*model.CertificateAuthResponse, error) {
	if id == nil || id.Method != model.AuthMethodCertificate || !id.HasSession() {
		return nil, ErrIdentityUnresolved
	}

	token, err := s.jwtManager.GenerateToken(id.UserID, id.Email, id.Name, id.Session.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	resp := &model.CertificateAuthResponse{
		Token:        token,
		SessionToken: id.Session.SessionToken,
		DeviceID:     id.Session.DeviceID,
	}
	if d := id.Device; d != nil {
		resp.DeviceName = d.DeviceName
		resp.DeviceType = d.DeviceType
		resp.ComputerName = d.ComputerName
	}
	return resp, nil
}
