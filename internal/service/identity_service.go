package service

import (
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/quocanhngo/reelsync/internal/metrics"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/quocanhngo/reelsync/pkg/auth"
	"github.com/quocanhngo/reelsync/pkg/certauth"
	"github.com/rs/zerolog"
)

// IdentityService turns a presented credential into a resolved caller
type IdentityService struct {
	jwtManager *auth.JWTManager
	users      UserStore
	sessions   *SessionService
	certs      *CertificateService
	log        zerolog.Logger
	now        func() time.Time
}

func NewIdentityService(jwtManager *auth.JWTManager, users UserStore, sessions *SessionService, certs *CertificateService, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		jwtManager: jwtManager,
		users:      users,
		sessions:   sessions,
		certs:      certs,
		log:        log.With().Str("component", "identity").Logger(),
		now:        time.Now,
	}
}

// ResolveBearer resolves a bearer token. The session comes from the token's
// session claim, or sessionHeader when the claim is absent. When neither names
// an active session the user's most recently used active session is taken
// instead and the identity is marked Fallback. A user with no active session
// at all resolves without one.
func (s *IdentityService) ResolveBearer(ctx context.Context, token, sessionHeader string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrIdentityUnresolved
	}

	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		metrics.IdentityFailuresTotal.WithLabelValues(string(model.AuthMethodBearer), "invalid_token").Inc()
		s.log.Info().Err(err).Msg("bearer token rejected")
		return nil, ErrIdentityInvalid
	}

	id := &model.Identity{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Name:       claims.Name,
		Method:     model.AuthMethodBearer,
		SessionRef: claims.SessionToken,
	}
	if id.SessionRef == "" {
		id.SessionRef = sessionHeader
	}

	if id.SessionRef != "" {
		session, err := s.sessions.Current(ctx, id.UserID, id.SessionRef)
		switch {
		case err == nil:
			id.Session = session
			s.touch(ctx, id)
			return id, nil
		case !errors.Is(err, ErrSessionNotFound):
			return nil, err
		}
	}

	session, err := s.sessions.MostRecentActive(ctx, id.UserID)
	switch {
	case err == nil:
		id.Session = session
		id.Fallback = true
		metrics.FallbackResolutionsTotal.Inc()
		s.log.Warn().
			Str("user_id", id.UserID.String()).
			Str("session_id", session.ID.String()).
			Str("device_id", session.DeviceID).
			Bool("claimed_session", id.SessionRef != "").
			Msg("no usable session reference, bound to most recent active session")
		s.touch(ctx, id)
	case errors.Is(err, ErrSessionNotFound):
		s.log.Debug().Str("user_id", id.UserID.String()).Msg("user has no active session")
	default:
		return nil, err
	}
	return id, nil
}

// ResolveCertificate resolves a client certificate to its device session
func (s *IdentityService) ResolveCertificate(ctx context.Context, cert *x509.Certificate) (*model.Identity, error) {
	if cert == nil {
		return nil, ErrIdentityUnresolved
	}

	binding, err := s.certs.Validate(ctx, cert)
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		reason := certificateFailureReason(err)
		metrics.IdentityFailuresTotal.WithLabelValues(string(model.AuthMethodCertificate), reason).Inc()
		s.log.Info().Err(err).
			Str("reason", reason).
			Str("subject", cert.Subject.String()).
			Msg("client certificate rejected")
		return nil, ErrIdentityInvalid
	}

	session, err := s.sessions.ActiveForDevice(ctx, binding.UserID, binding.Thumbprint)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			metrics.IdentityFailuresTotal.WithLabelValues(string(model.AuthMethodCertificate), "no_session").Inc()
			s.log.Info().
				Str("user_id", binding.UserID.String()).
				Str("device_id", binding.Thumbprint).
				Msg("certificate has no active session")
			return nil, ErrIdentityInvalid
		}
		return nil, err
	}

	attrs := certauth.ParseIdentity(cert)
	id := &model.Identity{
		UserID:     binding.UserID,
		Method:     model.AuthMethodCertificate,
		SessionRef: session.SessionToken,
		Session:    session,
		Device: &model.CertificateDevice{
			DeviceName:   attrs.DeviceName.Value,
			DeviceType:   attrs.DeviceType.Value,
			ComputerName: attrs.ComputerName.Value,
			LocalIP:      attrs.LocalIP.Value,
		},
	}
	if !attrs.DeviceName.Present {
		s.log.Debug().Str("device_id", binding.Thumbprint).Msg("certificate carries no device name")
	}
	user, err := s.users.FindByID(ctx, binding.UserID)
	switch {
	case err == nil:
		id.Email, id.Name = user.Email, user.Name
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrIdentityInvalid
	default:
		return nil, persistence(err)
	}

	s.touch(ctx, id)
	return id, nil
}

// touch records activity; a failure is logged and never fails the request
func (s *IdentityService) touch(ctx context.Context, id *model.Identity) {
	if err := s.sessions.TouchActivity(ctx, id.Session.ID, s.now()); err != nil {
		s.log.Warn().Err(err).
			Str("op", "touch").
			Str("user_id", id.UserID.String()).
			Str("session_id", id.Session.ID.String()).
			Msg("touch session activity")
	}
}

func certificateFailureReason(err error) string {
	switch {
	case errors.Is(err, certauth.ErrMalformed):
		return "malformed"
	case errors.Is(err, certauth.ErrExpired):
		return "expired"
	case errors.Is(err, certauth.ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, certauth.ErrUntrustedIssuer):
		return "untrusted_issuer"
	case errors.Is(err, certauth.ErrChainInvalid):
		return "chain_invalid"
	case errors.Is(err, ErrCertificateRevoked):
		return "revoked"
	case errors.Is(err, ErrCertificateNotFound):
		return "unknown_certificate"
	default:
		return "other"
	}
}
