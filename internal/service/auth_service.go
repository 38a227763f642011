package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/quocanhngo/reelsync/pkg/auth"
	"github.com/quocanhngo/reelsync/pkg/fingerprint"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles account registration and password login.
// Every successful login opens or renews the session of the calling device.
type AuthService struct {
	users      UserStore
	sessions   *SessionService
	jwtManager *auth.JWTManager
}

func NewAuthService(users UserStore, sessions *SessionService, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		jwtManager: jwtManager,
	}
}

// ==================== Register ====================

// Register creates an account and logs the registering device in
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, fromRequest fingerprint.DeviceInfo, clientIP string) (*model.LoginResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:     req.Name,
		Email:    normalizeEmail(req.Email),
		Password: string(hashedPassword),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, persistence(err)
	}

	return s.openSession(ctx, user, req.DeviceType, fingerprint.Merge(req.DeviceInfo, fromRequest), clientIP)
}

// ==================== Login ====================

// Login checks email and password and returns a bearer token bound to the
// device's session
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, fromRequest fingerprint.DeviceInfo, clientIP string) (*model.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, persistence(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, user, req.DeviceType, fingerprint.Merge(req.DeviceInfo, fromRequest), clientIP)
}

func (s *AuthService) openSession(ctx context.Context, user *model.User, deviceType string, info fingerprint.DeviceInfo, clientIP string) (*model.LoginResponse, error) {
	session, err := s.sessions.RegisterDevice(ctx, user.ID, deviceType, info, clientIP)
	if err != nil {
		return nil, err
	}

	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Name, session.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &model.LoginResponse{
		Token:        token,
		SessionToken: session.SessionToken,
		DeviceID:     session.DeviceID,
		Session:      session.ToResponse(true),
		User:         user.ToResponse(),
	}, nil
}

// Devices lists every device session of the user, active or not, most
// recently used first
func (s *AuthService) Devices(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	return s.sessions.ListAll(ctx, userID)
}

// normalizeEmail is the stored form of an account email
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ==================== Profile ====================

// GetProfile returns the current user's profile
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityInvalid
		}
		return nil, persistence(err)
	}
	resp := user.ToResponse()
	return &resp, nil
}
