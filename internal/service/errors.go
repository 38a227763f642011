package service

import (
	"errors"
	"fmt"
)

var (
	ErrIdentityUnresolved  = errors.New("no credential presented")
	ErrIdentityInvalid     = errors.New("credential invalid, expired or revoked")
	ErrSessionNotFound     = errors.New("session not found")
	ErrConflictingSession  = errors.New("concurrent login for the same device, retry")
	ErrTitleNotFound       = errors.New("title not found")
	ErrProgressNotFound    = errors.New("watch progress not found")
	ErrInvalidProgress     = errors.New("position must not be negative")
	ErrCertificateNotFound = errors.New("device certificate not found")
	ErrCertificateRevoked  = errors.New("device certificate revoked")
	ErrEnrollment          = errors.New("enrollment rejected")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email already registered")
	ErrPersistence         = errors.New("persistence failure")
)

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
