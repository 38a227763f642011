package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/pkg/fingerprint"
)

// ========== Auth DTOs ==========

type RegisterRequest struct {
	Name       string                  `json:"name" binding:"required,min=2,max=100"`
	Email      string                  `json:"email" binding:"required,email"`
	Password   string                  `json:"password" binding:"required,min=6"`
	DeviceType string                  `json:"device_type"`
	DeviceInfo *fingerprint.DeviceInfo `json:"device_info"`
}

type LoginRequest struct {
	Email      string                  `json:"email" binding:"required,email"`
	Password   string                  `json:"password" binding:"required,min=6"`
	DeviceType string                  `json:"device_type"`
	DeviceInfo *fingerprint.DeviceInfo `json:"device_info"`
}

// RegisterDeviceRequest adds a device to an already signed-in account
type RegisterDeviceRequest struct {
	DeviceType string                  `json:"device_type"`
	DeviceInfo *fingerprint.DeviceInfo `json:"device_info"`
}

type LoginResponse struct {
	Token        string          `json:"token"`
	SessionToken string          `json:"session_token"`
	DeviceID     string          `json:"device_id"`
	Session      SessionResponse `json:"session"`
	User         UserResponse    `json:"user"`
}

// LoginContext is everything known about a device at the moment it logs in
type LoginContext struct {
	UserID     uuid.UUID
	DeviceID   string
	DeviceType DeviceType
	DeviceName string
	Device     fingerprint.DeviceInfo
	ClientIP   string

	Certificate *CertificateBinding
}

// CertificateBinding carries the certificate fields stored on a certificate-backed session
type CertificateBinding struct {
	Thumbprint string
	Subject    string
	ValidFrom  time.Time
	ValidTo    time.Time
}

// ========== Progress DTOs ==========

type ReportProgressRequest struct {
	TitleID         uint `json:"title_id" binding:"required"`
	PositionSeconds int  `json:"position_seconds" binding:"min=0"`
}

// SyncItem is one title in a cross-device sync listing
type SyncItem struct {
	TitleID            uint       `json:"title_id"`
	TitleName          string     `json:"title_name,omitempty"`
	PositionSeconds    int        `json:"position_seconds"`
	ProgressPercentage float64    `json:"progress_percentage"`
	Completed          bool       `json:"completed"`
	LastWatchedAt      time.Time  `json:"last_watched_at"`
	DeviceType         DeviceType `json:"device_type"`
	DeviceLabel        string     `json:"device_label"`
}

// ========== Certificate DTOs ==========

type EnrollRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	DeviceName   string `json:"device_name" binding:"required,max=255"`
	DeviceType   string `json:"device_type"`
	ComputerName string `json:"computer_name"`
	LocalIP      string `json:"local_ip"`
	ClientIP     string `json:"-"`
	UserAgent    string `json:"-"`
}

// EnrollResponse returns the private key exactly once. It is never stored.
type EnrollResponse struct {
	DeviceID     string    `json:"device_id"`
	Certificate  string    `json:"certificate"`
	PrivateKey   string    `json:"private_key"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
	SessionToken string    `json:"session_token"`
}

type DeviceCertificateResponse struct {
	DeviceID     string     `json:"device_id"`
	DeviceName   string     `json:"device_name"`
	DeviceType   DeviceType `json:"device_type"`
	Subject      string     `json:"subject"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      time.Time  `json:"valid_to"`
	RegisteredAt time.Time  `json:"registered_at"`
	Revoked      bool       `json:"revoked"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
}

type CertificateAuthResponse struct {
	Token        string `json:"token"`
	SessionToken string `json:"session_token"`
	DeviceID     string `json:"device_id"`
	DeviceName   string `json:"device_name,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`
	ComputerName string `json:"computer_name,omitempty"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventProgressUpdated  = "progress_updated"
	WSEventSessionLoggedOut = "session_logged_out"
	WSEventSessionRevoked   = "session_revoked"
)

type ProgressUpdatedEvent struct {
	TitleID            uint       `json:"title_id"`
	PositionSeconds    int        `json:"position_seconds"`
	ProgressPercentage float64    `json:"progress_percentage"`
	Completed          bool       `json:"completed"`
	DeviceType         DeviceType `json:"device_type"`
	DeviceID           string     `json:"device_id"`
	DeviceName         string     `json:"device_name"`
}

type SessionEvent struct {
	SessionID  uuid.UUID  `json:"session_id"`
	DeviceID   string     `json:"device_id"`
	DeviceType DeviceType `json:"device_type"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
