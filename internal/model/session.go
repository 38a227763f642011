package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is the login state of one recognised device for one user.
// At most one active row exists per (UserID, DeviceID).
type Session struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	DeviceType DeviceType `json:"device_type" gorm:"size:20;not null"`
	DeviceID   string     `json:"device_id" gorm:"size:64;not null;index"`
	DeviceName string     `json:"device_name" gorm:"size:255"`

	ComputerName string `json:"computer_name" gorm:"size:255"`
	MacAddress   string `json:"mac_address" gorm:"size:64"`
	ProcessorID  string `json:"processor_id" gorm:"size:128"`
	LocalIP      string `json:"local_ip" gorm:"size:64"`
	UserAgent    string `json:"user_agent" gorm:"size:500"`
	ClientIP     string `json:"client_ip" gorm:"size:64"`

	// Set when the session was established through a device certificate
	CertificateThumbprint *string    `json:"certificate_thumbprint,omitempty" gorm:"size:64"`
	CertificateSubject    string     `json:"certificate_subject,omitempty" gorm:"size:500"`
	CertificateValidFrom  *time.Time `json:"certificate_valid_from,omitempty"`
	CertificateValidTo    *time.Time `json:"certificate_valid_to,omitempty"`

	LoginTime    time.Time  `json:"login_time" gorm:"not null"`
	LastActivity *time.Time `json:"last_activity"`
	LogoutTime   *time.Time `json:"logout_time"`
	IsActive     bool       `json:"is_active" gorm:"not null;index"`
	SessionToken string     `json:"-" gorm:"size:64;not null;uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "user_sessions"
}

// LastSeen is the most recent moment the session is known to have been used
func (s *Session) LastSeen() time.Time {
	if s.LastActivity != nil {
		return *s.LastActivity
	}
	return s.LoginTime
}

// Deactivate ends the session at the given time. Inactive sessions are left unchanged.
func (s *Session) Deactivate(at time.Time) {
	if !s.IsActive {
		return
	}
	s.IsActive = false
	s.LogoutTime = &at
}

// SessionResponse is the API view of a session
type SessionResponse struct {
	ID               uuid.UUID  `json:"id"`
	DeviceType       DeviceType `json:"device_type"`
	DeviceID         string     `json:"device_id"`
	DeviceName       string     `json:"device_name"`
	ComputerName     string     `json:"computer_name,omitempty"`
	LocalIP          string     `json:"local_ip,omitempty"`
	UserAgent        string     `json:"user_agent,omitempty"`
	ClientIP         string     `json:"client_ip,omitempty"`
	CertificateBound bool       `json:"certificate_bound"`
	LoginTime        time.Time  `json:"login_time"`
	LastActivity     *time.Time `json:"last_activity"`
	LogoutTime       *time.Time `json:"logout_time"`
	IsActive         bool       `json:"is_active"`
	IsCurrent        bool       `json:"is_current"`
}

// ToResponse converts Session to its API view. current marks the caller's own session.
func (s *Session) ToResponse(current bool) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		DeviceType:       s.DeviceType,
		DeviceID:         s.DeviceID,
		DeviceName:       s.DeviceName,
		ComputerName:     s.ComputerName,
		LocalIP:          s.LocalIP,
		UserAgent:        s.UserAgent,
		ClientIP:         s.ClientIP,
		CertificateBound: s.CertificateThumbprint != nil,
		LoginTime:        s.LoginTime,
		LastActivity:     s.LastActivity,
		LogoutTime:       s.LogoutTime,
		IsActive:         s.IsActive,
		IsCurrent:        current,
	}
}

// Renew rotates the token of an active session and overwrites its device
// metadata with the newer login's. Login time and last activity restart at
// the renewal's login time.
func (s *Session) Renew(next *Session) {
	s.SessionToken = next.SessionToken
	s.LoginTime = next.LoginTime
	at := next.LoginTime
	s.LastActivity = &at

	s.DeviceType = next.DeviceType
	s.DeviceName = next.DeviceName
	s.ComputerName = next.ComputerName
	s.MacAddress = next.MacAddress
	s.ProcessorID = next.ProcessorID
	s.LocalIP = next.LocalIP
	s.UserAgent = next.UserAgent
	s.ClientIP = next.ClientIP

	if next.CertificateThumbprint != nil {
		s.CertificateThumbprint = next.CertificateThumbprint
		s.CertificateSubject = next.CertificateSubject
		s.CertificateValidFrom = next.CertificateValidFrom
		s.CertificateValidTo = next.CertificateValidTo
	}
}
