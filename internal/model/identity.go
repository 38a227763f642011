package model

import "github.com/google/uuid"

// AuthMethod is the credential kind an identity was resolved from
type AuthMethod string

const (
	AuthMethodBearer      AuthMethod = "bearer"
	AuthMethodCertificate AuthMethod = "certificate"
)

// Identity is the resolved caller of an authenticated request
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Method AuthMethod

	// SessionRef is the session token the credential claimed, if any
	SessionRef string

	// Session is nil when the user has no active session to bind to
	Session *Session

	// Device holds what a client certificate says about its holder
	Device *CertificateDevice

	// Fallback is set when the credential carried no usable session reference
	// and the user's most recent active session was picked instead
	Fallback bool
}

// CertificateDevice is the device described by a client certificate's subject
// and alternative names. Attributes absent from the certificate are empty.
type CertificateDevice struct {
	DeviceName   string
	DeviceType   string
	ComputerName string
	LocalIP      string
}

// HasSession reports whether the identity is bound to a session
func (i *Identity) HasSession() bool {
	return i != nil && i.Session != nil
}

// DeviceID returns the bound session's device identifier, if any
func (i *Identity) DeviceID() string {
	if !i.HasSession() {
		return ""
	}
	return i.Session.DeviceID
}
