package model

import (
	"time"

	"github.com/google/uuid"
)

// DeviceCertificate binds an issued client certificate to the user and session it was enrolled for
type DeviceCertificate struct {
	Thumbprint   string     `json:"device_id" gorm:"primaryKey;size:64"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	SessionID    uuid.UUID  `json:"session_id" gorm:"type:uuid;not null"`
	Subject      string     `json:"subject" gorm:"size:500;not null"`
	Issuer       string     `json:"issuer" gorm:"size:500;not null"`
	DeviceName   string     `json:"device_name" gorm:"size:255"`
	DeviceType   DeviceType `json:"device_type" gorm:"size:20"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      time.Time  `json:"valid_to"`
	RegisteredAt time.Time  `json:"registered_at"`
	RevokedAt    *time.Time `json:"revoked_at"`
}

func (DeviceCertificate) TableName() string {
	return "device_certificates"
}

// IsRevoked reports whether the binding has been revoked
func (d *DeviceCertificate) IsRevoked() bool {
	return d.RevokedAt != nil
}
