package model

import (
	"time"

	"github.com/google/uuid"
)

// CompletionThreshold is the percentage at which a title counts as watched
const CompletionThreshold = 95.0

// WatchProgress is the single authoritative playback position of a user on a title.
// Writes are last-write-wins by server receipt time.
type WatchProgress struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID                uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_title"`
	TitleID               uint       `json:"title_id" gorm:"not null;uniqueIndex:idx_progress_user_title"`
	PositionSeconds       int        `json:"position_seconds" gorm:"not null"`
	ProgressPercentage    float64    `json:"progress_percentage" gorm:"not null"`
	Completed             bool       `json:"completed" gorm:"not null"`
	LastWatchedAt         time.Time  `json:"last_watched_at" gorm:"not null;index"`
	LastWatchedDeviceType DeviceType `json:"last_watched_device_type" gorm:"size:20"`
	LastWatchedDeviceID   string     `json:"last_watched_device_id" gorm:"size:64"`
	LastWatchedDeviceName string     `json:"last_watched_device_name" gorm:"size:255"`
}

func (WatchProgress) TableName() string {
	return "watch_progress"
}

// Percentage converts a position into a percentage of duration. A non-positive
// duration yields 0.
func Percentage(positionSeconds, durationSeconds int) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(positionSeconds) / float64(durationSeconds) * 100
}

// Title is a catalog entry. This service only reads it.
type Title struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"size:255;not null"`
	DurationSeconds int       `json:"duration_seconds" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
}
