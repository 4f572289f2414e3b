// security.go - Login audit trail and second factor settings

package models

import "time"

type LoginAttempt struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        *uint     `gorm:"index" json:"user_id"`
	Email         string    `gorm:"index;not null" json:"email"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	Success       bool      `gorm:"index" json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

type TwoFactorAuth struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"uniqueIndex;not null"`
	Secret      string `gorm:"not null"` // sealed TOTP secret, base64
	BackupCodes string // JSON array of bcrypt hashes, used codes are removed
	IsEnabled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
