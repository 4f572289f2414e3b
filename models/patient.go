// patient.go - Patient profile linked to a user account

package models

import "time"

type Patient struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"uniqueIndex;not null" json:"user_id"` // login account
	User           User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"user"`
	NutritionistID uint       `gorm:"index;not null" json:"nutritionist_id"` // user ID, not a profile
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	Height         float64    `json:"height"` // cm
	Weight         float64    `json:"weight"` // kg
	Gender         string     `json:"gender"` // male/female
	Objective      string     `json:"objective"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Consultation is one appointment record with the measurements taken.
type Consultation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PatientID      uint      `gorm:"index;not null" json:"patient_id"`
	NutritionistID uint      `gorm:"index;not null" json:"nutritionist_id"`
	Date           time.Time `gorm:"index" json:"date"`
	Weight         float64   `json:"weight"`
	BodyFat        float64   `json:"body_fat"`
	Notes          string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}
