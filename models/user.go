// user.go - Defines the User model for the database

package models // Declares the package name

import "time"

// Roles a user can hold
const (
	RoleAdmin        = "admin"
	RoleNutritionist = "nutritionist"
	RolePatient      = "patient"
)

type User struct { // User struct represents a login account in the database
	ID        uint      `gorm:"primaryKey" json:"id"`                    // Unique user ID (primary key)
	Name      string    `json:"name"`                                    // Display name
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`       // User's email (must be unique, cannot be null)
	Password  string    `gorm:"not null" json:"-"`                       // Hashed password (cannot be null)
	Role      string    `gorm:"default:'patient';index" json:"role"`     // User role (admin/nutritionist/patient)
	CreatedAt time.Time `json:"created_at"`
}
