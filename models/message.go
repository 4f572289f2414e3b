// message.go - Conversations between a patient and a nutritionist

package models

import "time"

// Message types
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageFile  = "file"
)

type Conversation struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PatientID      uint       `gorm:"index;not null" json:"patient_id"` // profile ID
	Patient        Patient    `gorm:"foreignKey:PatientID" json:"patient"`
	NutritionistID uint       `gorm:"index;not null" json:"nutritionist_id"` // user ID
	Nutritionist   User       `gorm:"foreignKey:NutritionistID" json:"nutritionist"`
	LastMessage    string     `json:"last_message"`
	LastMessageAt  *time.Time `json:"last_message_at"`
	Archived       bool       `json:"archived"`
	Pinned         bool       `json:"pinned"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           string    `gorm:"uniqueIndex" json:"uuid"` // Client-visible ID, stable across bridges
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	SenderID       uint      `gorm:"index;not null" json:"sender_id"`
	Sender         User      `gorm:"foreignKey:SenderID" json:"-"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Type           string    `gorm:"default:'text'" json:"type"`
	Priority       string    `gorm:"default:'normal'" json:"priority"`
	Read           bool      `gorm:"index" json:"read"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
