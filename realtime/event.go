// event.go - Messages exchanged over the realtime channel

package realtime

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventNewMessage  = "new_message"
	EventMessageRead = "message_read"
	EventTyping      = "typing"
	EventUserStatus  = "user_status"
	EventPing        = "ping"
	EventPong        = "pong"
)

// Presence values carried by user_status events
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Event is the envelope for everything sent over a socket. Timestamp is
// Unix milliseconds.
type Event struct {
	Type           string          `json:"type"`
	ConversationID uint            `json:"conversation_id,omitempty"`
	UserID         uint            `json:"user_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      int64           `json:"timestamp"`
}

// NewEvent builds an event with data JSON encoded and the current time.
func NewEvent(typ string, conversationID, userID uint, data interface{}) Event {
	ev := Event{Type: typ, ConversationID: conversationID, UserID: userID, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			ev.Data = b
		}
	}
	return ev
}

type TypingData struct {
	IsTyping bool   `json:"is_typing"`
	UserName string `json:"user_name,omitempty"`
}

type StatusData struct {
	Status string `json:"status"`
}

type ReadData struct {
	MessageIDs []uint `json:"message_ids"`
	ReaderID   uint   `json:"reader_id"`
}
