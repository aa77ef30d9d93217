package models

import "time"

// CategoryMessage is one entry in a category room's append-only log.
// ID is assigned by the storage layer and is the sole ordering key;
// CreatedAt is informational only.
type CategoryMessage struct {
	ID              int64     `json:"id"`
	Category        string    `json:"category"`
	SenderPersonaID int64     `json:"sender_persona_id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// DMMessage is one entry in a DM thread's append-only log.
type DMMessage struct {
	ID              int64     `json:"id"`
	ThreadID        int64     `json:"thread_id"`
	SenderPersonaID int64     `json:"sender_persona_id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// MessageView is the wire shape for room and thread polling responses.
type MessageView struct {
	ID         int64  `json:"id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"` // seconds-precision ISO-8601, UTC
	IsMe       bool   `json:"is_me"`
}

// FormatMessageTime renders a message timestamp for MessageView.CreatedAt.
func FormatMessageTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
