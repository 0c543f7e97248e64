package models

import "time"

// ChatSessionRecord stores conversation state for a chat when sessions live in the database
type ChatSessionRecord struct {
	ChatID      string    `json:"chat_id" gorm:"primaryKey"`
	Payload     string    `json:"payload"` // JSON encoded session
	LastTouched time.Time `json:"last_touched"`
	ExpiresAt   time.Time `json:"expires_at" gorm:"index"`
}

// TableName keeps the table name short
func (ChatSessionRecord) TableName() string { return "chat_sessions" }
