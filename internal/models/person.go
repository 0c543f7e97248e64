package models

import "gorm.io/gorm"

// Person links a normalized phone number to the chat channel it can be reached on
type Person struct {
	gorm.Model
	PhoneNormalized string  `json:"phone_normalized" gorm:"uniqueIndex;not null"`
	FullName        *string `json:"full_name"`
	ChannelID       *string `json:"channel_id"` // e.g. "telegram:123456789" or "whatsapp:+380501234567"
}
