package models

import (
	"time"

	"gorm.io/gorm"
)

// ListingType tells whether a listing offers a ride or asks for one
type ListingType string

const (
	ListingTypeDriver    ListingType = "driver"
	ListingTypePassenger ListingType = "passenger"
)

// Opposite returns the role a listing of this type is matched against
func (t ListingType) Opposite() ListingType {
	if t == ListingTypeDriver {
		return ListingTypePassenger
	}
	return ListingTypeDriver
}

// Valid reports whether t is one of the known listing types
func (t ListingType) Valid() bool {
	return t == ListingTypeDriver || t == ListingTypePassenger
}

// Listing sources
const (
	ListingSourceBot   = "bot"
	ListingSourceViber = "viber" // imported from a Viber group chat
)

// RideListing is a finalized ride offer (driver) or ride request (passenger)
type RideListing struct {
	gorm.Model

	ListingType ListingType `json:"listing_type" gorm:"size:16;not null;index:idx_listing_lookup,priority:1"`
	Route       string      `json:"route" gorm:"not null;index:idx_listing_lookup,priority:2"`
	Date        time.Time   `json:"date" gorm:"not null;index:idx_listing_lookup,priority:3"` // calendar day, midnight local time

	DepartureTime *string `json:"departure_time"` // "HH:MM" or "HH:MM-HH:MM"
	Seats         *int    `json:"seats"`          // drivers only
	Phone         string  `json:"phone" gorm:"not null"`
	SenderName    *string `json:"sender_name"`
	Notes         *string `json:"notes"`

	IsActive bool   `json:"is_active" gorm:"default:true;index"`
	PersonID *uint  `json:"person_id"`
	Source   string `json:"source"`

	// Imported listings keep the chat message they came from
	RawMessage *string `json:"-"`
	ImportKey  *string `json:"-" gorm:"uniqueIndex"` // sha256 of RawMessage
}

// ListingFields carries everything needed to create a listing
type ListingFields struct {
	ListingType   ListingType
	Route         string
	Date          time.Time
	DepartureTime *string
	Seats         *int
	Phone         string
	SenderName    *string
	Notes         *string
	Source        string
	RawMessage    *string
	ImportKey     *string
}

// Complete reports whether the required fields are all set
func (f ListingFields) Complete() bool {
	return f.ListingType.Valid() && f.Route != "" && !f.Date.IsZero() && f.Phone != ""
}
