package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations used by the ride-listing engine
type Store interface {
	// Listing operations
	CreateListing(ctx context.Context, fields models.ListingFields) (*models.RideListing, error)
	// QueryActiveListings returns active listings of the given type and route whose
	// date falls in [from, to), most recently created first.
	QueryActiveListings(ctx context.Context, listingType models.ListingType, route string, from, to time.Time) ([]*models.RideListing, error)
	DeactivateListingsBefore(ctx context.Context, day time.Time) (int64, error)
	// HasImportKey reports whether a listing was already imported under key.
	HasImportKey(ctx context.Context, key string) (bool, error)

	// Person operations
	// LinkChannel records that the normalized phone can be reached on channelID.
	LinkChannel(ctx context.Context, phone, channelID string, displayName *string) (*models.Person, error)
	// ResolveChannelByPhone returns ErrNotFound when the phone has no known channel.
	ResolveChannelByPhone(ctx context.Context, phone string) (string, error)
}
