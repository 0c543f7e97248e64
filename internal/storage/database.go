package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) CreateListing(ctx context.Context, fields models.ListingFields) (*models.RideListing, error) {
	listing := &models.RideListing{
		ListingType:   fields.ListingType,
		Route:         fields.Route,
		Date:          fields.Date,
		DepartureTime: fields.DepartureTime,
		Seats:         fields.Seats,
		Phone:         fields.Phone,
		SenderName:    fields.SenderName,
		Notes:         fields.Notes,
		IsActive:      true,
		Source:        fields.Source,
		RawMessage:    fields.RawMessage,
		ImportKey:     fields.ImportKey,
	}

	var person models.Person
	err := s.db.WithContext(ctx).Where("phone_normalized = ?", fields.Phone).Take(&person).Error
	switch {
	case err == nil:
		listing.PersonID = &person.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup person: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return listing, nil
}

func (s *DatabaseStore) QueryActiveListings(ctx context.Context, listingType models.ListingType, route string, from, to time.Time) ([]*models.RideListing, error) {
	var listings []*models.RideListing
	err := s.db.WithContext(ctx).
		Where("listing_type = ? AND route = ? AND is_active = ? AND date >= ? AND date < ?", listingType, route, true, from, to).
		Order("created_at DESC, id DESC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	return listings, nil
}

func (s *DatabaseStore) DeactivateListingsBefore(ctx context.Context, day time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.RideListing{}).
		Where("is_active = ? AND date < ?", true, day).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate listings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *DatabaseStore) HasImportKey(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.RideListing{}).
		Where("import_key = ?", key).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("lookup import key: %w", err)
	}
	return n > 0, nil
}

func (s *DatabaseStore) LinkChannel(ctx context.Context, phone, channelID string, displayName *string) (*models.Person, error) {
	person := &models.Person{
		PhoneNormalized: phone,
		ChannelID:       &channelID,
		FullName:        displayName,
	}

	update := []string{"channel_id", "updated_at"}
	if displayName != nil && *displayName != "" {
		update = append(update, "full_name")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_normalized"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(person).Error
	if err != nil {
		return nil, fmt.Errorf("link channel: %w", err)
	}
	return person, nil
}

func (s *DatabaseStore) ResolveChannelByPhone(ctx context.Context, phone string) (string, error) {
	var person models.Person
	err := s.db.WithContext(ctx).Where("phone_normalized = ?", phone).Take(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	if person.ChannelID == nil || *person.ChannelID == "" {
		return "", ErrNotFound
	}
	return *person.ChannelID, nil
}
