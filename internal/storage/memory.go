package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// MemoryStore holds all data in memory for development and tests
type MemoryStore struct {
	listings map[uint]*models.RideListing
	people   map[string]*models.Person // keyed by normalized phone

	listingMu sync.RWMutex
	personMu  sync.RWMutex

	// Counters for ID generation
	listingCounter uint
	personCounter  uint

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[uint]*models.RideListing),
		people:   make(map[string]*models.Person),
		now:      time.Now,
	}
}

// Listing operations
func (m *MemoryStore) CreateListing(_ context.Context, fields models.ListingFields) (*models.RideListing, error) {
	m.listingMu.Lock()
	defer m.listingMu.Unlock()

	m.listingCounter++
	now := m.now()
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
	listing.ID = m.listingCounter
	listing.CreatedAt = now
	listing.UpdatedAt = now

	m.personMu.RLock()
	if p, ok := m.people[fields.Phone]; ok {
		id := p.ID
		listing.PersonID = &id
	}
	m.personMu.RUnlock()

	m.listings[listing.ID] = listing
	copied := *listing
	return &copied, nil
}

func (m *MemoryStore) QueryActiveListings(_ context.Context, listingType models.ListingType, route string, from, to time.Time) ([]*models.RideListing, error) {
	m.listingMu.RLock()
	defer m.listingMu.RUnlock()

	var results []*models.RideListing
	for _, l := range m.listings {
		if !l.IsActive || l.ListingType != listingType || l.Route != route {
			continue
		}
		if l.Date.Before(from) || !l.Date.Before(to) {
			continue
		}
		copied := *l
		results = append(results, &copied)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (m *MemoryStore) DeactivateListingsBefore(_ context.Context, day time.Time) (int64, error) {
	m.listingMu.Lock()
	defer m.listingMu.Unlock()

	var n int64
	for _, l := range m.listings {
		if l.IsActive && l.Date.Before(day) {
			l.IsActive = false
			l.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) HasImportKey(_ context.Context, key string) (bool, error) {
	m.listingMu.RLock()
	defer m.listingMu.RUnlock()

	for _, l := range m.listings {
		if l.ImportKey != nil && *l.ImportKey == key {
			return true, nil
		}
	}
	return false, nil
}

// Person operations
func (m *MemoryStore) LinkChannel(_ context.Context, phone, channelID string, displayName *string) (*models.Person, error) {
	m.personMu.Lock()
	defer m.personMu.Unlock()

	now := m.now()
	p, ok := m.people[phone]
	if !ok {
		m.personCounter++
		p = &models.Person{PhoneNormalized: phone}
		p.ID = m.personCounter
		p.CreatedAt = now
		m.people[phone] = p
	}
	ch := channelID
	p.ChannelID = &ch
	if displayName != nil && *displayName != "" {
		name := *displayName
		p.FullName = &name
	}
	p.UpdatedAt = now

	copied := *p
	return &copied, nil
}

func (m *MemoryStore) ResolveChannelByPhone(_ context.Context, phone string) (string, error) {
	m.personMu.RLock()
	defer m.personMu.RUnlock()

	p, ok := m.people[phone]
	if !ok || p.ChannelID == nil || *p.ChannelID == "" {
		return "", ErrNotFound
	}
	return *p.ChannelID, nil
}
