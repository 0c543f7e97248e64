package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// DefaultSessionTTL is how long an untouched conversation stays alive
const DefaultSessionTTL = 15 * time.Minute

var (
	// ErrSessionNotFound means the chat has no conversation in progress
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired means the chat had a conversation that went stale; it has been removed
	ErrSessionExpired = errors.New("session expired")
)

// Step is a position inside a listing flow
type Step string

const (
	StepPhone      Step = "phone"
	StepRoute      Step = "route"
	StepDate       Step = "date"
	StepDateCustom Step = "date_custom"
	StepTime       Step = "time"
	StepTimeCustom Step = "time_custom"
	StepSeats      Step = "seats"
	StepNotes      Step = "notes"
)

// ChatSession is the conversation state of a single chat
type ChatSession struct {
	ChatID  string             `json:"chat_id"`
	Variant models.ListingType `json:"variant"`
	Step    Step               `json:"step"`

	Phone      string     `json:"phone,omitempty"`
	Route      string     `json:"route,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Time       *string    `json:"time,omitempty"`
	Seats      *int       `json:"seats,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	SenderName *string    `json:"sender_name,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastTouched time.Time `json:"last_touched"`
}

func (s *ChatSession) clone() *ChatSession {
	c := *s
	return &c
}

func (s *ChatSession) staleAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastTouched) > ttl
}

// SessionStore keeps per-chat conversation state.
// Get returns ErrSessionNotFound for unknown chats and ErrSessionExpired
// (after removing the entry) for sessions idle longer than the TTL.
type SessionStore interface {
	Get(ctx context.Context, chatID string) (*ChatSession, error)
	Set(ctx context.Context, session *ChatSession) error
	Delete(ctx context.Context, chatID string) error
}

// Sweeper is implemented by stores that can drop stale sessions in bulk
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// MemorySessionStore keeps sessions in a process map
type MemorySessionStore struct {
	sessions map[string]*ChatSession
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore creates an in-memory session store
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		sessions: make(map[string]*ChatSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Get(_ context.Context, chatID string) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[chatID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	// Lazy eviction
	if session.staleAt(m.now(), m.ttl) {
		delete(m.sessions, chatID)
		return nil, ErrSessionExpired
	}

	return session.clone(), nil
}

func (m *MemorySessionStore) Set(_ context.Context, session *ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ChatID] = session.clone()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}

// Sweep removes every stale session
func (m *MemorySessionStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for chatID, session := range m.sessions {
		if session.staleAt(now, m.ttl) {
			delete(m.sessions, chatID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("Cleaned up %d expired sessions", removed)
	}
	return removed, nil
}

// Len returns the number of stored sessions, stale ones included (for monitoring)
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
