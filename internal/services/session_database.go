package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// DatabaseSessionStore keeps sessions in the chat_sessions table
type DatabaseSessionStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewDatabaseSessionStore creates a gorm backed session store
func NewDatabaseSessionStore(db *gorm.DB, ttl time.Duration) *DatabaseSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &DatabaseSessionStore{db: db, ttl: ttl, now: time.Now}
}

func (d *DatabaseSessionStore) Get(ctx context.Context, chatID string) (*ChatSession, error) {
	var rec models.ChatSessionRecord
	err := d.db.WithContext(ctx).Where("chat_id = ?", chatID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session ChatSession
	if err := json.Unmarshal([]byte(rec.Payload), &session); err != nil || session.staleAt(d.now(), d.ttl) {
		if err := d.Delete(ctx, chatID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (d *DatabaseSessionStore) Set(ctx context.Context, session *ChatSession) error {
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	rec := models.ChatSessionRecord{
		ChatID:      session.ChatID,
		Payload:     string(b),
		LastTouched: session.LastTouched,
		ExpiresAt:   session.LastTouched.Add(d.ttl),
	}
	err = d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (d *DatabaseSessionStore) Delete(ctx context.Context, chatID string) error {
	err := d.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.ChatSessionRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep removes every stale session row
func (d *DatabaseSessionStore) Sweep(ctx context.Context) (int, error) {
	res := d.db.WithContext(ctx).Where("expires_at < ?", d.now()).Delete(&models.ChatSessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep sessions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
