package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisExpiryGrace keeps keys around past the session TTL so a stale session can
// still be told apart from a chat that never had one.
const redisExpiryGrace = time.Hour

// RedisSessionStore keeps sessions in Redis so several instances can share them
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionStore wraps a connected redis client
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisSessionStore) key(chatID string) string { return r.prefix + chatID }

func (r *RedisSessionStore) Get(ctx context.Context, chatID string) (*ChatSession, error) {
	raw, err := r.client.Get(ctx, r.key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		// Unreadable payloads are dropped like stale ones
		_ = r.client.Del(ctx, r.key(chatID)).Err()
		return nil, ErrSessionExpired
	}

	if session.staleAt(r.now(), r.ttl) {
		if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
			return nil, fmt.Errorf("redis delete stale session: %w", err)
		}
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (r *RedisSessionStore) Set(ctx context.Context, session *ChatSession) error {
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(session.ChatID), b, r.ttl+redisExpiryGrace).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, chatID string) error {
	if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
