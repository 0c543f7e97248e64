package services

import "sync"

// ChatDispatcher serializes work per chat. Webhooks for one chat may arrive
// concurrently; the engine expects them one at a time.
type ChatDispatcher struct {
	mu    sync.Mutex
	chats map[string]*chatLock
}

type chatLock struct {
	mu      sync.Mutex
	waiters int
}

// NewChatDispatcher creates an empty dispatcher
func NewChatDispatcher() *ChatDispatcher {
	return &ChatDispatcher{chats: make(map[string]*chatLock)}
}

// Do runs fn while holding the lock for chatID
func (d *ChatDispatcher) Do(chatID string, fn func() error) error {
	d.mu.Lock()
	l, ok := d.chats[chatID]
	if !ok {
		l = &chatLock{}
		d.chats[chatID] = l
	}
	l.waiters++
	d.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.waiters--
		if l.waiters == 0 {
			delete(d.chats, chatID)
		}
		d.mu.Unlock()
	}()

	return fn()
}

// Active returns the number of chats with work running or queued
func (d *ChatDispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.chats)
}
