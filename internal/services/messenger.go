package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Channel kinds used as channel id prefixes
const (
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
)

// ErrNoTransport is returned when a channel id names no registered transport
var ErrNoTransport = errors.New("no transport for channel")

// Messenger delivers text (and an optional menu) to a chat channel
type Messenger interface {
	SendMessage(ctx context.Context, channelID, text string, menu *Menu) error
}

// ChannelID joins a transport kind and a transport-local address
func ChannelID(kind, address string) string {
	return kind + ":" + address
}

// SplitChannel splits "kind:address" into its parts
func SplitChannel(channelID string) (kind, address string, ok bool) {
	kind, address, ok = strings.Cut(channelID, ":")
	if !ok || kind == "" || address == "" {
		return "", "", false
	}
	return kind, address, true
}

// MessengerRouter sends through the transport named by the channel id prefix
type MessengerRouter struct {
	mu       sync.RWMutex
	routes   map[string]Messenger
	fallback Messenger
}

// NewMessengerRouter creates a router; fallback (may be nil) handles unregistered kinds
func NewMessengerRouter(fallback Messenger) *MessengerRouter {
	return &MessengerRouter{routes: make(map[string]Messenger), fallback: fallback}
}

// Register routes channel ids of the given kind to m
func (r *MessengerRouter) Register(kind string, m Messenger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[kind] = m
}

func (r *MessengerRouter) SendMessage(ctx context.Context, channelID, text string, menu *Menu) error {
	kind, _, ok := SplitChannel(channelID)

	r.mu.RLock()
	m, found := r.routes[kind]
	r.mu.RUnlock()

	if !ok || !found {
		if r.fallback == nil {
			return fmt.Errorf("%w: %q", ErrNoTransport, channelID)
		}
		m = r.fallback
	}
	return m.SendMessage(ctx, channelID, text, menu)
}

// LogMessenger only logs outgoing messages; used when no transport is configured
type LogMessenger struct{}

func (LogMessenger) SendMessage(_ context.Context, channelID, text string, menu *Menu) error {
	log.Printf("📤 [%s] %s%s", channelID, text, numberedOptions(menu))
	return nil
}

// numberedOptions renders a menu as a numbered list for text-only transports
func numberedOptions(menu *Menu) string {
	var b strings.Builder
	n := 0
	for _, opt := range menu.Options() {
		if opt.RequestContact {
			continue
		}
		n++
		if n == 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%d. %s", n, opt.Label)
	}
	return b.String()
}
