package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

var testLoc = time.FixedZone("EET", 2*60*60)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

type sentMessage struct {
	channel string
	text    string
	menu    *Menu
}

// recordingMessenger records every message; channels in fail return that error
type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]error
}

func (r *recordingMessenger) SendMessage(_ context.Context, channelID, text string, menu *Menu) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[channelID]; err != nil {
		return err
	}
	r.sent = append(r.sent, sentMessage{channel: channelID, text: text, menu: menu})
	return nil
}

func (r *recordingMessenger) to(channelID string) []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMessage
	for _, m := range r.sent {
		if m.channel == channelID {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingMessenger) last(t *testing.T, channelID string) sentMessage {
	t.Helper()
	msgs := r.to(channelID)
	if len(msgs) == 0 {
		t.Fatalf("no message sent to %s", channelID)
	}
	return msgs[len(msgs)-1]
}

func (r *recordingMessenger) anyContains(channelID, substr string) bool {
	for _, m := range r.to(channelID) {
		if strings.Contains(m.text, substr) {
			return true
		}
	}
	return false
}

type testEnv struct {
	engine    *Engine
	sessions  *MemorySessionStore
	store     *storage.MemoryStore
	messenger *recordingMessenger
	clock     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions:  NewMemorySessionStore(DefaultSessionTTL),
		store:     storage.NewMemoryStore(),
		messenger: &recordingMessenger{},
		clock:     time.Date(2026, 2, 14, 10, 0, 0, 0, testLoc),
	}
	now := func() time.Time { return env.clock }
	env.sessions.now = now
	env.engine = NewEngine(EngineConfig{
		Sessions:  env.sessions,
		Store:     env.store,
		Messenger: env.messenger,
		Location:  testLoc,
		Now:       now,
	})
	return env
}

func (env *testEnv) today() time.Time {
	return time.Date(env.clock.Year(), env.clock.Month(), env.clock.Day(), 0, 0, 0, 0, testLoc)
}

func (env *testEnv) send(t *testing.T, chatID string, events ...InboundEvent) {
	t.Helper()
	for _, ev := range events {
		if err := env.engine.OnInboundEvent(context.Background(), chatID, ev); err != nil {
			t.Fatalf("event %s %q: %v", ev.Kind, ev.Value, err)
		}
	}
}

func (env *testEnv) session(t *testing.T, chatID string) *ChatSession {
	t.Helper()
	s, err := env.sessions.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get session %s: %v", chatID, err)
	}
	return s
}

func (env *testEnv) listings(t *testing.T, typ models.ListingType, route string) []*models.RideListing {
	t.Helper()
	from := env.today()
	got, err := env.store.QueryActiveListings(context.Background(), typ, route, from.AddDate(0, 0, -1), from.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("query listings: %v", err)
	}
	return got
}

// eventsTo returns the events that take a new flow of variant to step
func eventsTo(variant models.ListingType, step Step) []InboundEvent {
	start := CommandEvent("/" + string(variant))
	path := []InboundEvent{start}
	if step == StepPhone {
		return path
	}
	path = append(path, ContactEvent("0501234567"))
	if step == StepRoute {
		return path
	}
	path = append(path, ChoiceEvent("route:Kyiv-Malyn"))
	switch step {
	case StepDate:
		return path
	case StepDateCustom:
		return append(path, ChoiceEvent("date:custom"))
	}
	path = append(path, ChoiceEvent("date:today"))
	switch step {
	case StepTime:
		return path
	case StepTimeCustom:
		return append(path, ChoiceEvent("time:custom"))
	}
	path = append(path, ChoiceEvent("time:18:00"))
	if step == StepSeats || variant == models.ListingTypePassenger {
		return path
	}
	return append(path, ChoiceEvent("seats:3"))
}
