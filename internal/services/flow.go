package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
	"github.com/Ananth-NQI/poputky-backend/internal/observability"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

// ListingEventPublisher announces created listings to other systems
type ListingEventPublisher interface {
	PublishListingCreated(ctx context.Context, listing *models.RideListing) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishListingCreated(context.Context, *models.RideListing) error { return nil }

// EngineConfig wires the engine's collaborators
type EngineConfig struct {
	Sessions  SessionStore
	Store     storage.Store
	Parser    TextParser
	Messenger Messenger
	Events    ListingEventPublisher

	Location          *time.Location
	NotifyConcurrency int
	Now               func() time.Time
}

// Engine drives the driver and passenger listing conversations. It expects
// events of one chat to be delivered one at a time (see ChatDispatcher).
type Engine struct {
	sessions  SessionStore
	store     storage.Store
	parser    TextParser
	messenger Messenger
	events    ListingEventPublisher
	matcher   *Matcher
	notifier  *Notifier

	loc         *time.Location
	now         func() time.Time
	transitions map[transitionKey]transition
}

// NewEngine creates a flow engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Parser == nil {
		cfg.Parser = DefaultTextParser{}
	}
	if cfg.Events == nil {
		cfg.Events = NopPublisher{}
	}

	return &Engine{
		sessions:    cfg.Sessions,
		store:       cfg.Store,
		parser:      cfg.Parser,
		messenger:   cfg.Messenger,
		events:      cfg.Events,
		matcher:     NewMatcher(cfg.Store, cfg.Location),
		notifier:    NewNotifier(cfg.Store, cfg.Messenger, cfg.NotifyConcurrency),
		loc:         cfg.Location,
		now:         cfg.Now,
		transitions: buildTransitions(),
	}
}

// OnInboundEvent handles one event from chatID
func (e *Engine) OnInboundEvent(ctx context.Context, chatID string, ev InboundEvent) error {
	session, err := e.sessions.Get(ctx, chatID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return e.handleIdle(ctx, chatID, ev)

	case errors.Is(err, ErrSessionExpired):
		observability.SessionsExpired.Inc()
		log.Printf("⌛ Session expired for %s", chatID)
		if variant, ok := startVariant(ev, false); ok {
			if err := e.send(ctx, chatID, msgExpired, nil); err != nil {
				return err
			}
			return e.startFlow(ctx, chatID, variant, ev.SenderName)
		}
		return e.send(ctx, chatID, msgExpired+"\n\n"+msgChooseRole, startMenu())

	case err != nil:
		return fmt.Errorf("load session for %s: %w", chatID, err)
	}

	return e.advance(ctx, session, ev)
}

func (e *Engine) handleIdle(ctx context.Context, chatID string, ev InboundEvent) error {
	if variant, ok := startVariant(ev, true); ok {
		return e.startFlow(ctx, chatID, variant, ev.SenderName)
	}
	if isCancel(ev) {
		return e.send(ctx, chatID, msgNothingToCancel+"\n\n"+msgChooseRole, startMenu())
	}
	return e.send(ctx, chatID, msgWelcome, startMenu())
}

func (e *Engine) advance(ctx context.Context, session *ChatSession, ev InboundEvent) error {
	if variant, ok := startVariant(ev, false); ok {
		log.Printf("🔁 Chat %s restarted as %s (was %s at %s)", session.ChatID, variant, session.Variant, session.Step)
		return e.startFlow(ctx, session.ChatID, variant, ev.SenderName)
	}

	ev = coerce(ev, menuFor(session.Variant, session.Step), acceptsText(session.Step))
	if isCancel(ev) {
		return e.cancel(ctx, session)
	}
	if ev.Kind == EventCommand {
		return e.prompt(ctx, session, "")
	}

	tr, ok := e.transitions[transitionKey{session.Variant, session.Step, ev.Kind}]
	if !ok {
		observability.InputRejected.WithLabelValues(string(session.Step)).Inc()
		return e.prompt(ctx, session, msgUnsupported)
	}

	next := session.clone()
	if next.SenderName == nil && ev.SenderName != "" {
		name := ev.SenderName
		next.SenderName = &name
	}

	step, err := tr(ctx, e, next, ev)
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		observability.InputRejected.WithLabelValues(string(session.Step)).Inc()
		log.Printf("⚠️ Chat %s: %v", session.ChatID, invalid)
		return e.prompt(ctx, session, invalid.Reason)
	}
	if err != nil {
		return err
	}

	if step == stepFinalize {
		return e.finalize(ctx, next)
	}

	next.Step = step
	next.LastTouched = e.now()
	if err := e.sessions.Set(ctx, next); err != nil {
		return fmt.Errorf("save session for %s: %w", next.ChatID, err)
	}
	if session.Step == StepPhone {
		// Removes the share-contact reply keyboard
		if err := e.send(ctx, next.ChatID, phoneSavedMessage(next.Phone), removeKeyboard()); err != nil {
			return err
		}
	}
	return e.prompt(ctx, next, "")
}

func (e *Engine) startFlow(ctx context.Context, chatID string, variant models.ListingType, sender string) error {
	now := e.now()
	session := &ChatSession{
		ChatID:      chatID,
		Variant:     variant,
		Step:        StepPhone,
		CreatedAt:   now,
		LastTouched: now,
	}
	if sender != "" {
		session.SenderName = &sender
	}
	if err := e.sessions.Set(ctx, session); err != nil {
		return fmt.Errorf("save session for %s: %w", chatID, err)
	}

	observability.FlowsStarted.WithLabelValues(string(variant)).Inc()
	log.Printf("🆕 Chat %s started %s flow", chatID, variant)
	return e.prompt(ctx, session, "")
}

func (e *Engine) cancel(ctx context.Context, session *ChatSession) error {
	if err := e.sessions.Delete(ctx, session.ChatID); err != nil {
		return fmt.Errorf("delete session for %s: %w", session.ChatID, err)
	}
	observability.FlowsCancelled.WithLabelValues(string(session.Variant)).Inc()
	log.Printf("🚫 Chat %s cancelled %s flow at %s", session.ChatID, session.Variant, session.Step)
	return e.send(ctx, session.ChatID, msgCancelled+"\n\n"+msgChooseRole, startMenu())
}

// finalize persists the listing, then matches, acknowledges and notifies.
// The session is gone when finalize returns, whatever the outcome.
func (e *Engine) finalize(ctx context.Context, session *ChatSession) error {
	fields := session.listingFields()
	if !fields.Complete() {
		log.Printf("⚠️ Chat %s reached finalize without required fields", session.ChatID)
		e.dropSession(ctx, session.ChatID)
		return e.send(ctx, session.ChatID, msgIncomplete, startMenu())
	}

	listing, err := e.store.CreateListing(ctx, fields)
	if err != nil {
		observability.FinalizeFailures.Inc()
		ferr := &FinalizeError{ChatID: session.ChatID, Err: err}
		log.Printf("❌ %v", ferr)
		e.dropSession(ctx, session.ChatID)
		if serr := e.send(ctx, session.ChatID, msgFinalizeFailed, startMenu()); serr != nil {
			log.Printf("❌ %v", serr)
		}
		return ferr
	}

	observability.ListingsCreated.WithLabelValues(string(listing.ListingType)).Inc()
	log.Printf("✅ Listing #%d created: %s %s %s", listing.ID, listing.ListingType, listing.Route, DateKey(listing.Date))

	if err := e.events.PublishListingCreated(ctx, listing); err != nil {
		log.Printf("⚠️ Failed to publish listing #%d: %v", listing.ID, err)
	}

	result, err := e.matcher.Match(ctx, listing)
	if err != nil {
		log.Printf("⚠️ Matching failed for listing #%d: %v", listing.ID, err)
		result = MatchResult{}
	}

	e.dropSession(ctx, session.ChatID)

	ackErr := e.send(ctx, session.ChatID, listingCreatedMessage(listing), nil)
	if ackErr != nil {
		log.Printf("❌ %v", ackErr)
	}

	e.notifier.Notify(ctx, listing, session.ChatID, result)
	return ackErr
}

func (e *Engine) dropSession(ctx context.Context, chatID string) {
	if err := e.sessions.Delete(ctx, chatID); err != nil {
		log.Printf("⚠️ Failed to delete session for %s: %v", chatID, err)
	}
}

func (e *Engine) prompt(ctx context.Context, session *ChatSession, reason string) error {
	text := stepPrompt(session.Variant, session.Step)
	if reason != "" {
		text = reason + "\n\n" + text
	}
	return e.send(ctx, session.ChatID, text, menuFor(session.Variant, session.Step))
}

func (e *Engine) send(ctx context.Context, chatID, text string, menu *Menu) error {
	if err := e.messenger.SendMessage(ctx, chatID, text, menu); err != nil {
		return fmt.Errorf("send to %s: %w", chatID, err)
	}
	return nil
}

func (e *Engine) today() time.Time {
	return StartOfDay(e.now(), e.loc)
}

func (s *ChatSession) listingFields() models.ListingFields {
	f := models.ListingFields{
		ListingType:   s.Variant,
		Route:         s.Route,
		DepartureTime: s.Time,
		Phone:         s.Phone,
		SenderName:    s.SenderName,
		Notes:         s.Notes,
		Source:        models.ListingSourceBot,
	}
	if s.Date != nil {
		f.Date = *s.Date
	}
	if s.Variant == models.ListingTypeDriver {
		f.Seats = s.Seats
	}
	return f
}

// startVariant reports whether ev starts a flow. Typed labels and option
// numbers of the start menu only count when allowText is set.
func startVariant(ev InboundEvent, allowText bool) (models.ListingType, bool) {
	switch ev.Kind {
	case EventCommand:
		switch ev.Value {
		case CommandDriver:
			return models.ListingTypeDriver, true
		case CommandPassenger:
			return models.ListingTypePassenger, true
		}
	case EventChoice:
		if opt, ok := startMenu().Lookup(ev.Value); ok {
			return models.ListingType(opt.Value), true
		}
	case EventFreeText:
		if allowText {
			if opt, ok := startMenu().Match(ev.Value, true); ok {
				return models.ListingType(opt.Value), true
			}
		}
	}
	return "", false
}

func isCancel(ev InboundEvent) bool {
	return (ev.Kind == EventCommand && ev.Value == CommandCancel) ||
		(ev.Kind == EventChoice && ev.Value == tokenCancel)
}

// coerce maps typed text onto the current menu so text-only transports can
// answer menus by label or number.
func coerce(ev InboundEvent, menu *Menu, acceptsText bool) InboundEvent {
	if ev.Kind != EventFreeText {
		return ev
	}
	if strings.EqualFold(ev.Value, "скасувати") {
		return ChoiceEvent(tokenCancel).WithSender(ev.SenderName)
	}
	// On free-text steps only exact labels count, a note may well look like a token
	match := func(text string) (Option, bool) { return menu.Match(text, true) }
	if acceptsText {
		match = menu.MatchLabel
	}
	if opt, ok := match(ev.Value); ok {
		return ChoiceEvent(opt.Token).WithSender(ev.SenderName)
	}
	return ev
}
