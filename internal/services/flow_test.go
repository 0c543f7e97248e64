package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

const driverChat = "telegram:100"

func TestDriverFlowCreatesListing(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, driverChat, CommandEvent("/driver"))
	if s := env.session(t, driverChat); s.Step != StepPhone || s.Variant != models.ListingTypeDriver {
		t.Fatalf("unexpected session after start: %+v", s)
	}

	env.send(t, driverChat, ContactEvent("0501234567"))
	if s := env.session(t, driverChat); s.Step != StepRoute || s.Phone != "380501234567" {
		t.Fatalf("unexpected session after phone: %+v", s)
	}

	env.send(t, driverChat,
		ChoiceEvent("route:Kyiv-Malyn"),
		ChoiceEvent("date:today"),
		ChoiceEvent("time:18:00"),
		ChoiceEvent("seats:3"),
	)
	if s := env.session(t, driverChat); s.Step != StepNotes {
		t.Fatalf("expected notes step, got %s", s.Step)
	}

	env.send(t, driverChat, ChoiceEvent("notes:skip"))

	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session should be deleted after finalize, got %v", err)
	}

	listings := env.listings(t, models.ListingTypeDriver, "Kyiv-Malyn")
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	l := listings[0]
	if !l.Date.Equal(env.today()) {
		t.Errorf("date = %v, want %v", l.Date, env.today())
	}
	if l.DepartureTime == nil || *l.DepartureTime != "18:00" {
		t.Errorf("time = %v, want 18:00", l.DepartureTime)
	}
	if l.Seats == nil || *l.Seats != 3 {
		t.Errorf("seats = %v, want 3", l.Seats)
	}
	if l.Phone != "380501234567" || l.Notes != nil || l.Source != models.ListingSourceBot {
		t.Errorf("unexpected listing %+v", l)
	}

	ack := env.messenger.last(t, driverChat).text
	if !strings.Contains(ack, "створено") || !strings.Contains(ack, "Київ → Малин") || !strings.Contains(ack, "Місць: 3") {
		t.Fatalf("unexpected acknowledgement:\n%s", ack)
	}

	// Phone step linked the chat so later matches can reach the driver
	if ch, err := env.store.ResolveChannelByPhone(context.Background(), "380501234567"); err != nil || ch != driverChat {
		t.Fatalf("channel link = %q, %v", ch, err)
	}
}

func TestDriverFlowNotifiesExactMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.store.CreateListing(ctx, models.ListingFields{
		ListingType:   models.ListingTypePassenger,
		Route:         "Kyiv-Malyn",
		Date:          env.today(),
		DepartureTime: strPtr("18:00"),
		Phone:         "380671112233",
	}); err != nil {
		t.Fatalf("seed passenger: %v", err)
	}
	if _, err := env.store.LinkChannel(ctx, "380671112233", "telegram:200", nil); err != nil {
		t.Fatalf("link passenger: %v", err)
	}

	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepNotes)...)
	env.send(t, driverChat, ChoiceEvent("notes:skip"))

	if !env.messenger.anyContains(driverChat, "Точні збіги за часом (1)") {
		t.Fatalf("driver did not receive the exact match group")
	}
	passengerMsgs := env.messenger.to("telegram:200")
	if len(passengerMsgs) != 1 {
		t.Fatalf("passenger got %d messages, want 1", len(passengerMsgs))
	}
	if !strings.Contains(passengerMsgs[0].text, "Точний збіг") || !strings.Contains(passengerMsgs[0].text, "Новий водій") {
		t.Fatalf("unexpected passenger notification:\n%s", passengerMsgs[0].text)
	}
}

func TestPassengerFlowWithSkipAndNotes(t *testing.T) {
	env := newTestEnv(t)
	chat := "whatsapp:+380671112233"

	env.send(t, chat,
		TextEvent("🙋 Я пасажир").WithSender("Оля"),
		TextEvent("+380 67 111 22 33"),
		ChoiceEvent("route:Malyn-Kyiv"),
		ChoiceEvent("date:tomorrow"),
		ChoiceEvent("time:skip"),
	)
	if s := env.session(t, chat); s.Step != StepNotes || s.Time != nil {
		t.Fatalf("expected notes step without time, got %+v", s)
	}
	env.send(t, chat, TextEvent("біля вокзалу, з валізою"))

	listings := env.listings(t, models.ListingTypePassenger, "Malyn-Kyiv")
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	l := listings[0]
	if !l.Date.Equal(env.today().AddDate(0, 0, 1)) || l.DepartureTime != nil || l.Seats != nil {
		t.Fatalf("unexpected listing %+v", l)
	}
	if l.Notes == nil || *l.Notes != "біля вокзалу, з валізою" {
		t.Fatalf("notes = %v", l.Notes)
	}
	if l.SenderName == nil || *l.SenderName != "Оля" {
		t.Fatalf("sender = %v", l.SenderName)
	}
}

func TestTextOnlyTransportAnswersMenusByNumber(t *testing.T) {
	env := newTestEnv(t)
	chat := "whatsapp:+380501234567"

	env.send(t, chat,
		TextEvent("1"), // start menu: driver
		TextEvent("0501234567"),
		TextEvent("1"), // first route
		TextEvent("2"), // tomorrow
		TextEvent("9:30"),
		TextEvent("4"), // seats
	)
	s := env.session(t, chat)
	if s.Variant != models.ListingTypeDriver || s.Step != StepNotes {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Route != KnownRoutes[0] || s.Time == nil || *s.Time != "09:30" || s.Seats == nil || *s.Seats != 4 {
		t.Fatalf("unexpected fields %+v", s)
	}

	// On the notes step numbers are notes, not options
	env.send(t, chat, TextEvent("2"))
	l := env.listings(t, models.ListingTypeDriver, KnownRoutes[0])
	if len(l) != 1 || l[0].Notes == nil || *l[0].Notes != "2" {
		t.Fatalf("expected listing with notes \"2\", got %+v", l)
	}
}

func TestCustomDateAndTime(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepDateCustom)...)

	env.send(t, driverChat, TextEvent("20.02"))
	s := env.session(t, driverChat)
	want := time.Date(2026, 2, 20, 0, 0, 0, 0, testLoc)
	if s.Step != StepTime || s.Date == nil || !s.Date.Equal(want) {
		t.Fatalf("unexpected session after custom date: %+v", s)
	}

	env.send(t, driverChat, ChoiceEvent("time:custom"), TextEvent("о 20-45"))
	s = env.session(t, driverChat)
	if s.Step != StepSeats || s.Time == nil || *s.Time != "20:45" {
		t.Fatalf("unexpected session after custom time: %+v", s)
	}
}

func TestInvalidTimeKeepsStep(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepTimeCustom)...)
	before := env.session(t, driverChat)

	env.send(t, driverChat, TextEvent("not a time"))

	after := env.session(t, driverChat)
	if after.Step != StepTimeCustom || after.Time != nil {
		t.Fatalf("invalid time changed the session: %+v", after)
	}
	if !after.LastTouched.Equal(before.LastTouched) {
		t.Fatalf("invalid input touched the session")
	}
	last := env.messenger.last(t, driverChat).text
	if !strings.Contains(last, reasonTime) || !strings.Contains(last, stepPrompt(models.ListingTypeDriver, StepTimeCustom)) {
		t.Fatalf("expected re-prompt, got:\n%s", last)
	}
}

func TestInvalidInputNeverAdvances(t *testing.T) {
	bad := []InboundEvent{
		TextEvent("???"),
		ChoiceEvent("bogus"),
		ChoiceEvent("route:Lviv-Odesa"),
		ChoiceEvent("seats:9"),
		ContactEvent("12"),
	}
	for _, variant := range []models.ListingType{models.ListingTypeDriver, models.ListingTypePassenger} {
		for _, step := range flowSteps(variant) {
			for _, ev := range bad {
				if step == StepNotes && ev.Kind == EventFreeText {
					continue // any text is a valid note
				}
				env := newTestEnv(t)
				env.send(t, driverChat, eventsTo(variant, step)...)
				before := env.session(t, driverChat)

				env.send(t, driverChat, ev)

				after := env.session(t, driverChat)
				if after.Step != before.Step {
					t.Fatalf("%s/%s: %s %q moved step to %s", variant, step, ev.Kind, ev.Value, after.Step)
				}
				if !reflect.DeepEqual(after, before) {
					t.Fatalf("%s/%s: %s %q changed the session", variant, step, ev.Kind, ev.Value)
				}
			}
		}
	}
}

func TestCancelAtEveryStep(t *testing.T) {
	for _, variant := range []models.ListingType{models.ListingTypeDriver, models.ListingTypePassenger} {
		for _, step := range flowSteps(variant) {
			t.Run(string(variant)+"/"+string(step), func(t *testing.T) {
				env := newTestEnv(t)
				env.send(t, driverChat, eventsTo(variant, step)...)

				env.send(t, driverChat, ChoiceEvent("cancel"))
				if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
					t.Fatalf("session should be deleted, got %v", err)
				}
				if !strings.Contains(env.messenger.last(t, driverChat).text, msgCancelled) {
					t.Fatalf("missing cancel acknowledgement")
				}
				if n := len(env.listings(t, variant, "Kyiv-Malyn")); n != 0 {
					t.Fatalf("cancelled flow persisted %d listings", n)
				}

				env.send(t, driverChat, CommandEvent("/passenger"))
				s := env.session(t, driverChat)
				if s.Step != StepPhone || s.Variant != models.ListingTypePassenger || s.Phone != "" {
					t.Fatalf("expected a fresh passenger flow, got %+v", s)
				}
			})
		}
	}
}

func TestCancelByCommandAndTypedText(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepRoute)...)
	env.send(t, driverChat, CommandEvent("/cancel"))
	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("/cancel did not delete the session: %v", err)
	}

	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepNotes)...)
	env.send(t, driverChat, TextEvent("Скасувати"))
	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("typed cancel did not delete the session: %v", err)
	}
}

func TestExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepRoute)...)

	env.clock = env.clock.Add(15*time.Minute + time.Second)
	env.send(t, driverChat, ChoiceEvent("route:Kyiv-Malyn"))

	last := env.messenger.last(t, driverChat)
	if !strings.Contains(last.text, msgExpired) {
		t.Fatalf("expected expiry prompt, got:\n%s", last.text)
	}
	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session should be removed, got %v", err)
	}
}

func TestExpiredSessionWithStartCommandStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepSeats)...)

	env.clock = env.clock.Add(time.Hour)
	env.send(t, driverChat, CommandEvent("/passenger"))

	if !env.messenger.anyContains(driverChat, msgExpired) {
		t.Fatalf("expected expiry prompt")
	}
	s := env.session(t, driverChat)
	if s.Variant != models.ListingTypePassenger || s.Step != StepPhone {
		t.Fatalf("expected fresh passenger flow, got %+v", s)
	}
}

func TestSessionWithinTTLIsKept(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepRoute)...)

	env.clock = env.clock.Add(15 * time.Minute)
	env.send(t, driverChat, ChoiceEvent("route:Kyiv-Malyn"))
	if s := env.session(t, driverChat); s.Step != StepDate {
		t.Fatalf("expected date step, got %s", s.Step)
	}
}

func TestIdleChatGetsStartMenu(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, TextEvent("привіт"))

	last := env.messenger.last(t, driverChat)
	if last.text != msgWelcome {
		t.Fatalf("unexpected text %q", last.text)
	}
	if _, ok := last.menu.Lookup("flow:driver"); !ok {
		t.Fatalf("start menu missing driver option")
	}
	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("idle message should not create a session")
	}
}

func TestStartCommandMidFlowRestarts(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepSeats)...)
	env.send(t, driverChat, CommandEvent("/driver"))

	s := env.session(t, driverChat)
	if s.Step != StepPhone || s.Route != "" {
		t.Fatalf("expected a fresh flow, got %+v", s)
	}
}

func TestHelpCommandRepromptsCurrentStep(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepDate)...)
	env.send(t, driverChat, CommandEvent("/help"))

	if s := env.session(t, driverChat); s.Step != StepDate {
		t.Fatalf("help moved the flow to %s", s.Step)
	}
	if got := env.messenger.last(t, driverChat).text; got != stepPrompt(models.ListingTypeDriver, StepDate) {
		t.Fatalf("unexpected prompt %q", got)
	}
}

func TestPastCustomDateRejected(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepDateCustom)...)
	env.send(t, driverChat, TextEvent("10.02.2026"))

	if s := env.session(t, driverChat); s.Step != StepDateCustom || s.Date != nil {
		t.Fatalf("past date accepted: %+v", s)
	}
	if !strings.Contains(env.messenger.last(t, driverChat).text, reasonPastDate) {
		t.Fatalf("missing past date reason")
	}
}

type failingStore struct {
	*storage.MemoryStore
	err error
}

func (f failingStore) CreateListing(context.Context, models.ListingFields) (*models.RideListing, error) {
	return nil, f.err
}

func TestFinalizeFailureDiscardsSession(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("db down")
	env.engine = NewEngine(EngineConfig{
		Sessions:  env.sessions,
		Store:     failingStore{MemoryStore: env.store, err: boom},
		Messenger: env.messenger,
		Location:  testLoc,
		Now:       func() time.Time { return env.clock },
	})

	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepNotes)...)
	err := env.engine.OnInboundEvent(context.Background(), driverChat, ChoiceEvent("notes:skip"))

	var ferr *FinalizeError
	if !errors.As(err, &ferr) || !errors.Is(err, boom) || ferr.ChatID != driverChat {
		t.Fatalf("expected FinalizeError wrapping db error, got %v", err)
	}
	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session should be discarded, got %v", err)
	}
	if env.messenger.last(t, driverChat).text != msgFinalizeFailed {
		t.Fatalf("user not told about the failure")
	}
}

func TestFinalizeGuardsRequiredFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A session that reached notes without a route can only come from a corrupt store entry
	_ = env.sessions.Set(ctx, &ChatSession{
		ChatID:      driverChat,
		Variant:     models.ListingTypeDriver,
		Step:        StepNotes,
		Phone:       "380501234567",
		CreatedAt:   env.clock,
		LastTouched: env.clock,
	})
	env.send(t, driverChat, ChoiceEvent("notes:skip"))

	if n := len(env.listings(t, models.ListingTypeDriver, "")); n != 0 {
		t.Fatalf("partial listing persisted")
	}
	if env.messenger.last(t, driverChat).text != msgIncomplete {
		t.Fatalf("expected restart instruction")
	}
	if _, err := env.sessions.Get(ctx, driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session should be removed, got %v", err)
	}
}

type recordingPublisher struct{ published []*models.RideListing }

func (p *recordingPublisher) PublishListingCreated(_ context.Context, l *models.RideListing) error {
	p.published = append(p.published, l)
	return errors.New("broker unavailable")
}

func TestFinalizePublishesEventBestEffort(t *testing.T) {
	env := newTestEnv(t)
	pub := &recordingPublisher{}
	env.engine = NewEngine(EngineConfig{
		Sessions:  env.sessions,
		Store:     env.store,
		Messenger: env.messenger,
		Events:    pub,
		Location:  testLoc,
		Now:       func() time.Time { return env.clock },
	})

	env.send(t, driverChat, eventsTo(models.ListingTypePassenger, StepNotes)...)
	env.send(t, driverChat, ChoiceEvent("notes:skip"))

	if len(pub.published) != 1 || pub.published[0].ListingType != models.ListingTypePassenger {
		t.Fatalf("expected one published passenger listing, got %d", len(pub.published))
	}
	if len(env.listings(t, models.ListingTypePassenger, "Kyiv-Malyn")) != 1 {
		t.Fatalf("publish failure should not undo the listing")
	}
}

func TestTransitionTable(t *testing.T) {
	next := map[models.ListingType]map[Step][]Step{
		models.ListingTypeDriver: {
			StepPhone:      {StepRoute},
			StepRoute:      {StepDate},
			StepDate:       {StepDateCustom, StepTime},
			StepDateCustom: {StepTime},
			StepTime:       {StepTimeCustom, StepSeats},
			StepTimeCustom: {StepSeats},
			StepSeats:      {StepNotes},
			StepNotes:      {stepFinalize},
		},
		models.ListingTypePassenger: {
			StepPhone:      {StepRoute},
			StepRoute:      {StepDate},
			StepDate:       {StepDateCustom, StepTime},
			StepDateCustom: {StepTime},
			StepTime:       {StepTimeCustom, StepNotes},
			StepTimeCustom: {StepNotes},
			StepNotes:      {stepFinalize},
		},
	}

	env := newTestEnv(t)
	table := buildTransitions()

	for variant, edges := range next {
		steps := flowSteps(variant)
		if len(steps) != len(edges) {
			t.Fatalf("%s: %d steps, %d expected", variant, len(steps), len(edges))
		}
		for _, step := range steps {
			handled := false
			for _, kind := range []EventKind{EventCommand, EventFreeText, EventChoice, EventContact} {
				if _, ok := table[transitionKey{variant, step, kind}]; ok {
					handled = true
				}
			}
			if !handled {
				t.Fatalf("%s/%s has no transition", variant, step)
			}

			// Every menu option must lead along an allowed edge
			for _, opt := range menuFor(variant, step).Options() {
				if opt.Token == tokenCancel || opt.RequestContact {
					continue
				}
				tr, ok := table[transitionKey{variant, step, EventChoice}]
				if !ok {
					t.Fatalf("%s/%s offers %q but takes no choices", variant, step, opt.Token)
				}
				s := &ChatSession{ChatID: driverChat, Variant: variant, Step: step}
				got, err := tr(context.Background(), env.engine, s, ChoiceEvent(opt.Token))
				if err != nil {
					t.Fatalf("%s/%s rejected its own option %q: %v", variant, step, opt.Token, err)
				}
				if !containsStep(edges[step], got) {
					t.Fatalf("%s/%s option %q leads to %s, allowed %v", variant, step, opt.Token, got, edges[step])
				}
			}
		}
	}

	for key := range table {
		if _, ok := next[key.variant][key.step]; !ok {
			t.Fatalf("transition for %s/%s is not part of the flow", key.variant, key.step)
		}
	}
}

func containsStep(steps []Step, s Step) bool {
	for _, candidate := range steps {
		if candidate == s {
			return true
		}
	}
	return false
}

func TestTokenLikeTextOnNotesStepIsANote(t *testing.T) {
	for _, text := range []string{"Cancel", "notes:skip", "route:Kyiv-Malyn"} {
		t.Run(text, func(t *testing.T) {
			env := newTestEnv(t)
			env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepNotes)...)
			env.send(t, driverChat, TextEvent(text))

			l := env.listings(t, models.ListingTypeDriver, "Kyiv-Malyn")
			if len(l) != 1 || l[0].Notes == nil || *l[0].Notes != text {
				t.Fatalf("expected listing with notes %q, got %+v", text, l)
			}
		})
	}

	// The label of the skip button still skips
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepNotes)...)
	env.send(t, driverChat, TextEvent("⏭ Без примітки"))
	l := env.listings(t, models.ListingTypeDriver, "Kyiv-Malyn")
	if len(l) != 1 || l[0].Notes != nil {
		t.Fatalf("expected listing without notes, got %+v", l)
	}
}

func TestAcceptedPhoneRemovesContactKeyboard(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, CommandEvent("/driver"), TextEvent("050 123 45 67"))

	msgs := env.messenger.to(driverChat)
	if len(msgs) < 2 {
		t.Fatalf("expected confirmation and route prompt, got %d messages", len(msgs))
	}
	confirm, prompt := msgs[len(msgs)-2], msgs[len(msgs)-1]
	if confirm.menu == nil || !confirm.menu.RemoveKeyboard || !strings.Contains(confirm.text, "+380501234567") {
		t.Fatalf("unexpected confirmation %+v", confirm)
	}
	if prompt.text != stepPrompt(models.ListingTypeDriver, StepRoute) {
		t.Fatalf("route prompt should follow, got %q", prompt.text)
	}
}

func TestUntilTimeIsNotADepartureTime(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepTimeCustom)...)
	env.send(t, driverChat, TextEvent("до 20-45"))

	if s := env.session(t, driverChat); s.Step != StepTimeCustom || s.Time != nil {
		t.Fatalf("\"до 20-45\" was taken as a departure time: %+v", s)
	}
}

func TestSweptSessionBehavesAsAbsent(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, driverChat, eventsTo(models.ListingTypeDriver, StepRoute)...)

	env.clock = env.clock.Add(time.Hour)
	if n, err := env.sessions.Sweep(context.Background()); err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}

	// Once swept there is nothing left to report as expired
	env.send(t, driverChat, ChoiceEvent("route:Kyiv-Malyn"))
	if got := env.messenger.last(t, driverChat).text; got != msgWelcome {
		t.Fatalf("expected the welcome menu, got %q", got)
	}
	if _, err := env.sessions.Get(context.Background(), driverChat); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("no session should be created, got %v", err)
	}
}
