package services

import (
	"context"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// stepFinalize is returned by the last transition of a flow
const stepFinalize Step = "finalize"

const maxNotesLength = 500

type transitionKey struct {
	variant models.ListingType
	step    Step
	kind    EventKind
}

// transition mutates the session copy it is given and returns the next step.
// A *ValidationError leaves the stored session untouched.
type transition func(ctx context.Context, e *Engine, s *ChatSession, ev InboundEvent) (Step, error)

// flowSteps lists the steps of a variant in order, optional branches included
func flowSteps(variant models.ListingType) []Step {
	if variant == models.ListingTypeDriver {
		return []Step{StepPhone, StepRoute, StepDate, StepDateCustom, StepTime, StepTimeCustom, StepSeats, StepNotes}
	}
	return []Step{StepPhone, StepRoute, StepDate, StepDateCustom, StepTime, StepTimeCustom, StepNotes}
}

func buildTransitions() map[transitionKey]transition {
	t := make(map[transitionKey]transition)
	for _, v := range []models.ListingType{models.ListingTypeDriver, models.ListingTypePassenger} {
		t[transitionKey{v, StepPhone, EventContact}] = phoneStep
		t[transitionKey{v, StepPhone, EventFreeText}] = phoneStep
		t[transitionKey{v, StepRoute, EventChoice}] = routeStep
		t[transitionKey{v, StepDate, EventChoice}] = dateStep
		t[transitionKey{v, StepDate, EventFreeText}] = typedDateStep
		t[transitionKey{v, StepDateCustom, EventFreeText}] = typedDateStep
		t[transitionKey{v, StepTime, EventChoice}] = timeStep
		t[transitionKey{v, StepTime, EventFreeText}] = typedTimeStep
		t[transitionKey{v, StepTimeCustom, EventFreeText}] = typedTimeStep
		t[transitionKey{v, StepNotes, EventFreeText}] = notesStep
		t[transitionKey{v, StepNotes, EventChoice}] = notesChoiceStep
	}
	t[transitionKey{models.ListingTypeDriver, StepSeats, EventChoice}] = seatsStep
	return t
}

func menuFor(variant models.ListingType, step Step) *Menu {
	switch step {
	case StepPhone:
		return phoneMenu()
	case StepRoute:
		return routeMenu()
	case StepDate:
		return dateMenu()
	case StepTime:
		return timeMenu(variant)
	case StepSeats:
		return seatsMenu()
	case StepNotes:
		return notesMenu()
	default:
		return NewMenu(Row(cancelOption))
	}
}

// acceptsText reports whether free text is a normal answer at step, in which
// case option numbers are not interpreted.
func acceptsText(step Step) bool {
	switch step {
	case StepPhone, StepDateCustom, StepTimeCustom, StepNotes:
		return true
	}
	return false
}

func afterTime(variant models.ListingType) Step {
	if variant == models.ListingTypeDriver {
		return StepSeats
	}
	return StepNotes
}

func reject(step Step, reason string) error {
	return &ValidationError{Step: step, Reason: reason}
}

func phoneStep(ctx context.Context, e *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	if !IsValidPhone(ev.Value) {
		return "", reject(s.Step, reasonPhone)
	}
	s.Phone = NormalizePhone(ev.Value)

	// Matches reach people through this link, a failure only costs notifications
	if _, err := e.store.LinkChannel(ctx, s.Phone, s.ChatID, s.SenderName); err != nil {
		log.Printf("⚠️ Failed to link %s to %s: %v", s.Phone, s.ChatID, err)
	}
	return StepRoute, nil
}

func routeStep(_ context.Context, _ *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	opt, ok := routeMenu().Lookup(ev.Value)
	if !ok || opt.Value == "" {
		return "", reject(s.Step, reasonChoice)
	}
	s.Route = opt.Value
	return StepDate, nil
}

func dateStep(_ context.Context, e *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	opt, ok := dateMenu().Lookup(ev.Value)
	if !ok {
		return "", reject(s.Step, reasonChoice)
	}
	if opt.Token == tokenDateCustom {
		return StepDateCustom, nil
	}
	offset, err := strconv.Atoi(opt.Value)
	if err != nil {
		return "", reject(s.Step, reasonChoice)
	}
	d := e.today().AddDate(0, 0, offset)
	s.Date = &d
	return StepTime, nil
}

func typedDateStep(_ context.Context, e *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	parsed, err := e.parser.ParseDate(ev.Value, e.now().In(e.loc))
	if err != nil {
		return "", reject(s.Step, reasonDate)
	}
	d := StartOfDay(parsed, e.loc)
	if d.Before(e.today()) {
		return "", reject(s.Step, reasonPastDate)
	}
	s.Date = &d
	return StepTime, nil
}

func timeStep(_ context.Context, _ *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	opt, ok := timeMenu(s.Variant).Lookup(ev.Value)
	if !ok {
		return "", reject(s.Step, reasonChoice)
	}
	switch opt.Token {
	case tokenTimeCustom:
		return StepTimeCustom, nil
	case tokenTimeSkip:
		s.Time = nil
		return afterTime(s.Variant), nil
	}
	if opt.Value == "" {
		return "", reject(s.Step, reasonChoice)
	}
	t := opt.Value
	s.Time = &t
	return afterTime(s.Variant), nil
}

func typedTimeStep(_ context.Context, e *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	t, ok := e.parser.ParseTime(ev.Value)
	if !ok {
		return "", reject(s.Step, reasonTime)
	}
	s.Time = &t
	return afterTime(s.Variant), nil
}

func seatsStep(_ context.Context, _ *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	opt, ok := seatsMenu().Lookup(ev.Value)
	if !ok {
		return "", reject(s.Step, reasonChoice)
	}
	n, err := strconv.Atoi(opt.Value)
	if err != nil || n < 1 || n > MaxSeats {
		return "", reject(s.Step, reasonChoice)
	}
	s.Seats = &n
	return StepNotes, nil
}

func notesStep(_ context.Context, _ *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	text := strings.TrimSpace(ev.Value)
	if text == "" {
		return "", reject(s.Step, reasonChoice)
	}
	if utf8.RuneCountInString(text) > maxNotesLength {
		return "", reject(s.Step, reasonNotesLong)
	}
	s.Notes = &text
	return stepFinalize, nil
}

func notesChoiceStep(_ context.Context, _ *Engine, s *ChatSession, ev InboundEvent) (Step, error) {
	if ev.Value != tokenNotesSkip {
		return "", reject(s.Step, reasonChoice)
	}
	s.Notes = nil
	return stepFinalize, nil
}
