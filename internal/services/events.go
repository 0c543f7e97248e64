package services

import "strings"

// EventKind tags the variant carried by an InboundEvent
type EventKind int

const (
	EventCommand EventKind = iota
	EventFreeText
	EventChoice
	EventContact
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventFreeText:
		return "free_text"
	case EventChoice:
		return "choice"
	case EventContact:
		return "contact"
	default:
		return "unknown"
	}
}

// InboundEvent is one message from a chat, already decoded by the transport
type InboundEvent struct {
	Kind  EventKind
	Value string // command name, text, menu token or shared phone

	// SenderName is the display name the transport knows for the sender, if any
	SenderName string
}

// Commands understood by the engine
const (
	CommandStart     = "start"
	CommandHelp      = "help"
	CommandDriver    = "driver"
	CommandPassenger = "passenger"
	CommandCancel    = "cancel"
)

// CommandEvent builds a command event; a leading slash and a bot suffix are stripped
func CommandEvent(name string) InboundEvent {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return InboundEvent{Kind: EventCommand, Value: strings.ToLower(name)}
}

// TextEvent builds a free text event
func TextEvent(text string) InboundEvent {
	return InboundEvent{Kind: EventFreeText, Value: strings.TrimSpace(text)}
}

// ChoiceEvent builds a menu choice event
func ChoiceEvent(token string) InboundEvent {
	return InboundEvent{Kind: EventChoice, Value: token}
}

// ContactEvent builds a shared contact event
func ContactEvent(phone string) InboundEvent {
	return InboundEvent{Kind: EventContact, Value: strings.TrimSpace(phone)}
}

// WithSender returns a copy of the event carrying the sender's display name
func (e InboundEvent) WithSender(name string) InboundEvent {
	e.SenderName = strings.TrimSpace(name)
	return e
}
