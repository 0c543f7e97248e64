package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// TestChatPayload drives the engine without a messaging transport
type TestChatPayload struct {
	ChatID string `json:"chat_id"`
	Kind   string `json:"kind"` // command, text, choice, contact
	Value  string `json:"value"`
	Sender string `json:"sender"`
}

// TestChatHandler processes test chat events (for development)
type TestChatHandler struct {
	events chatEvents
}

// NewTestChatHandler creates a new test chat handler
func NewTestChatHandler(engine EventProcessor, dispatcher *services.ChatDispatcher) *TestChatHandler {
	return &TestChatHandler{events: chatEvents{engine: engine, dispatcher: dispatcher}}
}

// Handle processes one test event; replies go to the configured messenger
func (h *TestChatHandler) Handle(c *fiber.Ctx) error {
	var payload TestChatPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if payload.ChatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "chat_id is required",
		})
	}

	var ev services.InboundEvent
	switch strings.ToLower(payload.Kind) {
	case "command":
		ev = services.CommandEvent(payload.Value)
	case "text", "":
		ev = services.TextEvent(payload.Value)
	case "choice":
		ev = services.ChoiceEvent(payload.Value)
	case "contact":
		ev = services.ContactEvent(payload.Value)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown kind " + payload.Kind,
		})
	}
	ev = ev.WithSender(payload.Sender)

	chatID := payload.ChatID
	if _, _, ok := services.SplitChannel(chatID); !ok {
		chatID = services.ChannelID("test", chatID)
	}

	log.Printf("🧪 Test chat event from %s: %s %q", chatID, ev.Kind, ev.Value)
	if err := h.events.process(c.UserContext(), chatID, ev); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"chat_id": chatID,
	})
}
