package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	events chatEvents
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(engine EventProcessor, dispatcher *services.ChatDispatcher) *WhatsAppHandler {
	return &WhatsAppHandler{events: chatEvents{engine: engine, dispatcher: dispatcher}}
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	// Twilio sends different payloads for different events
	var payload TwilioWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Status callbacks carry neither body nor button payload
	chatID, ev, ok := payload.Event()
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp Message from %s: %s", payload.From, ev.Value)
	_ = h.events.process(c.UserContext(), chatID, ev)

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid    string `form:"MessageSid"`
	AccountSid    string `form:"AccountSid"`
	From          string `form:"From"` // WhatsApp number (whatsapp:+380501234567)
	To            string `form:"To"`   // Your Twilio number
	Body          string `form:"Body"` // Message text
	ButtonPayload string `form:"ButtonPayload"`
	ProfileName   string `form:"ProfileName"`
	NumMedia      string `form:"NumMedia"`
}

// Event decodes the payload into a chat id and event
func (p TwilioWebhookPayload) Event() (string, services.InboundEvent, bool) {
	from := strings.TrimPrefix(strings.TrimSpace(p.From), "whatsapp:")
	if from == "" {
		return "", services.InboundEvent{}, false
	}

	var ev services.InboundEvent
	body := strings.TrimSpace(p.Body)
	switch {
	case p.ButtonPayload != "":
		ev = services.ChoiceEvent(p.ButtonPayload)
	case strings.HasPrefix(body, "/"):
		ev = services.CommandEvent(body)
	case body != "":
		ev = services.TextEvent(body)
	default:
		return "", services.InboundEvent{}, false
	}
	return services.ChannelID(services.ChannelWhatsApp, from), ev.WithSender(p.ProfileName), true
}
