package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// CallbackAnswerer acknowledges pressed inline buttons
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID string) error
}

// TelegramHandler handles Telegram webhook requests
type TelegramHandler struct {
	events    chatEvents
	callbacks CallbackAnswerer
}

// NewTelegramHandler creates a new Telegram handler; callbacks may be nil
func NewTelegramHandler(engine EventProcessor, dispatcher *services.ChatDispatcher, callbacks CallbackAnswerer) *TelegramHandler {
	return &TelegramHandler{
		events:    chatEvents{engine: engine, dispatcher: dispatcher},
		callbacks: callbacks,
	}
}

// HandleWebhook processes one Telegram update. It answers 200 even when
// processing fails so Telegram does not redeliver the update.
func (h *TelegramHandler) HandleWebhook(c *fiber.Ctx) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		log.Printf("Error parsing telegram update: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid update payload",
		})
	}

	ctx := c.UserContext()
	if update.CallbackQuery != nil && h.callbacks != nil {
		if err := h.callbacks.AnswerCallback(ctx, update.CallbackQuery.ID); err != nil {
			log.Printf("⚠️ %v", err)
		}
	}

	chatID, ev, ok := EventFromUpdate(update)
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("💬 Telegram %s from %s: %s", ev.Kind, chatID, ev.Value)
	_ = h.events.process(ctx, chatID, ev)
	return c.SendStatus(fiber.StatusOK)
}

// EventFromUpdate decodes an update into a chat id and event. ok is false for
// updates the engine has no use for (edits, stickers, channel posts).
func EventFromUpdate(u tgbotapi.Update) (string, services.InboundEvent, bool) {
	if q := u.CallbackQuery; q != nil {
		var chat int64
		switch {
		case q.Message != nil && q.Message.Chat != nil:
			chat = q.Message.Chat.ID
		case q.From != nil:
			chat = q.From.ID
		default:
			return "", services.InboundEvent{}, false
		}
		ev := services.ChoiceEvent(q.Data)
		if q.From != nil {
			ev = ev.WithSender(displayName(q.From))
		}
		return telegramChat(chat), ev, q.Data != ""
	}

	m := u.Message
	if m == nil || m.Chat == nil {
		return "", services.InboundEvent{}, false
	}

	var ev services.InboundEvent
	switch {
	case m.Contact != nil:
		ev = services.ContactEvent(m.Contact.PhoneNumber)
	case m.IsCommand():
		ev = services.CommandEvent(m.Command())
	case m.Text != "":
		ev = services.TextEvent(m.Text)
	default:
		return "", services.InboundEvent{}, false
	}
	if m.From != nil {
		ev = ev.WithSender(displayName(m.From))
	}
	return telegramChat(m.Chat.ID), ev, true
}

func telegramChat(id int64) string {
	return services.ChannelID(services.ChannelTelegram, strconv.FormatInt(id, 10))
}

func displayName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.UserName
	}
	return name
}
