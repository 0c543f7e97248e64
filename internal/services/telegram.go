package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI is the part of *tgbotapi.BotAPI the messenger needs
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramMessenger sends messages through the Telegram Bot API
type TelegramMessenger struct {
	bot telegramAPI
}

// NewTelegramMessenger connects to the Bot API with the given token
func NewTelegramMessenger(token string) (*TelegramMessenger, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	log.Printf("✅ Telegram bot authorized as @%s", bot.Self.UserName)
	return &TelegramMessenger{bot: bot}, nil
}

func (t *TelegramMessenger) SendMessage(_ context.Context, channelID, text string, menu *Menu) error {
	_, address, ok := SplitChannel(channelID)
	if !ok {
		return fmt.Errorf("invalid telegram channel %q", channelID)
	}
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if markup := telegramMarkup(menu); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// AnswerCallback stops the loading indicator on a pressed inline button
func (t *TelegramMessenger) AnswerCallback(_ context.Context, callbackID string) error {
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}

// telegramMarkup turns a menu into an inline keyboard, or into a one-time reply
// keyboard when the menu asks for the user's contact. Telegram takes one markup
// per message, so removing the reply keyboard needs a message of its own.
func telegramMarkup(menu *Menu) interface{} {
	if menu != nil && menu.RemoveKeyboard {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	if menu == nil || len(menu.Options()) == 0 {
		return nil
	}

	wantsContact := false
	for _, opt := range menu.Options() {
		if opt.RequestContact {
			wantsContact = true
			break
		}
	}

	if wantsContact {
		var rows [][]tgbotapi.KeyboardButton
		for _, row := range menu.Rows {
			var buttons []tgbotapi.KeyboardButton
			for _, opt := range row {
				if opt.RequestContact {
					buttons = append(buttons, tgbotapi.NewKeyboardButtonContact(opt.Label))
				} else {
					buttons = append(buttons, tgbotapi.NewKeyboardButton(opt.Label))
				}
			}
			if len(buttons) > 0 {
				rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
			}
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.OneTimeKeyboard = true
		keyboard.ResizeKeyboard = true
		return keyboard
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range menu.Rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, opt := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(opt.Label, opt.Token))
		}
		if len(buttons) > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
