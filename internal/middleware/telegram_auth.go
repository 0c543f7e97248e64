package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// TelegramSecretHeader carries the secret_token registered with setWebhook
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ValidateTelegramSecret rejects webhook calls that do not carry the secret
func ValidateTelegramSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid webhook secret",
			})
		}
		return c.Next()
	}
}
