package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ananth-NQI/poputky-backend/internal/config"
	"github.com/Ananth-NQI/poputky-backend/internal/handlers"
	"github.com/Ananth-NQI/poputky-backend/internal/middleware"
)

// Handlers groups everything the routes dispatch to
type Handlers struct {
	Health   *handlers.HealthHandler
	Telegram *handlers.TelegramHandler
	WhatsApp *handlers.WhatsAppHandler
	TestChat *handlers.TestChatHandler
	Listings *handlers.ListingHandler
	Import   *handlers.ImportHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg config.Config, h Handlers) {
	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Poputky Backend!",
			"version": h.Health.Version,
			"endpoints": fiber.Map{
				"health":   "/health",
				"metrics":  "/metrics",
				"listings": "/api/listings",
				"import":   "/api/import/viber",
				"telegram": "/webhook/telegram",
				"whatsapp": "/webhook/whatsapp",
			},
		})
	})

	app.Get("/health", h.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := app.Group("/api")
	api.Get("/listings", h.Listings.List)

	switch {
	case cfg.ImportAPIKey != "":
		api.Post("/import/viber", middleware.ValidateAPIKey(cfg.ImportAPIKey), h.Import.Viber)
	case cfg.IsDevelopment():
		log.Println("⚠️  IMPORT_API_KEY not set, Viber import is open")
		api.Post("/import/viber", h.Import.Viber)
	default:
		log.Println("⚠️  IMPORT_API_KEY not set, Viber import disabled")
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if cfg.TelegramWebhookSecret != "" {
		webhooks.Post("/telegram", middleware.ValidateTelegramSecret(cfg.TelegramWebhookSecret), h.Telegram.HandleWebhook)
	} else {
		log.Println("⚠️  Telegram webhook secret not set, accepting unauthenticated updates")
		webhooks.Post("/telegram", h.Telegram.HandleWebhook)
	}

	// WhatsApp webhook - ENVIRONMENT-AWARE VALIDATION
	if cfg.IsDevelopment() || cfg.DisableWebhookValidation {
		// Development: Skip validation for ngrok
		log.Println("⚠️  WhatsApp webhook validation DISABLED")
		webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
	} else {
		// Production: Validate webhook signature
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.TwilioAuthToken), h.WhatsApp.HandleWebhook)
	}

	// ========== TEST ROUTES (development only) ==========
	if cfg.IsDevelopment() {
		app.Group("/test").Post("/chat", h.TestChat.Handle)
	}
}
