package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/poputky-backend/internal/config"
	"github.com/Ananth-NQI/poputky-backend/internal/handlers"
	"github.com/Ananth-NQI/poputky-backend/internal/services"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

type nopProcessor struct{}

func (nopProcessor) OnInboundEvent(context.Context, string, services.InboundEvent) error { return nil }

func newApp(cfg config.Config) *fiber.App {
	dispatcher := services.NewChatDispatcher()
	importer := services.NewViberImporter(services.ImporterConfig{
		Store:     storage.NewMemoryStore(),
		Messenger: services.LogMessenger{},
		Location:  time.UTC,
	})
	app := fiber.New()
	SetupRoutes(app, cfg, Handlers{
		Health:   handlers.NewHealthHandler("test", "memory"),
		Telegram: handlers.NewTelegramHandler(nopProcessor{}, dispatcher, nil),
		WhatsApp: handlers.NewWhatsAppHandler(nopProcessor{}, dispatcher),
		TestChat: handlers.NewTestChatHandler(nopProcessor{}, dispatcher),
		Listings: handlers.NewListingHandler(storage.NewMemoryStore(), time.UTC),
		Import:   handlers.NewImportHandler(importer),
	})
	return app
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	return resp.StatusCode
}

func TestDevelopmentRoutes(t *testing.T) {
	app := newApp(config.Config{Environment: "development"})

	for _, path := range []string{"/", "/health", "/metrics"} {
		if code := status(t, app, httptest.NewRequest(http.MethodGet, path, nil)); code != fiber.StatusOK {
			t.Errorf("GET %s = %d", path, code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/test/chat", strings.NewReader(`{"chat_id":"1","value":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	if code := status(t, app, req); code != fiber.StatusOK {
		t.Fatalf("POST /test/chat = %d", code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("From=whatsapp%3A%2B380501234567&Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if code := status(t, app, req); code != fiber.StatusOK {
		t.Fatalf("unsigned whatsapp webhook in development = %d", code)
	}
}

func TestProductionRoutesAreProtected(t *testing.T) {
	app := newApp(config.Config{
		Environment:           "production",
		TwilioAuthToken:       "token",
		TelegramWebhookSecret: "secret",
	})

	req := httptest.NewRequest(http.MethodPost, "/test/chat", strings.NewReader(`{"chat_id":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	if code := status(t, app, req); code != fiber.StatusNotFound {
		t.Fatalf("test chat should not exist in production, got %d", code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if code := status(t, app, req); code != fiber.StatusUnauthorized {
		t.Fatalf("unsigned whatsapp webhook = %d, want 401", code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	if code := status(t, app, req); code != fiber.StatusUnauthorized {
		t.Fatalf("telegram webhook without secret = %d, want 401", code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "secret")
	if code := status(t, app, req); code != fiber.StatusOK {
		t.Fatalf("telegram webhook with secret = %d", code)
	}
}

func TestViberImportRoute(t *testing.T) {
	body := "[ 13 лютого 2026 р. 18:02 ] \u2068Оля\u2069: Водій Київ - Малин завтра 0501234567"
	post := func(app *fiber.App, key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/import/viber", strings.NewReader(body))
		req.Header.Set("Content-Type", "text/plain")
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		return status(t, app, req)
	}

	if code := post(newApp(config.Config{Environment: "development"}), ""); code != fiber.StatusOK {
		t.Fatalf("development import without key = %d", code)
	}

	prod := newApp(config.Config{Environment: "production", ImportAPIKey: "k"})
	if code := post(prod, ""); code != fiber.StatusUnauthorized {
		t.Fatalf("import without key = %d, want 401", code)
	}
	if code := post(prod, "k"); code != fiber.StatusOK {
		t.Fatalf("import with key = %d", code)
	}

	if code := post(newApp(config.Config{Environment: "production"}), "k"); code != fiber.StatusNotFound {
		t.Fatalf("import without configured key in production = %d, want 404", code)
	}
}
