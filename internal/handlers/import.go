package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// Importer turns a copied chat into listings
type Importer interface {
	Import(ctx context.Context, export string) (services.ImportReport, error)
}

// ImportPayload is the JSON form of an import request
type ImportPayload struct {
	Messages string `json:"messages"`
}

// ImportHandler accepts messages copied from the Viber group chat
type ImportHandler struct {
	importer Importer
}

// NewImportHandler creates a new import handler
func NewImportHandler(importer Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Viber imports listings from a Viber chat copy.
// POST /api/import/viber with a text/plain body or {"messages": "..."}
func (h *ImportHandler) Viber(c *fiber.Ctx) error {
	export := string(c.Body())
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var payload ImportPayload
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid import payload",
			})
		}
		export = payload.Messages
	}
	if strings.TrimSpace(export) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "messages are required",
		})
	}

	report, err := h.importer.Import(c.UserContext(), export)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"total":    report.Total,
		"imported": report.Imported,
		"skipped":  report.Skipped,
		"unparsed": report.Unparsed,
		"failed":   report.Failed,
	})
}
