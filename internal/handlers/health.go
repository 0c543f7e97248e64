package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable
type Pinger func(ctx context.Context) error

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	Storage string
	checks  map[string]Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storage string) *HealthHandler {
	return &HealthHandler{
		Version: version,
		Storage: storage,
		checks:  make(map[string]Pinger),
	}
}

// AddCheck registers a dependency checked on every health request
func (h *HealthHandler) AddCheck(name string, ping Pinger) {
	h.checks[name] = ping
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	services := fiber.Map{}
	for name, ping := range h.checks {
		ok := ping(c.UserContext()) == nil
		services[name] = ok
		if !ok {
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":   status,
		"service":  "Poputky Backend",
		"version":  h.Version,
		"storage":  h.Storage,
		"services": services,
	})
}
