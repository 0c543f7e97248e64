package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// ListingFinder reads active listings
type ListingFinder interface {
	QueryActiveListings(ctx context.Context, listingType models.ListingType, route string, from, to time.Time) ([]*models.RideListing, error)
}

// ListingHandler serves the read-only listings API
type ListingHandler struct {
	listings ListingFinder
	loc      *time.Location
}

// NewListingHandler creates a new listing handler
func NewListingHandler(listings ListingFinder, loc *time.Location) *ListingHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ListingHandler{listings: listings, loc: loc}
}

// List returns active listings of one type for a route and day.
// GET /api/listings?type=driver&route=Kyiv-Malyn&date=2026-02-14
func (h *ListingHandler) List(c *fiber.Ctx) error {
	listingType := models.ListingType(c.Query("type"))
	if !listingType.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "type must be driver or passenger")
	}
	route := c.Query("route")
	if route == "" {
		return fiber.NewError(fiber.StatusBadRequest, "route is required")
	}

	day := services.StartOfDay(time.Now(), h.loc)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	listings, err := h.listings.QueryActiveListings(c.UserContext(), listingType, route, day, day.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"route":      route,
		"route_name": services.RouteName(route),
		"date":       services.DateKey(day),
		"count":      len(listings),
		"listings":   listings,
	})
}
