package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/farmadisplay/internal/lookup"
)

// ScrapingHandler proxies on-duty pharmacy searches to the lookup site so the
// dashboard can validate a configuration before saving it.
type ScrapingHandler struct {
	client *lookup.Client
}

// NewScrapingHandler constructs ScrapingHandler.
func NewScrapingHandler(client *lookup.Client) *ScrapingHandler {
	return &ScrapingHandler{client: client}
}

type searchRequest struct {
	Cap        string `json:"cap"`
	City       string `json:"city"`
	SearchDate string `json:"search_date"` // "2006-01-02", optional
	SearchTime string `json:"search_time"` // "15:04", optional
}

// Search runs one on-duty pharmacy search.
func (h *ScrapingHandler) Search(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Cap = strings.TrimSpace(req.Cap)
	req.City = strings.TrimSpace(req.City)
	if req.Cap == "" && req.City == "" {
		return fiber.NewError(fiber.StatusBadRequest, "cap or city is required")
	}

	when, err := parseSearchMoment(req.SearchDate, req.SearchTime)
	if err != nil {
		return err
	}

	params := lookup.SearchParams{Cap: req.Cap, City: req.City, When: when}
	results, err := h.client.Search(c.Context(), params)
	if err != nil {
		if errors.Is(err, lookup.ErrNoSearchTerm) {
			return fiber.NewError(fiber.StatusBadRequest, "cap or city is required")
		}
		return fiber.NewError(fiber.StatusBadGateway, "lookup service unavailable")
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"pharmacies": results,
		"total":      len(results),
		"search_params": fiber.Map{
			"cap":         req.Cap,
			"city":        req.City,
			"search_date": req.SearchDate,
			"search_time": req.SearchTime,
		},
	}})
}

// parseSearchMoment combines the optional date and time fields into a single
// instant; a zero value means "now".
func parseSearchMoment(date, clock string) (time.Time, error) {
	if date == "" && clock == "" {
		return time.Time{}, nil
	}

	now := time.Now()
	day := now
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, now.Location())
		if err != nil {
			return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid search_date")
		}
		day = parsed
	}

	hour, minute := now.Hour(), now.Minute()
	if clock != "" {
		parsed, err := time.Parse("15:04", clock)
		if err != nil {
			return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid search_time")
		}
		hour, minute = parsed.Hour(), parsed.Minute()
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), nil
}
