package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/api/dto"
	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/service"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// ToursHandler carries the tour endpoints beyond generic CRUD.
type ToursHandler struct {
	tours *service.TourService
}

// NewToursHandler constructs handler.
func NewToursHandler(tours *service.TourService) *ToursHandler {
	return &ToursHandler{tours: tours}
}

// AliasTopCheap pre-fills the query parameters for the top-5-cheap listing
// before the generic list handler runs.
func (h *ToursHandler) AliasTopCheap(c *fiber.Ctx) error {
	c.Request().URI().SetQueryString(
		"limit=5&sort=-ratings_average,price&fields=name,price,ratings_average,summary,difficulty")
	return c.Next()
}

// StampSlug derives the slug from the payload name ahead of create and
// update, keeping the rule out of the generic factory.
func (h *ToursHandler) StampSlug(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return err
	}
	if name, ok := payload["name"].(string); ok && name != "" {
		SetPayloadDefault(c, "slug", domain.Slugify(name))
	}
	return c.Next()
}

// Stats handles GET /api/v1/tours/stats.
func (h *ToursHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tours.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"stats": stats},
	})
}

// MonthlyPlan handles GET /api/v1/tours/monthly-plan/:year.
func (h *ToursHandler) MonthlyPlan(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 1970 || year > time.Now().Year()+50 {
		return apperrors.NewValidationError("invalid year", nil)
	}

	plan, err := h.tours.MonthlyPlan(c.Context(), year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"plan": plan},
	})
}

// ReplaceGuides handles PUT /api/v1/tours/:id/guides.
func (h *ToursHandler) ReplaceGuides(c *fiber.Ctx) error {
	var req dto.ReplaceGuidesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.tours.ReplaceGuides(c.Context(), c.Params("id"), req.Guides); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success"})
}
