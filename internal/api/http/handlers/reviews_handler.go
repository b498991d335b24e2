package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/auth"
)

// SetTourUserIDs is the review pre-hook: it defaults the review's tour from
// the nested route and its author from the principal, keeping both rules
// out of the generic factory. Values already present in the body win.
func SetTourUserIDs(c *fiber.Ctx) error {
	if tourID := c.Params("tourId"); tourID != "" {
		SetPayloadDefault(c, "tour_id", tourID)
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		SetPayloadDefault(c, "user_id", principal.User.ID)
	}
	return c.Next()
}
