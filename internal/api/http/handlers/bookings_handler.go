package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/service"
)

// BookingsHandler carries the booking endpoints beyond generic CRUD.
type BookingsHandler struct {
	bookings *service.BookingService
}

// NewBookingsHandler constructs handler.
func NewBookingsHandler(bookings *service.BookingService) *BookingsHandler {
	return &BookingsHandler{bookings: bookings}
}

// CheckoutSession handles GET /api/v1/bookings/checkout-session/:tourId.
func (h *BookingsHandler) CheckoutSession(c *fiber.Ctx) error {
	principal := mustPrincipal(c)

	session, err := h.bookings.CheckoutSession(c.Context(), c.Params("tourId"), principal.User)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"session": session},
	})
}

// MyBookings handles GET /api/v1/bookings/my-bookings.
func (h *BookingsHandler) MyBookings(c *fiber.Ctx) error {
	principal := mustPrincipal(c)

	bookings, err := h.bookings.MyBookings(c.Context(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"results": len(bookings),
		"data":    fiber.Map{"bookings": bookings},
	})
}
