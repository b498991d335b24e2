package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/events"
	"github.com/spec-kit/tour-booking-service/internal/payment"
	"github.com/spec-kit/tour-booking-service/internal/repository"
)

// BookingService bridges tours, the payment provider and booking records.
type BookingService struct {
	bookings   repository.BookingRepository
	tours      repository.TourRepository
	sessions   payment.SessionClient
	dispatcher events.Dispatcher
}

// NewBookingService builds the service.
func NewBookingService(bookings repository.BookingRepository, tours repository.TourRepository, sessions payment.SessionClient, dispatcher events.Dispatcher) *BookingService {
	return &BookingService{
		bookings:   bookings,
		tours:      tours,
		sessions:   sessions,
		dispatcher: dispatcher,
	}
}

// CheckoutSession asks the payment provider for a session covering one
// tour purchase by the principal.
func (s *BookingService) CheckoutSession(ctx context.Context, tourID string, payer *domain.User) (*payment.Session, error) {
	tour, err := s.tours.Store().FindByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	return s.sessions.CreateSession(ctx, tour, payer)
}

// MyBookings lists the principal's bookings.
func (s *BookingService) MyBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// NotifyCreated publishes the booking-created event; registered by the
// handler factory as a post-create hook.
func (s *BookingService) NotifyCreated(ctx context.Context, booking *domain.Booking) error {
	return s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventBookingCreated,
		UserID:    booking.UserID,
		Timestamp: time.Now(),
		Payload: events.BookingCreatedPayload{
			BookingID: booking.ID,
			TourID:    booking.TourID,
			Price:     booking.Price,
		},
	})
}
