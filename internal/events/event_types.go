package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserSignedUp   EventType = "user_signed_up"
	EventBookingCreated EventType = "booking_created"
	EventReviewWritten  EventType = "review_written"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserSignedUpPayload payload.
type UserSignedUpPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// BookingCreatedPayload payload.
type BookingCreatedPayload struct {
	BookingID string  `json:"booking_id"`
	TourID    string  `json:"tour_id"`
	Price     float64 `json:"price"`
}

// ReviewWrittenPayload payload.
type ReviewWrittenPayload struct {
	ReviewID string  `json:"review_id"`
	TourID   string  `json:"tour_id"`
	Rating   float64 `json:"rating"`
}
