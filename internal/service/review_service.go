package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/events"
	"github.com/spec-kit/tour-booking-service/internal/repository"
)

// ReviewService maintains the rating aggregate a tour carries and emits
// review events. Wired into the handler factory as post-operation hooks so
// the factory itself stays resource-agnostic.
type ReviewService struct {
	reviews    repository.ReviewRepository
	dispatcher events.Dispatcher
}

// NewReviewService builds the service.
func NewReviewService(reviews repository.ReviewRepository, dispatcher events.Dispatcher) *ReviewService {
	return &ReviewService{reviews: reviews, dispatcher: dispatcher}
}

// AfterWrite recomputes the tour aggregate after a review create or update.
func (s *ReviewService) AfterWrite(ctx context.Context, review *domain.Review) error {
	if err := s.reviews.ApplyRatingStats(ctx, review.TourID); err != nil {
		return err
	}
	return s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventReviewWritten,
		UserID:    review.UserID,
		Timestamp: time.Now(),
		Payload: events.ReviewWrittenPayload{
			ReviewID: review.ID,
			TourID:   review.TourID,
			Rating:   review.Rating,
		},
	})
}

// AfterDelete recomputes the tour aggregate after a review is removed.
func (s *ReviewService) AfterDelete(ctx context.Context, review *domain.Review) error {
	return s.reviews.ApplyRatingStats(ctx, review.TourID)
}
