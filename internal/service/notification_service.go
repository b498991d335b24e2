package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/tour-booking-service/internal/events"
	"github.com/spec-kit/tour-booking-service/internal/mail"
	"github.com/spec-kit/tour-booking-service/internal/repository"
)

// NotificationService turns domain events into outgoing mail. Delivery
// failures are logged and never propagate back into the flow that emitted
// the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	mailer     mail.Sender
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, mailer mail.Sender, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		mailer:     mailer,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserSignedUp, n.handleUserSignedUp)
	n.dispatcher.Subscribe(events.EventBookingCreated, n.handleBookingCreated)
	n.dispatcher.Subscribe(events.EventReviewWritten, n.handleReviewWritten)
}

// handleUserSignedUp only records the event; the welcome mail is sent inline
// by the signup flow so its failure handling stays there.
func (n *NotificationService) handleUserSignedUp(ctx context.Context, event events.Event) error {
	n.logger.Info("UserSignedUp", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleBookingCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("BookingCreated", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))

	user, err := n.users.GetByID(ctx, event.UserID)
	if err != nil {
		n.logger.Warn("booking notification skipped", zap.Error(err))
		return nil
	}
	if err := n.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Your booking is confirmed",
		Body:    fmt.Sprintf("Hi %s, your tour booking is confirmed. See you soon!", user.Name),
	}); err != nil {
		n.logger.Warn("booking notification failed", zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleReviewWritten(ctx context.Context, event events.Event) error {
	n.logger.Info("ReviewWritten", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}
