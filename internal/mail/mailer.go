// Package mail defines the outgoing-mail boundary. Delivery failures are
// reported to callers; they never corrupt already-committed state.
package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/tour-booking-service/internal/config"
)

// Message is a templated mail ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender attempts delivery of one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes outgoing mail to the log instead of a transport. Used in
// development and as the default when no provider is configured.
type LogSender struct {
	from   string
	logger *zap.Logger
}

// NewLogSender constructs the logging sender.
func NewLogSender(cfg config.MailConfig, logger *zap.Logger) *LogSender {
	return &LogSender{from: cfg.From, logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("outgoing mail",
		zap.String("from", s.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
