package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured, typically in local development.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(eventUserRegistered, event.UserID, event.RegisteredAt)
	return nil
}

// PublishEmailVerified logs user.email_verified events.
func (p *StubPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	p.logEvent(eventEmailVerified, event.UserID, event.VerifiedAt)
	return nil
}

// PublishPasswordResetRequested logs user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(eventPasswordResetRequested, event.UserID, event.RequestedAt)
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(eventPasswordChanged, event.UserID, event.ChangedAt)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
