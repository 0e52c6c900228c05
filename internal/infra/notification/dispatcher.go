package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/core/port"
	"github.com/kangalos/auth-service/internal/infra/logger"
	"github.com/kangalos/auth-service/internal/infra/security"
)

// LoggingDispatcher records outgoing mail for observability without
// delivering it. Production deployments swap in a real mail transport behind
// port.NotificationSender; until then this keeps the flows exercisable.
type LoggingDispatcher struct {
	logger *zap.Logger
}

// NewLoggingDispatcher constructs a dispatcher backed by structured logging.
func NewLoggingDispatcher(log *zap.Logger) *LoggingDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingDispatcher{logger: log}
}

func (d *LoggingDispatcher) dispatch(template, to, firstName, link string) {
	// The link embeds the encrypted token, so only its digest is logged.
	d.logger.Info("dispatch email",
		zap.String("template", template),
		zap.String("to", logger.MaskEmail(to)),
		zap.String("first_name", firstName),
		zap.String("link_digest", security.TokenDigest(link)),
	)
}

// SendEmailVerification logs an email-verification dispatch.
func (d *LoggingDispatcher) SendEmailVerification(_ context.Context, to, firstName, link string) error {
	d.dispatch("email_verification", to, firstName, link)
	return nil
}

// SendPasswordReset logs a password-reset dispatch.
func (d *LoggingDispatcher) SendPasswordReset(_ context.Context, to, firstName, link string) error {
	d.dispatch("password_reset", to, firstName, link)
	return nil
}

// SendCreatePassword logs a create-password invitation dispatch.
func (d *LoggingDispatcher) SendCreatePassword(_ context.Context, to, firstName, link string) error {
	d.dispatch("create_password", to, firstName, link)
	return nil
}

var _ port.NotificationSender = (*LoggingDispatcher)(nil)
