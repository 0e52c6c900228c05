package port

import "context"

// NotificationSender delivers transactional email carrying an action link.
// The orchestrator awaits each send; delivery transport is an external
// collaborator behind this interface.
type NotificationSender interface {
	SendEmailVerification(ctx context.Context, to, firstName, link string) error
	SendPasswordReset(ctx context.Context, to, firstName, link string) error
	SendCreatePassword(ctx context.Context, to, firstName, link string) error
}
