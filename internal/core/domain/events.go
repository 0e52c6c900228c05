package domain

import "time"

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	Phone        *string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// EmailVerifiedEvent represents the payload for auth.user.email_verified messages.
type EmailVerifiedEvent struct {
	EventID    string
	UserID     string
	Email      string
	VerifiedAt time.Time
	Metadata   map[string]any
}

// PasswordResetRequestedEvent represents the payload for
// auth.user.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// PasswordChangedEvent represents the payload for auth.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	Reason    string
	Metadata  map[string]any
}
