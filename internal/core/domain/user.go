package domain

import "time"

// User mirrors the persisted representation in the auth.users table.
type User struct {
	ID                 string
	Email              string
	Username           string
	Phone              *string
	FirstName          string
	LastName           string
	PasswordHash       string
	IsVerified         bool
	CreatedAt          time.Time
	VerifiedAt         *time.Time
	LastPasswordChange time.Time
}

// FullName returns the display name used in notification templates.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
