package port

import (
	"context"
	"time"

	"github.com/kangalos/auth-service/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindConflicts returns the names of identity fields (email, username,
	// phone) already claimed by another account. An empty phone is skipped.
	FindConflicts(ctx context.Context, email, username, phone string) ([]string, error)
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
}
