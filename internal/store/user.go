package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/trendscout/trendscout/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store, hashing the provided plaintext
	// password before it is written. Returns ErrEmailExists if a user with
	// the same email already exists.
	Create(ctx context.Context, user *domain.User, password string) error

	// GetByID retrieves a user by its unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
