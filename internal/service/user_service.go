package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/platform/logger"
	"github.com/trendscout/trendscout/internal/service/auth"
	"github.com/trendscout/trendscout/internal/store"
)

// UserService owns account registration and credential checks.
type UserService struct {
	userStore store.UserStore
	verifier  auth.PasswordVerifier
}

// NewUserService creates a new UserService with the given dependencies.
func NewUserService(userStore store.UserStore, verifier auth.PasswordVerifier) *UserService {
	return &UserService{
		userStore: userStore,
		verifier:  verifier,
	}
}

// Register creates a new active, non-privileged account.
// Returns store.ErrEmailExists when the email is taken.
func (s *UserService) Register(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	user, err := domain.NewUser(email, password, fullName)
	if err != nil {
		return nil, err
	}

	if err := s.userStore.Create(ctx, user, password); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks an email/password pair and returns the matching user.
// Unknown email, wrong password and deactivated account all collapse to
// auth.ErrInvalidCredentials so callers cannot probe which part failed.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, auth.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID returns the user with the given ID.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userStore.GetByID(ctx, id)
}
