package domain

import (
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for User.
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrInvalidUserEmail = errors.New("invalid user email")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// minPasswordLength matches the submission-side validation; the store only
// ever sees the bcrypt hash.
const minPasswordLength = 8

// User represents an account that can submit and view tasks. Superusers can
// see every task; everyone else only their own.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new active, non-privileged User with the given email.
// The password is validated here but hashed by the store.
func NewUser(email, password, fullName string) (*User, error) {
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidUserEmail
	}

	return nil
}

// CanAccess reports whether the user may view or delete the given task.
func (u *User) CanAccess(task *Task) bool {
	return u.IsSuperuser || task.Owner == u.ID
}
