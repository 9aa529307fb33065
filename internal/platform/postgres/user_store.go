package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/platform/logger"
	"github.com/trendscout/trendscout/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// PostgresUserStore implements the store.UserStore interface using PostgreSQL.
// Password hashing happens here so plaintext never crosses the store boundary.
type PostgresUserStore struct {
	db         store.DBTX
	bcryptCost int
}

// Ensure PostgresUserStore implements store.UserStore.
var _ store.UserStore = (*PostgresUserStore)(nil)

// NewPostgresUserStore creates a new PostgresUserStore with the given bcrypt
// cost. Pass bcrypt.DefaultCost unless tests need a cheaper cost.
func NewPostgresUserStore(db store.DBTX, bcryptCost int) *PostgresUserStore {
	return &PostgresUserStore{db: db, bcryptCost: bcryptCost}
}

// Create saves a new user, hashing the provided plaintext password.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User, password string) error {
	log := logger.FromContext(ctx)

	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = string(hashed)

	query := `
		INSERT INTO users (id, email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.HashedPassword,
		user.FullName,
		user.IsActive,
		user.IsSuperuser,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrEmailExists
		}
		log.Error("failed to save user", "user_id", user.ID, "error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a user by its unique ID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *PostgresUserStore) getBy(ctx context.Context, column string, value any) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at
		FROM users WHERE %s = $1
	`, column)

	var user domain.User
	var fullName sql.NullString
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&fullName,
		&user.IsActive,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrUserNotFound
		}
		return nil, MapError(err)
	}
	user.FullName = fullName.String

	return &user, nil
}
