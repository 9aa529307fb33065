package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/trendscout/trendscout/internal/domain"
)

// TaskFilter narrows List results. Nil fields are ignored. Owner scoping is
// the caller's responsibility: the service passes the requesting user's ID
// here unless the requester is privileged.
type TaskFilter struct {
	Owner     *uuid.UUID
	Status    *domain.TaskStatus
	AgentType *string
	Offset    int
	Limit     int
}

// TaskStore defines the interface for durable task persistence.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update persists the task's mutable fields (status, result, error,
	// updated_at, completed_at, execution_time).
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// UpdateStatus updates only the status of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error

	// List retrieves tasks matching the filter ordered by created_at
	// descending, plus the total count matching the filter ignoring
	// offset/limit. Returns an empty slice if nothing matches.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, int, error)

	// Delete removes a task from the store.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
