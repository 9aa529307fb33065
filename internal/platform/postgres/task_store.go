package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/platform/logger"
	"github.com/trendscout/trendscout/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// Ensure PostgresTaskStore implements store.TaskStore.
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

// taskColumns is the select list shared by all read queries, matching scanTask.
const taskColumns = `id, agent_type, status, input_data, result, error, owner_id,
	created_at, updated_at, completed_at, execution_time`

// Create saves a new task to the database.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	inputJSON, err := json.Marshal(task.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input data: %w", err)
	}

	query := `
		INSERT INTO agent_tasks (id, agent_type, status, input_data, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.AgentType,
		task.Status,
		inputJSON,
		task.Owner,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"agent_type", task.AgentType,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a task by its unique ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM agent_tasks WHERE id = $1`, taskColumns)

	row := s.db.QueryRowContext(ctx, query, id)
	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// Update persists the task's mutable fields.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	resultJSON, err := marshalNullable(task.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		UPDATE agent_tasks
		SET status = $1, result = $2, error = $3, updated_at = $4,
		    completed_at = $5, execution_time = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		task.Status,
		resultJSON,
		nullString(task.Error),
		time.Now().UTC(),
		task.CompletedAt,
		task.ExecutionTime,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"status", task.Status,
			"error", err)
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// UpdateStatus updates only the status of an existing task.
func (s *PostgresTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE agent_tasks
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", id,
			"status", status,
			"error", err)
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// List retrieves tasks matching the filter ordered by created_at descending,
// plus the total count matching the filter ignoring offset/limit.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, int, error) {
	log := logger.FromContext(ctx)

	where := " WHERE 1=1"
	var args []any

	addArg := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}

	if filter.Owner != nil {
		addArg("owner_id", *filter.Owner)
	}
	if filter.Status != nil {
		addArg("status", *filter.Status)
	}
	if filter.AgentType != nil {
		addArg("agent_type", *filter.AgentType)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM agent_tasks" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", "error", err)
		return nil, 0, MapError(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM agent_tasks%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		taskColumns, where, len(args)-1, len(args),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", "error", err)
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", "error", err)
			return nil, 0, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", "error", err)
		return nil, 0, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, total, nil
}

// Delete removes a task from the store.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, `DELETE FROM agent_tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task", "task_id", id, "error", err)
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one agent_tasks row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task          domain.Task
		inputJSON     []byte
		resultJSON    []byte
		errorMsg      sql.NullString
		completedAt   sql.NullTime
		executionTime sql.NullInt64
	)

	err := row.Scan(
		&task.ID,
		&task.AgentType,
		&task.Status,
		&inputJSON,
		&resultJSON,
		&errorMsg,
		&task.Owner,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completedAt,
		&executionTime,
	)
	if err != nil {
		return nil, err
	}

	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &task.InputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &task.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	task.Error = errorMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if executionTime.Valid {
		secs := int(executionTime.Int64)
		task.ExecutionTime = &secs
	}

	return &task, nil
}

// marshalNullable marshals a map to JSON, returning nil (SQL NULL) for a nil map.
func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
