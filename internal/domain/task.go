package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Common validation errors for Task.
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwner    = errors.New("task owner cannot be empty")
	ErrEmptyAgentType    = errors.New("task agent type cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrTaskAlreadyDone   = errors.New("task is already in a terminal state")
)

// Task represents a unit of requested agent work with a durable lifecycle
// record. The status moves strictly forward: pending -> running ->
// {completed|failed}. CompletedAt, Result and Error are written exactly once,
// on the first transition into a terminal state.
type Task struct {
	ID            uuid.UUID      `json:"task_id"`
	AgentType     string         `json:"agent_type"`
	Status        TaskStatus     `json:"status"`
	InputData     map[string]any `json:"input_data"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	Owner         uuid.UUID      `json:"owner"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	ExecutionTime *int           `json:"execution_time,omitempty"`
}

// NewTask creates a new pending Task owned by the given user.
// Returns an error if validation fails.
func NewTask(owner uuid.UUID, agentType string, input map[string]any) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		AgentType: agentType,
		Status:    TaskStatusPending,
		InputData: input,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Owner == uuid.Nil {
		return ErrEmptyTaskOwner
	}

	if t.AgentType == "" {
		return ErrEmptyAgentType
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the status is completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from the task's current status to
// the given status is a legal forward transition.
func (t *Task) CanTransitionTo(status TaskStatus) bool {
	switch t.Status {
	case TaskStatusPending:
		return status == TaskStatusRunning
	case TaskStatusRunning:
		return status == TaskStatusCompleted || status == TaskStatusFailed
	default:
		// completed and failed are terminal
		return false
	}
}

// TransitionTo moves the task to the given status, enforcing the monotonic
// state machine. On the first transition into a terminal state it stamps
// CompletedAt and derives ExecutionTime from CreatedAt.
func (t *Task) TransitionTo(status TaskStatus) error {
	if !IsValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	if !t.CanTransitionTo(status) {
		if t.Status.IsTerminal() {
			return fmt.Errorf("%w: %s -> %s", ErrTaskAlreadyDone, t.Status, status)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now

	if status.IsTerminal() && t.CompletedAt == nil {
		t.CompletedAt = &now
		secs := int(now.Sub(t.CreatedAt).Seconds())
		t.ExecutionTime = &secs
	}

	return nil
}

// Complete transitions the task to completed and records the result.
func (t *Task) Complete(result map[string]any) error {
	if err := t.TransitionTo(TaskStatusCompleted); err != nil {
		return err
	}
	t.Result = result
	return nil
}

// Fail transitions the task to failed, recording the error message in both
// Error and Result so clients polling either field see the failure.
func (t *Task) Fail(errMsg string, result map[string]any) error {
	if err := t.TransitionTo(TaskStatusFailed); err != nil {
		return err
	}
	t.Error = errMsg
	if result == nil {
		result = map[string]any{"error": errMsg}
	}
	t.Result = result
	return nil
}
