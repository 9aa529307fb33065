package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/platform/logger"
	"github.com/trendscout/trendscout/internal/queue"
	"github.com/trendscout/trendscout/internal/store"
)

// AgentCatalog is the subset of the agent registry the submission path needs:
// the closed set of agent types that can be queued.
type AgentCatalog interface {
	Supports(agentType string) bool
}

// TaskService coordinates the durable task store and the work queue. It owns
// the submission path (validate, persist, enqueue) and the query path
// (visibility checks plus reconciliation of the cached queue status into the
// durable record).
type TaskService struct {
	taskStore store.TaskStore
	workQueue queue.WorkQueue
	agents    AgentCatalog
}

// NewTaskService creates a new TaskService with the given dependencies.
func NewTaskService(taskStore store.TaskStore, workQueue queue.WorkQueue, agents AgentCatalog) *TaskService {
	return &TaskService{
		taskStore: taskStore,
		workQueue: workQueue,
		agents:    agents,
	}
}

// Submit validates the agent type, creates a pending durable record and
// enqueues the work item. The durable row is written before the queue push so
// a task is never processed without a lifecycle record; if the push then
// fails, the row stays pending and the error is returned to the caller.
func (s *TaskService) Submit(
	ctx context.Context,
	user *domain.User,
	agentType string,
	input map[string]any,
) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	if !s.agents.Supports(agentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAgentType, agentType)
	}

	task, err := domain.NewTask(user.ID, agentType, input)
	if err != nil {
		return nil, err
	}

	if err := s.taskStore.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task record: %w", err)
	}

	_, err = s.workQueue.Enqueue(ctx, agentType, queue.WorkItem{
		TaskID:    task.ID,
		AgentType: agentType,
		InputData: input,
		Owner:     user.ID,
	})
	if err != nil {
		// The pending row is left behind; it will never run but stays
		// visible to the owner as a record of the failed submission.
		log.Error("failed to enqueue task after creating record",
			"error", err,
			"task_id", task.ID,
			"agent_type", agentType)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Debug("task submitted",
		"task_id", task.ID,
		"agent_type", agentType,
		"owner", user.ID)

	return task, nil
}

// Get returns the task with the given ID if the user may see it, folding any
// fresher cached queue status into the durable record first.
func (s *TaskService) Get(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !user.CanAccess(task) {
		return nil, ErrTaskNotOwned
	}

	s.reconcile(ctx, task)
	return task, nil
}

// List returns the tasks visible to the user that match the filter, plus the
// total match count. Non-superusers only ever see their own tasks regardless
// of the filter's owner field. Returned tasks are reconciled against the
// status cache; the filter itself applies to durable state.
func (s *TaskService) List(
	ctx context.Context,
	user *domain.User,
	filter store.TaskFilter,
) ([]*domain.Task, int, error) {
	if !user.IsSuperuser {
		owner := user.ID
		filter.Owner = &owner
	}

	tasks, total, err := s.taskStore.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	for _, task := range tasks {
		s.reconcile(ctx, task)
	}

	return tasks, total, nil
}

// Delete removes the durable record of the task with the given ID if the user
// may see it. The cached status blob is left to expire on its own.
func (s *TaskService) Delete(ctx context.Context, user *domain.User, id uuid.UUID) error {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !user.CanAccess(task) {
		return ErrTaskNotOwned
	}

	return s.taskStore.Delete(ctx, id)
}

// reconcile folds the cached queue status into the durable record when the
// cache is ahead. The worker writes the durable store directly, so this is a
// defensive fallback for windows where the cache advanced first; a terminal
// durable record is never rewritten. Reconciliation failures degrade to
// serving the durable state as-is.
func (s *TaskService) reconcile(ctx context.Context, task *domain.Task) {
	log := logger.FromContext(ctx)

	if task.Status.IsTerminal() {
		return
	}

	blob, err := s.workQueue.GetStatus(ctx, task.ID)
	if err != nil {
		log.Warn("failed to read status cache, serving durable state",
			"error", err,
			"task_id", task.ID)
		return
	}
	if blob.Status == queue.StatusNotFound || blob.Status == task.Status {
		return
	}

	if err := s.fold(task, blob); err != nil {
		log.Warn("cached status does not advance the task, ignoring",
			"error", err,
			"task_id", task.ID,
			"durable_status", task.Status,
			"cached_status", blob.Status)
		return
	}

	if err := s.taskStore.Update(ctx, task); err != nil {
		// Serve the reconciled view anyway; the next read retries the write.
		log.Warn("failed to persist reconciled status",
			"error", err,
			"task_id", task.ID,
			"status", task.Status)
	}
}

// fold advances the task along the state machine to the cached status,
// stepping through running when the cache skipped ahead to a terminal state.
func (s *TaskService) fold(task *domain.Task, blob queue.StatusBlob) error {
	if blob.Status.IsTerminal() && task.Status == domain.TaskStatusPending {
		if err := task.TransitionTo(domain.TaskStatusRunning); err != nil {
			return err
		}
	}

	switch blob.Status {
	case domain.TaskStatusCompleted:
		return task.Complete(blob.Result)
	case domain.TaskStatusFailed:
		errMsg := "task failed"
		if msg, ok := blob.Result["error"].(string); ok && msg != "" {
			errMsg = msg
		}
		return task.Fail(errMsg, blob.Result)
	default:
		return task.TransitionTo(blob.Status)
	}
}

// IsNotFound reports whether the error marks a missing task, folding the
// store sentinel so handlers need only one check.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrTaskNotFound) || errors.Is(err, store.ErrNotFound)
}
