// Package worker contains the dispatch loop that drains the work queues and
// runs agent handlers. Delivery is at-least-once: a task popped from a queue
// either reaches a terminal state in the durable store or the failure to get
// it there is logged; there is no redelivery of popped items.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/trendscout/trendscout/internal/agent"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/platform/logger"
	"github.com/trendscout/trendscout/internal/queue"
	"github.com/trendscout/trendscout/internal/store"
)

// HandlerRegistry is the subset of the agent registry the dispatcher needs.
type HandlerRegistry interface {
	Types() []string
	Get(agentType string) (agent.Handler, error)
}

// Dispatcher polls one queue per registered agent type in round-robin order
// and processes one item at a time. Single-threaded on purpose: the handlers
// funnel into one text-generation backend, so concurrency would only move
// the queue into the backend.
type Dispatcher struct {
	workQueue    queue.WorkQueue
	taskStore    store.TaskStore
	registry     HandlerRegistry
	pollInterval time.Duration

	// missingRowDelay is how long to wait before the single re-read when a
	// dequeued item has no durable row yet (enqueue raced the row's commit).
	missingRowDelay time.Duration
}

// NewDispatcher creates a Dispatcher with the given dependencies.
func NewDispatcher(
	workQueue queue.WorkQueue,
	taskStore store.TaskStore,
	registry HandlerRegistry,
	pollInterval time.Duration,
) *Dispatcher {
	return &Dispatcher{
		workQueue:       workQueue,
		taskStore:       taskStore,
		registry:        registry,
		pollInterval:    pollInterval,
		missingRowDelay: time.Second,
	}
}

// Run polls until the context is canceled. Each pass visits every registered
// agent type's queue once; a pass that yields no work sleeps for the poll
// interval before the next one.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("dispatch loop starting",
		"agent_types", d.registry.Types(),
		"poll_interval", d.pollInterval)

	for {
		processed := d.runPass(ctx)

		if !processed {
			select {
			case <-ctx.Done():
				log.Info("dispatch loop stopping", "reason", ctx.Err())
				return ctx.Err()
			case <-time.After(d.pollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("dispatch loop stopping", "reason", ctx.Err())
			return ctx.Err()
		default:
		}
	}
}

// runPass polls every agent type's queue once and reports whether any pass
// produced work.
func (d *Dispatcher) runPass(ctx context.Context) bool {
	log := logger.FromContext(ctx)
	processed := false

	for _, agentType := range d.registry.Types() {
		if ctx.Err() != nil {
			return processed
		}

		item, err := d.workQueue.Dequeue(ctx, agentType)
		if err != nil {
			// Queue backend trouble: log and fall through to the pass
			// sleep rather than spinning against a dead backend.
			log.Error("failed to poll queue",
				"error", err,
				"agent_type", agentType)
			return false
		}
		if item == nil {
			continue
		}

		processed = true
		d.process(ctx, item)
	}

	return processed
}

// process drives one dequeued item to a terminal state.
func (d *Dispatcher) process(ctx context.Context, item *queue.WorkItem) {
	log := logger.FromContext(ctx).With(
		"task_id", item.TaskID,
		"agent_type", item.AgentType)

	task, err := d.loadTask(ctx, item)
	if err != nil {
		// The item is already popped; without a durable row there is
		// nowhere to record an outcome. Abandon it.
		log.Error("abandoning work item without durable record", "error", err)
		return
	}

	if task.Status.IsTerminal() {
		log.Warn("skipping already-finished task", "status", task.Status)
		return
	}

	// Mark running durably before dispatching, so a crash mid-handler
	// leaves an honest record. The cache mirror is best-effort.
	if task.Status == domain.TaskStatusPending {
		if err := task.TransitionTo(domain.TaskStatusRunning); err != nil {
			log.Error("failed to mark task running", "error", err)
			return
		}
		if err := d.taskStore.Update(ctx, task); err != nil {
			log.Error("failed to persist running status, abandoning item", "error", err)
			return
		}
	}
	if err := d.workQueue.UpdateStatus(ctx, task.ID, domain.TaskStatusRunning, nil); err != nil {
		log.Warn("failed to mirror running status to cache", "error", err)
	}

	log.Info("task started")
	started := time.Now()

	result, handleErr := d.invoke(ctx, item)

	switch {
	case handleErr != nil:
		err = task.Fail(handleErr.Error(), nil)
	case hasErrorKey(result):
		msg, _ := result["error"].(string)
		if msg == "" {
			msg = "agent reported an error"
		}
		err = task.Fail(msg, result)
	default:
		err = task.Complete(result)
	}
	if err != nil {
		log.Error("failed to finalize task state", "error", err)
		return
	}

	d.persistOutcome(ctx, task)

	log.Info("task finished",
		"status", task.Status,
		"duration", time.Since(started))
}

// loadTask fetches the durable row for a dequeued item, re-reading once after
// a short delay when it is missing. Enqueue commits the row before the queue
// push, so a missing row should only ever be replication or clock skew.
func (d *Dispatcher) loadTask(ctx context.Context, item *queue.WorkItem) (*domain.Task, error) {
	task, err := d.taskStore.GetByID(ctx, item.TaskID)
	if err == nil {
		return task, nil
	}
	if !store.IsNotFoundError(err) {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.missingRowDelay):
	}

	return d.taskStore.GetByID(ctx, item.TaskID)
}

// invoke runs the handler for the item's agent type, converting panics into
// ordinary failures so one bad payload cannot take down the loop.
func (d *Dispatcher) invoke(ctx context.Context, item *queue.WorkItem) (result map[string]any, err error) {
	handler, err := d.registry.Get(item.AgentType)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, item.InputData)
}

// persistOutcome writes the terminal task state to the durable store,
// retrying once, and mirrors it to the status cache best-effort. The cache
// mirror means a failed durable write still surfaces the outcome through the
// query path's reconciliation.
func (d *Dispatcher) persistOutcome(ctx context.Context, task *domain.Task) {
	log := logger.FromContext(ctx)

	err := d.taskStore.Update(ctx, task)
	if err != nil {
		log.Warn("failed to persist task outcome, retrying",
			"error", err,
			"task_id", task.ID)
		err = d.taskStore.Update(ctx, task)
	}
	if err != nil {
		log.Error("failed to persist task outcome",
			"error", err,
			"task_id", task.ID,
			"status", task.Status)
	}

	if err := d.workQueue.UpdateStatus(ctx, task.ID, task.Status, task.Result); err != nil {
		log.Warn("failed to mirror task outcome to cache",
			"error", err,
			"task_id", task.ID)
	}
}

func hasErrorKey(result map[string]any) bool {
	_, ok := result["error"]
	return ok
}
