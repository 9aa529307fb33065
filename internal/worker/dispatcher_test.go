package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendscout/trendscout/internal/agent"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/queue"
	"github.com/trendscout/trendscout/internal/store"
)

// memTaskStore is a minimal in-memory TaskStore for dispatcher tests.
type memTaskStore struct {
	tasks     map[uuid.UUID]*domain.Task
	updateErr error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *memTaskStore) Create(ctx context.Context, task *domain.Task) error {
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (m *memTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	task, ok := m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.Status = status
	return nil
}

func (m *memTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, int, error) {
	return nil, 0, nil
}

func (m *memTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.tasks, id)
	return nil
}

// stubHandler records the payloads it sees and returns canned outcomes.
type stubHandler struct {
	name    string
	handle  func(ctx context.Context, input map[string]any) (map[string]any, error)
	handled []map[string]any
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) Handle(ctx context.Context, input map[string]any) (map[string]any, error) {
	h.handled = append(h.handled, input)
	if h.handle != nil {
		return h.handle(ctx, input)
	}
	return map[string]any{"ok": true}, nil
}

type fixture struct {
	dispatcher *Dispatcher
	taskStore  *memTaskStore
	workQueue  *queue.RedisQueue
	registry   *agent.Registry
}

func setup(t *testing.T, handlers ...agent.Handler) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := agent.NewEmptyRegistry()
	for _, h := range handlers {
		registry.Register(h)
	}

	taskStore := newMemTaskStore()
	workQueue := queue.NewRedisQueue(client)

	d := NewDispatcher(workQueue, taskStore, registry, 10*time.Millisecond)
	d.missingRowDelay = time.Millisecond

	return &fixture{
		dispatcher: d,
		taskStore:  taskStore,
		workQueue:  workQueue,
		registry:   registry,
	}
}

// submit creates a pending durable row and enqueues the matching work item,
// the way the submission service does.
func (f *fixture) submit(t *testing.T, agentType string, input map[string]any) *domain.Task {
	t.Helper()
	ctx := context.Background()

	task, err := domain.NewTask(uuid.New(), agentType, input)
	require.NoError(t, err)
	require.NoError(t, f.taskStore.Create(ctx, task))

	_, err = f.workQueue.Enqueue(ctx, agentType, queue.WorkItem{
		TaskID:    task.ID,
		AgentType: agentType,
		InputData: input,
		Owner:     task.Owner,
	})
	require.NoError(t, err)

	return task
}

func TestPassCompletesTask(t *testing.T) {
	h := &stubHandler{name: "trend_analyzer"}
	f := setup(t, h)
	ctx := context.Background()

	task := f.submit(t, "trend_analyzer", map[string]any{"query": "e-bikes"})

	processed := f.dispatcher.runPass(ctx)
	assert.True(t, processed)

	stored, err := f.taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.Equal(t, map[string]any{"ok": true}, stored.Result)
	require.NotNil(t, stored.CompletedAt)
	require.NotNil(t, stored.ExecutionTime)

	require.Len(t, h.handled, 1)
	assert.Equal(t, "e-bikes", h.handled[0]["query"])

	// Cache mirrors the outcome.
	blob, err := f.workQueue.GetStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, blob.Status)
}

func TestPassDrainsFIFO(t *testing.T) {
	var seen []string
	h := &stubHandler{
		name: "trend_analyzer",
		handle: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			seen = append(seen, input["n"].(string))
			return map[string]any{}, nil
		},
	}
	f := setup(t, h)
	ctx := context.Background()

	f.submit(t, "trend_analyzer", map[string]any{"n": "first"})
	f.submit(t, "trend_analyzer", map[string]any{"n": "second"})
	f.submit(t, "trend_analyzer", map[string]any{"n": "third"})

	// One item per pass per queue; three passes drain the queue in order.
	for i := 0; i < 3; i++ {
		require.True(t, f.dispatcher.runPass(ctx))
	}
	assert.False(t, f.dispatcher.runPass(ctx))

	assert.Equal(t, []string{"first", "second", "third"}, seen)
}

func TestHandlerErrorFailsTask(t *testing.T) {
	h := &stubHandler{
		name: "trend_analyzer",
		handle: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return nil, errors.New("backend down")
		},
	}
	f := setup(t, h)
	ctx := context.Background()

	task := f.submit(t, "trend_analyzer", nil)
	f.dispatcher.runPass(ctx)

	stored, err := f.taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "backend down", stored.Error)
	// The failure shows up in the result too, for clients polling either field.
	assert.Equal(t, map[string]any{"error": "backend down"}, stored.Result)
}

func TestErrorKeyInResultFailsTask(t *testing.T) {
	h := &stubHandler{
		name: "trend_analyzer",
		handle: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"error": "model refused", "raw": "model output"}, nil
		},
	}
	f := setup(t, h)
	ctx := context.Background()

	task := f.submit(t, "trend_analyzer", nil)
	f.dispatcher.runPass(ctx)

	stored, err := f.taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "model refused", stored.Error)
	assert.Equal(t, "model refused", stored.Result["error"])
}

func TestHandlerPanicFailsTask(t *testing.T) {
	h := &stubHandler{
		name: "trend_analyzer",
		handle: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			panic("bad payload")
		},
	}
	f := setup(t, h)
	ctx := context.Background()

	task := f.submit(t, "trend_analyzer", nil)
	f.dispatcher.runPass(ctx)

	stored, err := f.taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "bad payload")
}

func TestMissingDurableRowAbandonsItem(t *testing.T) {
	h := &stubHandler{name: "trend_analyzer"}
	f := setup(t, h)
	ctx := context.Background()

	// Work item with no durable row at all.
	_, err := f.workQueue.Enqueue(ctx, "trend_analyzer", queue.WorkItem{
		TaskID:    uuid.New(),
		AgentType: "trend_analyzer",
		Owner:     uuid.New(),
	})
	require.NoError(t, err)

	f.dispatcher.runPass(ctx)

	assert.Empty(t, h.handled)
	assert.Empty(t, f.taskStore.tasks)
}

func TestAlreadyFinishedTaskSkipped(t *testing.T) {
	h := &stubHandler{name: "trend_analyzer"}
	f := setup(t, h)
	ctx := context.Background()

	task := f.submit(t, "trend_analyzer", nil)
	stored := f.taskStore.tasks[task.ID]
	require.NoError(t, stored.TransitionTo(domain.TaskStatusRunning))
	require.NoError(t, stored.Complete(map[string]any{"done": true}))

	f.dispatcher.runPass(ctx)

	assert.Empty(t, h.handled)
	assert.Equal(t, domain.TaskStatusCompleted, f.taskStore.tasks[task.ID].Status)
}

func TestRoundRobinAcrossAgentTypes(t *testing.T) {
	analyzer := &stubHandler{name: "trend_analyzer"}
	scheduler := &stubHandler{name: "scheduler"}
	f := setup(t, analyzer, scheduler)
	ctx := context.Background()

	f.submit(t, "trend_analyzer", nil)
	f.submit(t, "scheduler", nil)

	// A single pass visits both queues.
	require.True(t, f.dispatcher.runPass(ctx))

	assert.Len(t, analyzer.handled, 1)
	assert.Len(t, scheduler.handled, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := setup(t, &stubHandler{name: "trend_analyzer"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.dispatcher.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
