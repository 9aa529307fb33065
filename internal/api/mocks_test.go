package api

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/trendscout/trendscout/internal/config"
	"github.com/trendscout/trendscout/internal/domain"
	"github.com/trendscout/trendscout/internal/queue"
	"github.com/trendscout/trendscout/internal/service"
	"github.com/trendscout/trendscout/internal/service/auth"
	"github.com/trendscout/trendscout/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// memTaskStore is an in-memory TaskStore for handler tests.
type memTaskStore struct {
	tasks map[uuid.UUID]*domain.Task
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
	var matched []*domain.Task
	for _, task := range m.tasks {
		if filter.Owner != nil && task.Owner != *filter.Owner {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.AgentType != nil && task.AgentType != *filter.AgentType {
			continue
		}
		cp := *task
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

func (m *memTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

// memUserStore is an in-memory UserStore for handler tests.
type memUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (m *memUserStore) Create(ctx context.Context, user *domain.User, password string) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	cp := *user
	cp.HashedPassword = string(hash)
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *memUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// allowAllCatalog accepts every agent type.
type allowAllCatalog struct{}

func (allowAllCatalog) Supports(string) bool { return true }

func newTestTaskService(t *testing.T) (*service.TaskService, *memTaskStore, *queue.RedisQueue) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	taskStore := newMemTaskStore()
	workQueue := queue.NewRedisQueue(client)
	svc := service.NewTaskService(taskStore, workQueue, allowAllCatalog{})

	return svc, taskStore, workQueue
}

func newTestJWTService(t *testing.T) auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:                   "handler-test-secret-32-chars-long!",
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 10080,
	})
	require.NoError(t, err)

	return svc
}
