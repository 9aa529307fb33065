// Package queue implements the work queue: one FIFO Redis list per agent
// type for producer/consumer hand-off, plus a per-task status blob that
// serves as a fast-path status cache for polling clients.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/trendscout/trendscout/internal/config"
	"github.com/trendscout/trendscout/internal/domain"
)

// StatusNotFound is the sentinel status returned by GetStatus when no blob
// exists for a handle (never created, or evicted).
const StatusNotFound domain.TaskStatus = "not_found"

// WorkItem is the queue-resident, ephemeral representation of a task
// awaiting processing. It mirrors the durable record's identity fields; the
// task ID doubles as the queue handle.
type WorkItem struct {
	TaskID    uuid.UUID      `json:"task_id"`
	AgentType string         `json:"agent_type"`
	InputData map[string]any `json:"input_data"`
	Owner     uuid.UUID      `json:"owner"`
}

// StatusBlob is the cached per-task view consumed by the query path before
// it is reconciled into the durable record.
type StatusBlob struct {
	TaskID    uuid.UUID         `json:"task_id,omitempty"`
	AgentType string            `json:"agent_type,omitempty"`
	Status    domain.TaskStatus `json:"status"`
	Result    map[string]any    `json:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// WorkQueue is the FIFO hand-off between the submission service and the
// worker dispatch loop.
type WorkQueue interface {
	// Enqueue stamps the item's status blob pending, pushes the item onto
	// the tail of the named queue and stores the blob under the task's
	// handle. Returns the handle. The list push and the blob write are not
	// atomic: a crash between them can leave a list entry without a blob,
	// or vice versa.
	Enqueue(ctx context.Context, queueName string, item WorkItem) (uuid.UUID, error)

	// Dequeue pops the head of the named queue in FIFO order. Returns
	// (nil, nil) when the queue is empty; callers poll rather than block.
	Dequeue(ctx context.Context, queueName string) (*WorkItem, error)

	// GetStatus reads the cached status blob for a handle. Returns a blob
	// with Status == StatusNotFound when no blob exists.
	GetStatus(ctx context.Context, handle uuid.UUID) (StatusBlob, error)

	// UpdateStatus overwrites the cached blob's status/result and refreshes
	// its updated-at timestamp. Read-modify-write, last-writer-wins; no
	// locking, since exactly one worker owns a handle post-dequeue. A
	// missing blob is a no-op.
	UpdateStatus(ctx context.Context, handle uuid.UUID, status domain.TaskStatus, result map[string]any) error
}

// RedisQueue implements WorkQueue on a Redis backend.
type RedisQueue struct {
	client *redis.Client
}

// Ensure RedisQueue implements WorkQueue.
var _ WorkQueue = (*RedisQueue)(nil)

// NewRedisQueue creates a RedisQueue on an existing client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// NewClient creates a Redis client from queue configuration and verifies
// connectivity with a short ping.
func NewClient(ctx context.Context, cfg config.QueueConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping queue backend: %w", err)
	}

	return client, nil
}

func queueKey(name string) string {
	return "queue:" + name
}

func taskKey(handle uuid.UUID) string {
	return "task:" + handle.String()
}

// Enqueue pushes the serialized item onto the named list and stores its
// status blob keyed by the task handle.
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, item WorkItem) (uuid.UUID, error) {
	if item.TaskID == uuid.Nil {
		return uuid.Nil, domain.ErrEmptyTaskID
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal work item: %w", err)
	}

	now := time.Now().UTC()
	blob := StatusBlob{
		TaskID:    item.TaskID,
		AgentType: item.AgentType,
		Status:    domain.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	blobJSON, err := json.Marshal(blob)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal status blob: %w", err)
	}

	if err := q.client.LPush(ctx, queueKey(queueName), payload).Err(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to push work item: %w", err)
	}

	if err := q.client.Set(ctx, taskKey(item.TaskID), blobJSON, 0).Err(); err != nil {
		// The list entry already exists; the worker will still process it,
		// only the fast-path cache is missing its initial blob.
		return uuid.Nil, fmt.Errorf("failed to store status blob: %w", err)
	}

	return item.TaskID, nil
}

// Dequeue pops the oldest item from the named queue.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string) (*WorkItem, error) {
	payload, err := q.client.RPop(ctx, queueKey(queueName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop work item: %w", err)
	}

	var item WorkItem
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item: %w", err)
	}

	return &item, nil
}

// GetStatus reads the cached status blob for a handle.
func (q *RedisQueue) GetStatus(ctx context.Context, handle uuid.UUID) (StatusBlob, error) {
	data, err := q.client.Get(ctx, taskKey(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StatusBlob{Status: StatusNotFound}, nil
		}
		return StatusBlob{}, fmt.Errorf("failed to read status blob: %w", err)
	}

	var blob StatusBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return StatusBlob{}, fmt.Errorf("failed to unmarshal status blob: %w", err)
	}

	return blob, nil
}

// UpdateStatus overwrites the cached blob's status and result.
func (q *RedisQueue) UpdateStatus(ctx context.Context, handle uuid.UUID, status domain.TaskStatus, result map[string]any) error {
	blob, err := q.GetStatus(ctx, handle)
	if err != nil {
		return err
	}
	if blob.Status == StatusNotFound {
		return nil
	}

	blob.Status = status
	blob.UpdatedAt = time.Now().UTC()
	if result != nil {
		blob.Result = result
	}

	blobJSON, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal status blob: %w", err)
	}

	if err := q.client.Set(ctx, taskKey(handle), blobJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to store status blob: %w", err)
	}

	return nil
}
