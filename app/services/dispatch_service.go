// Package services provides external service integrations and technical concerns like task dispatch and notifications
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/dueflow/dueflow/models"
	"github.com/redis/go-redis/v9"
)

// TaskDispatcher hands emitted tasks to the channel workers. Dispatch is
// fire-and-forget from the engine's perspective; delivery and ack semantics
// belong to the workers consuming the queue.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task *models.Task) error
}

// RedisTaskDispatcher pushes task payloads onto a redis list consumed by the
// channel workers
type RedisTaskDispatcher struct {
	rc       *redis.Client
	queueKey string
	logger   *log.Logger
}

// NewRedisTaskDispatcher creates a redis-backed task dispatcher
func NewRedisTaskDispatcher(rc *redis.Client, queueKey string, logger *log.Logger) *RedisTaskDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisTaskDispatcher{
		rc:       rc,
		queueKey: queueKey,
		logger:   logger,
	}
}

// Dispatch serializes the task and pushes it onto the queue
func (d *RedisTaskDispatcher) Dispatch(ctx context.Context, task *models.Task) error {
	if d.rc == nil {
		return fmt.Errorf("task dispatcher: redis client not configured")
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("task dispatcher: marshal task %s: %w", task.UUID, err)
	}

	if err := d.rc.LPush(ctx, d.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("task dispatcher: push task %s: %w", task.UUID, err)
	}

	d.logger.Printf("dispatch: queued task uuid=%s type=%s campaign=%d", task.UUID, task.Type, task.CampaignID)
	return nil
}

// MockTaskDispatcher records dispatched tasks in memory, used in tests and
// local runs without redis
type MockTaskDispatcher struct {
	mu         sync.Mutex
	Dispatched []*models.Task

	// FailWith, when set, is returned by every Dispatch call
	FailWith error
}

// NewMockTaskDispatcher creates an in-memory dispatcher
func NewMockTaskDispatcher() *MockTaskDispatcher {
	return &MockTaskDispatcher{}
}

// Dispatch records the task
func (d *MockTaskDispatcher) Dispatch(_ context.Context, task *models.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailWith != nil {
		return d.FailWith
	}
	d.Dispatched = append(d.Dispatched, task)
	return nil
}

// Count returns how many tasks have been dispatched
func (d *MockTaskDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Dispatched)
}

// Last returns the most recently dispatched task, or nil
func (d *MockTaskDispatcher) Last() *models.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Dispatched) == 0 {
		return nil
	}
	return d.Dispatched[len(d.Dispatched)-1]
}

var (
	_ TaskDispatcher = (*RedisTaskDispatcher)(nil)
	_ TaskDispatcher = (*MockTaskDispatcher)(nil)
)
