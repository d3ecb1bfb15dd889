package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// ErrAlreadyQueued reports that an equivalent task is still waiting to run.
var ErrAlreadyQueued = errors.New("jobs: task already queued")

// Client submits invoice maintenance tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client over the given Redis connection.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueSweepOverdue requests an overdue sweep. A sweep that is already
// queued yields ErrAlreadyQueued.
func (c *Client) EnqueueSweepOverdue(ctx context.Context, triggeredBy string) (*asynq.TaskInfo, error) {
	task, err := NewSweepOverdueTask(triggeredBy)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
