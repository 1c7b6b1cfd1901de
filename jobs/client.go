package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/retailops/backoffice/internal/events"
)

// Client enqueues back-office tasks.
type Client struct {
	client *asynq.Client
}

// NewClient connects lazily; nothing is dialled until the first enqueue.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueuePublish queues a change event for the worker to announce.
func (c *Client) EnqueuePublish(ctx context.Context, topic events.Topic, data any) (*asynq.TaskInfo, error) {
	task, err := NewEventsPublishTask(topic, data)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueSessionPurge queues an immediate session purge.
func (c *Client) EnqueueSessionPurge(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewSessionPurgeTask(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
