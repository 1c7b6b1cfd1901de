// Package cli holds operator commands that talk to the job queue directly.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/retailops/backoffice/internal/events"
	"github.com/retailops/backoffice/jobs"
)

// JobsCLI pairs a task client with a queue inspector.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI connects to the queue at redisAddr.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases both connections.
func (c *JobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// Trigger enqueues the named task now.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	switch name {
	case jobs.TaskSessionPurge:
		return c.client.EnqueueSessionPurge(ctx)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Notify queues a change event on topic for the worker to announce.
func (c *JobsCLI) Notify(ctx context.Context, topic string) (*asynq.TaskInfo, error) {
	return c.client.EnqueuePublish(ctx, events.Topic(topic), nil)
}

// InspectQueue reports the default queue's counters.
func (c *JobsCLI) InspectQueue(context.Context) (jobs.QueueStats, error) {
	return jobs.InspectQueue(c.inspector)
}
