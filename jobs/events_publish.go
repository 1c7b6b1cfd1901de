package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/retailops/backoffice/internal/events"
	jobmetrics "github.com/retailops/backoffice/internal/jobs"
)

// EventsPublishPayload names the topic that changed and optional details.
type EventsPublishPayload struct {
	Topic events.Topic    `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEventsPublishTask constructs a publish task. Unknown topics are rejected
// here so a typo never reaches the queue.
func NewEventsPublishTask(topic events.Topic, data any) (*asynq.Task, error) {
	if !topic.Valid() {
		return nil, fmt.Errorf("jobs: unknown topic %q", topic)
	}
	payload := EventsPublishPayload{Topic: topic}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		payload.Data = raw
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventsPublish, body, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// EventsPublishJob forwards queued events to a Publisher.
type EventsPublishJob struct {
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewEventsPublishJob constructs the job handler.
func NewEventsPublishJob(publisher events.Publisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *EventsPublishJob {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsPublishJob{publisher: publisher, logger: logger, metrics: metrics}
}

// Handle implements asynq.HandlerFunc.
func (j *EventsPublishJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload EventsPublishPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !payload.Topic.Valid() {
		j.logger.Warn("events publish task with unknown topic", slog.String("topic", string(payload.Topic)))
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(TaskEventsPublish)
	var data any
	if len(payload.Data) > 0 {
		data = payload.Data
	}
	j.publisher.Publish(ctx, payload.Topic, data)
	return tracker.End(nil)
}
