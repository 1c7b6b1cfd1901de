package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/backoffice/internal/events"
	jobmetrics "github.com/retailops/backoffice/internal/jobs"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type published struct {
	topic events.Topic
	data  any
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic events.Topic, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, data: data})
}

type purgerFunc func(ctx context.Context) (int64, error)

func (f purgerFunc) PurgeExpiredSessions(ctx context.Context) (int64, error) { return f(ctx) }

func TestNewEventsPublishTask(t *testing.T) {
	_, err := NewEventsPublishTask(events.Topic("payroll"), nil)
	assert.Error(t, err)

	task, err := NewEventsPublishTask(events.TopicSales, map[string]int{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, TaskEventsPublish, task.Type())

	var payload EventsPublishPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, events.TopicSales, payload.Topic)
	assert.JSONEq(t, `{"id":7}`, string(payload.Data))
}

func TestEventsPublishJobPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	registry := prometheus.NewRegistry()
	job := NewEventsPublishJob(pub, discard, jobmetrics.NewMetrics(registry))

	task, err := NewEventsPublishTask(events.TopicProducts, nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, events.TopicProducts, pub.sent[0].topic)
	assert.Nil(t, pub.sent[0].data)
	count, err := testutil.GatherAndCount(registry, "backoffice_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventsPublishJobSkipsBadPayloads(t *testing.T) {
	pub := &recordingPublisher{}
	job := NewEventsPublishJob(pub, discard, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskEventsPublish, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskEventsPublish, []byte(`{"topic":"payroll"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, pub.sent)
}

func TestSessionPurgeJob(t *testing.T) {
	calls := 0
	job := NewSessionPurgeJob(purgerFunc(func(context.Context) (int64, error) {
		calls++
		return 3, nil
	}), discard, nil)

	task, err := NewSessionPurgeTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, calls)

	// Cron-scheduled tasks carry no payload.
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskSessionPurge, nil)))
	assert.Equal(t, 2, calls)
}

func TestSessionPurgeJobReturnsError(t *testing.T) {
	boom := errors.New("db down")
	registry := prometheus.NewRegistry()
	job := NewSessionPurgeJob(purgerFunc(func(context.Context) (int64, error) {
		return 0, boom
	}), discard, jobmetrics.NewMetrics(registry))

	err := job.Handle(context.Background(), asynq.NewTask(TaskSessionPurge, nil))
	assert.ErrorIs(t, err, boom)
	count, err := testutil.GatherAndCount(registry, "backoffice_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, discard).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0}`, rr.Body.String())
}
