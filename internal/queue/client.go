package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeClassifyURL  = "truthlens:classify_url"
	TypeClassifyFeed = "truthlens:classify_feed"
)

// Queue names
const (
	QueueURLs  = "urls"
	QueueFeeds = "feeds"
)

// ClassifyPayload is the payload of both task types
type ClassifyPayload struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
	Limit int    `json:"limit,omitempty"` // feed items, feeds only
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}),
	}
}

// newPayload stamps the enqueue time and the caller's trace context
func newPayload(ctx context.Context, taskType, jobID, url string, limit int) ClassifyPayload {
	payload := ClassifyPayload{
		JobID:      jobID,
		URL:        url,
		Limit:      limit,
		EnqueuedAt: time.Now().UnixNano(),
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("job.id", jobID),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	return payload
}

// newTask builds the asynq task for a payload. The job ID doubles as the
// task ID so a job can only be queued once.
func newTask(taskType string, payload ClassifyPayload) (*asynq.Task, []asynq.Option, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(taskType, payloadBytes, asynq.TaskID(payload.JobID))

	opts := []asynq.Option{
		asynq.MaxRetry(len(retryDelays)),
		asynq.Retention(7 * 24 * time.Hour),
	}
	switch taskType {
	case TypeClassifyFeed:
		opts = append(opts, asynq.Queue(QueueFeeds), asynq.Timeout(10*time.Minute))
	default:
		opts = append(opts, asynq.Queue(QueueURLs), asynq.Timeout(2*time.Minute))
	}

	return task, opts, nil
}

// EnqueueClassifyURL enqueues scraping and classification of one article
func (c *Client) EnqueueClassifyURL(ctx context.Context, jobID, url string) (string, error) {
	return c.enqueue(ctx, TypeClassifyURL, newPayload(ctx, TypeClassifyURL, jobID, url, 0))
}

// EnqueueClassifyFeed enqueues classification of up to limit feed items
func (c *Client) EnqueueClassifyFeed(ctx context.Context, jobID, url string, limit int) (string, error) {
	return c.enqueue(ctx, TypeClassifyFeed, newPayload(ctx, TypeClassifyFeed, jobID, url, limit))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload ClassifyPayload) (string, error) {
	task, opts, err := newTask(taskType, payload)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}

	return info.ID, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
