package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/scraper"
)

func TestNewTask(t *testing.T) {
	tests := []struct {
		name     string
		taskType string
		limit    int
	}{
		{name: "url", taskType: TypeClassifyURL},
		{name: "feed", taskType: TypeClassifyFeed, limit: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := newPayload(context.Background(), tt.taskType, "job-1", "https://example.com/x", tt.limit)
			assert.NotZero(t, payload.EnqueuedAt)
			assert.Empty(t, payload.TraceID, "no span in context")

			task, opts, err := newTask(tt.taskType, payload)
			require.NoError(t, err)
			assert.Equal(t, tt.taskType, task.Type())
			assert.NotEmpty(t, opts)

			var decoded ClassifyPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
			assert.Equal(t, "job-1", decoded.JobID)
			assert.Equal(t, "https://example.com/x", decoded.URL)
			assert.Equal(t, tt.limit, decoded.Limit)
		})
	}
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection failure", &models.UpstreamServiceError{Service: "scraper", Err: errors.New("connection refused")}, true},
		{"server error", &models.UpstreamServiceError{Service: "scraper", StatusCode: 503}, true},
		{"rate limited", &models.UpstreamServiceError{Service: "feed", StatusCode: 429}, true},
		{"not found", &models.UpstreamServiceError{Service: "scraper", StatusCode: 404}, false},
		{"robots exclusion", &models.UpstreamServiceError{Service: "scraper", Err: fmt.Errorf("%w: x", scraper.ErrDisallowed)}, false},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), true},
		{"insufficient content", &models.InsufficientContentError{Length: 3}, false},
		{"invalid url", &models.InvalidRequestError{Reason: "bad url"}, false},
		{"extraction", &models.ExtractionError{Format: "feed", Err: errors.New("xml")}, false},
		{"generic", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetriable(tt.err), "Error: %v", tt.err)
		})
	}
}

func TestRetryDelay(t *testing.T) {
	task := asynq.NewTask(TypeClassifyURL, []byte(`{}`))
	testErr := errors.New("connection refused")

	for i, want := range retryDelays {
		assert.Equal(t, want, retryDelay(i, testErr, task), "retry %d", i)
	}
	assert.Equal(t, 15*time.Minute, retryDelay(len(retryDelays)+3, testErr, task))
}

func TestQueuePriorities(t *testing.T) {
	assert.Greater(t, queuePriorities[QueueURLs], queuePriorities[QueueFeeds])
	assert.Len(t, queuePriorities, 2)
}

func TestTaskTypeConstants(t *testing.T) {
	assert.Equal(t, "truthlens:classify_url", TypeClassifyURL)
	assert.Equal(t, "truthlens:classify_feed", TypeClassifyFeed)
}
