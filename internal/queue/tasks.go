package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/truthlens/internal/database"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/pipeline"
	"github.com/zombar/truthlens/internal/scraper"
	"github.com/zombar/truthlens/internal/tracing"
	"github.com/zombar/truthlens/pkg/logging"
)

// jobFunc does the work of one task and returns the stored prediction IDs
type jobFunc func(ctx context.Context, logger *slog.Logger, payload ClassifyPayload) ([]string, string, error)

// handleClassifyURL scrapes one article and classifies it
func (w *Worker) handleClassifyURL(ctx context.Context, t *asynq.Task) error {
	return w.runJob(ctx, t, func(ctx context.Context, _ *slog.Logger, payload ClassifyPayload) ([]string, string, error) {
		article, err := w.deps.Articles.Fetch(ctx, payload.URL)
		if err != nil {
			return nil, "", err
		}

		result, err := w.deps.Classifier.Classify(ctx, pipeline.Request{
			Input:     article.Input(),
			Source:    models.SourceURL,
			SourceRef: article.URL,
		})
		if err != nil {
			return nil, "", err
		}
		return []string{result.ID}, result.Error, nil
	})
}

// handleClassifyFeed classifies every item of a feed. Items that cannot be
// classified are noted on the job without failing it.
func (w *Worker) handleClassifyFeed(ctx context.Context, t *asynq.Task) error {
	return w.runJob(ctx, t, func(ctx context.Context, logger *slog.Logger, payload ClassifyPayload) ([]string, string, error) {
		items, err := w.deps.Feeds.Fetch(ctx, payload.URL, payload.Limit)
		if err != nil {
			return nil, "", err
		}

		reqs := make([]pipeline.Request, len(items))
		for i, item := range items {
			reqs[i] = pipeline.Request{Input: item.Input, Source: models.SourceFeed, SourceRef: item.Link}
		}

		ids := []string{}
		var skipped []string
		for _, outcome := range w.deps.Classifier.ClassifyEach(ctx, reqs) {
			if outcome.Err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, "", ctxErr
				}
				skipped = append(skipped, fmt.Sprintf("%s: %v", outcome.Request.SourceRef, outcome.Err))
				continue
			}
			ids = append(ids, outcome.Result.ID)
		}

		logger.Info("feed classified", "items", len(items), "classified", len(ids), "skipped", len(skipped))

		note := ""
		if len(skipped) > 0 {
			note = fmt.Sprintf("%d of %d items skipped: %s", len(skipped), len(items), strings.Join(skipped, "; "))
		}
		return ids, note, nil
	})
}

// runJob moves a job through processing to completed or failed. Retriable
// failures leave the job queued and hand the error back to asynq; anything
// else is final.
func (w *Worker) runJob(ctx context.Context, t *asynq.Task, fn jobFunc) error {
	var payload ClassifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := startTaskSpan(ctx, t.Type(), payload)
	defer span.End()

	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logger := logging.FromContext(ctx, w.logger).With(
		"job_id", payload.JobID,
		"task_type", t.Type(),
		"url", payload.URL,
		"retry_count", retryCount,
	)
	logger.Info("processing job", "queue_wait_seconds", queueWait(payload).Seconds())

	job, err := w.deps.Jobs.GetJob(ctx, payload.JobID)
	if errors.Is(err, database.ErrNotFound) {
		logger.Warn("job no longer exists")
		return fmt.Errorf("job %s not found: %w", payload.JobID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	job.Status = models.JobProcessing
	job.Attempts = retryCount + 1
	if err := w.deps.Jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	ids, note, runErr := fn(ctx, logger, payload)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())

		job.Error = runErr.Error()
		retry := isRetriable(runErr) && retryCount < maxRetry
		if retry {
			job.Status = models.JobQueued
			logger.Warn("retriable job failure, will retry", "error", runErr)
		} else {
			job.Status = models.JobFailed
			logger.Error("job failed", "error", runErr, "kind", string(models.KindOf(runErr)))
		}

		if err := w.deps.Jobs.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
			logger.Error("failed to update job", "error", err)
		}
		if retry {
			return runErr
		}
		return fmt.Errorf("%w: %w", runErr, asynq.SkipRetry)
	}

	job.Status = models.JobCompleted
	job.PredictionIDs = ids
	job.Error = note
	if err := w.deps.Jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	span.SetAttributes(attribute.Int("predictions.count", len(ids)))
	logger.Info("job completed", "predictions", len(ids))
	return nil
}

// startTaskSpan continues the trace recorded at enqueue time when the
// payload carries one
func startTaskSpan(ctx context.Context, taskType string, payload ClassifyPayload) (context.Context, trace.Span) {
	if payload.TraceID != "" && payload.SpanID != "" {
		traceID, err := trace.TraceIDFromHex(payload.TraceID)
		if err == nil {
			spanID, err := trace.SpanIDFromHex(payload.SpanID)
			if err == nil {
				remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
					TraceID:    traceID,
					SpanID:     spanID,
					TraceFlags: trace.FlagsSampled,
					Remote:     true,
				})
				ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)
			}
		}
	}

	wait := queueWait(payload)
	ctx, span := tracing.Tracer().Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("job.id", payload.JobID),
			attribute.String("url", payload.URL),
			attribute.Float64("queue.wait_time_seconds", wait.Seconds()),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		),
	)
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", wait.Seconds()),
	))
	return ctx, span
}

func queueWait(payload ClassifyPayload) time.Duration {
	if payload.EnqueuedAt <= 0 {
		return 0
	}
	return time.Since(time.Unix(0, payload.EnqueuedAt))
}

// isRetriable reports whether err is a transient network failure. Robots
// exclusions and client errors from the target are permanent.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var upstream *models.UpstreamServiceError
	if !errors.As(err, &upstream) {
		return false
	}
	if errors.Is(err, scraper.ErrDisallowed) {
		return false
	}
	code := upstream.StatusCode
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
