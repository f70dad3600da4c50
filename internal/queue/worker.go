package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/truthlens/internal/feed"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/pipeline"
)

// JobStore reads and updates job records
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
}

// Classifier runs items through the classification pipeline
type Classifier interface {
	Classify(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	ClassifyEach(ctx context.Context, reqs []pipeline.Request) []pipeline.ItemOutcome
}

// ArticleFetcher scrapes a news article
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (*models.Article, error)
}

// FeedFetcher reads feed items
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, limit int) ([]feed.Item, error)
}

// Dependencies are the collaborators task handlers use
type Dependencies struct {
	Jobs       JobStore
	Classifier Classifier
	Articles   ArticleFetcher
	Feeds      FeedFetcher
	Logger     *slog.Logger
}

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	deps        Dependencies
	concurrency int
	logger      *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// queuePriorities weights single articles above feed batches
var queuePriorities = map[string]int{
	QueueURLs:  6,
	QueueFeeds: 3,
}

// retryDelays back off network failures: 10s, 30s, 1m, 5m, 15m
var retryDelays = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// retryDelay is the asynq RetryDelayFunc
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < len(retryDelays) {
		return retryDelays[n]
	}
	return retryDelays[len(retryDelays)-1]
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, deps Dependencies) *Worker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	serverCfg := asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          queuePriorities,
		StrictPriority:  false,
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			deps.Logger.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
		Logger: newAsynqLogger(deps.Logger),
	}

	w := &Worker{
		server:      asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, serverCfg),
		mux:         asynq.NewServeMux(),
		deps:        deps,
		concurrency: cfg.Concurrency,
		logger:      deps.Logger,
	}

	w.registerHandlers()

	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeClassifyURL, w.handleClassifyURL)
	w.mux.HandleFunc(TypeClassifyFeed, w.handleClassifyFeed)
}

// Start starts processing tasks and blocks until the server stops
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
	)

	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

// Server returns the underlying Asynq server (for testing)
func (w *Worker) Server() *asynq.Server {
	return w.server
}

// asynqLogger routes asynq's internal logging through slog
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: l.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
