// Package app wires the long-lived TruthLens components: the classifier,
// storage, statistics and outbound clients. Everything is created once at
// startup and shared by the HTTP server, the worker and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zombar/truthlens/internal/api"
	"github.com/zombar/truthlens/internal/classifier"
	"github.com/zombar/truthlens/internal/config"
	"github.com/zombar/truthlens/internal/database"
	"github.com/zombar/truthlens/internal/decision"
	"github.com/zombar/truthlens/internal/feed"
	"github.com/zombar/truthlens/internal/metrics"
	"github.com/zombar/truthlens/internal/ocr"
	"github.com/zombar/truthlens/internal/pipeline"
	"github.com/zombar/truthlens/internal/queue"
	"github.com/zombar/truthlens/internal/scraper"
	"github.com/zombar/truthlens/internal/stats"
	"github.com/zombar/truthlens/internal/tracing"
	"github.com/zombar/truthlens/pkg/logging"
)

// dbStatsInterval is how often pool gauges are refreshed
const dbStatsInterval = 15 * time.Second

// App owns the process-wide components
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	DB       *database.DB
	Scorer   classifier.Scorer
	Pipeline *pipeline.Pipeline
	Stats    stats.Recorder
	Scraper  *scraper.Scraper
	Feeds    *feed.Reader
	OCR      *ocr.Client   // nil without an API key
	Queue    *queue.Client // nil without Redis

	redis        *redis.Client
	checkpointer *stats.Checkpointer
	dbMetrics    *metrics.DatabaseMetrics
	tracer       *sdktrace.TracerProvider
}

// New builds every component from cfg. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close(context.Background())
		}
	}()

	if cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			a.tracer = tp
			logger.Info("tracing initialized", "service", cfg.Tracing.ServiceName)
		}
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	if err := a.openDatabase(); err != nil {
		return nil, err
	}
	if err := a.openStats(ctx); err != nil {
		return nil, err
	}

	scorer, err := classifier.New(classifier.Config{
		Backend:       cfg.Classifier.Backend,
		Model:         cfg.Classifier.Model,
		URL:           cfg.Classifier.URL,
		APIKey:        cfg.Classifier.APIKey,
		ModelPath:     cfg.Classifier.ModelPath,
		FakeLabels:    cfg.Classifier.FakeLabels,
		Timeout:       cfg.Classifier.Timeout,
		CacheTTL:      cfg.Classifier.CacheTTL,
		MaxConcurrent: cfg.Classifier.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}
	a.Scorer = scorer
	logger.Info("classifier initialized", "backend", a.Scorer.Backend(), "model", cfg.Classifier.Model)

	a.Pipeline = pipeline.New(a.Scorer, decision.NewEngine(cfg.Classifier.DefaultThreshold),
		pipeline.WithRecorder(a.Stats),
		pipeline.WithStore(a.DB),
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithLogger(logger),
		pipeline.WithFallback(cfg.Server.Fallback),
	)

	a.Scraper = scraper.New(scraper.Config{
		UserAgent:     cfg.Scraper.UserAgent,
		Timeout:       cfg.Scraper.Timeout,
		MaxBytes:      cfg.Scraper.MaxBytes,
		CacheTTL:      cfg.Scraper.CacheTTL,
		RatePerSecond: cfg.Scraper.RatePerSecond,
		IgnoreRobots:  cfg.Scraper.IgnoreRobots,
	})
	a.Feeds = feed.NewReader(&http.Client{Timeout: cfg.Scraper.Timeout}, cfg.Scraper.UserAgent)

	if cfg.OCR.APIKey != "" {
		a.OCR = ocr.New(ocr.Config{
			URL:           cfg.OCR.URL,
			APIKey:        cfg.OCR.APIKey,
			Language:      cfg.OCR.Language,
			Timeout:       cfg.OCR.Timeout,
			RatePerSecond: cfg.OCR.RatePerSecond,
		})
	} else {
		logger.Info("OCR disabled, no API key configured")
	}

	if cfg.Redis.Addr != "" {
		a.Queue = queue.NewClient(queue.ClientConfig{RedisAddr: cfg.Redis.Addr})
	}

	ready = true
	return a, nil
}

func (a *App) openDatabase() error {
	db, err := database.New(a.Config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.dbMetrics = metrics.NewDatabaseMetrics(a.Registry, "truthlens")
	a.dbMetrics.UpdateDBStats(db.Conn())
	return nil
}

func (a *App) openStats(ctx context.Context) error {
	switch a.Config.Stats.Backend {
	case config.StatsRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Stats = stats.NewRedisStore(a.redis, a.Config.Stats.KeyPrefix)

	default:
		counter := stats.NewCounter()
		a.checkpointer = stats.NewCheckpointer(counter, a.DB, a.Config.Stats.CheckpointInterval, a.Logger)
		if err := a.checkpointer.Restore(ctx); err != nil {
			return err
		}
		if err := a.checkpointer.Start(); err != nil {
			return err
		}
		a.Stats = counter
	}

	a.Logger.Info("statistics initialized", "backend", a.Config.Stats.Backend)
	return nil
}

// Handler returns the API wrapped with access logging and tracing
func (a *App) Handler() http.Handler {
	deps := api.Dependencies{
		Classifier: a.Pipeline,
		Articles:   a.Scraper,
		Feeds:      a.Feeds,
		Stats:      a.Stats,
		Store:      a.DB,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}
	// Typed nil pointers must not reach the interfaces
	if a.OCR != nil {
		deps.OCR = a.OCR
	}
	if a.Queue != nil {
		deps.Queue = a.Queue
	}

	h := api.NewHandler(api.Config{
		Debug:          a.Config.Server.DebugResponses,
		MaxUploadBytes: a.Config.Server.MaxUploadBytes,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Gatherer:       a.Registry,
	}, deps)

	return logging.HTTPLoggingMiddleware(a.Logger, "/health", "/metrics")(
		tracing.HTTPMiddleware(a.Config.Tracing.ServiceName)(h),
	)
}

// NewWorker creates the asynq worker for URL and feed jobs
func (a *App) NewWorker() (*queue.Worker, error) {
	if a.Config.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required to run the worker")
	}
	return queue.NewWorker(queue.WorkerConfig{
		RedisAddr:   a.Config.Redis.Addr,
		Concurrency: a.Config.Worker.Concurrency,
	}, queue.Dependencies{
		Jobs:       a.DB,
		Classifier: a.Pipeline,
		Articles:   a.Scraper,
		Feeds:      a.Feeds,
		Logger:     a.Logger,
	}), nil
}

// RunDBStats refreshes the connection pool gauges until ctx is done
func (a *App) RunDBStats(ctx context.Context) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.dbMetrics.UpdateDBStats(a.DB.Conn())
		}
	}
}

// Close releases every component in reverse order of creation
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.checkpointer != nil {
		if err := a.checkpointer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("final stats checkpoint: %w", err))
		}
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
