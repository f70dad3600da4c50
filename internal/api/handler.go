package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/zombar/truthlens/internal/feed"
	"github.com/zombar/truthlens/internal/metrics"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/pipeline"
	"github.com/zombar/truthlens/pkg/logging"
)

// DefaultMaxUploadBytes bounds file and image uploads
const DefaultMaxUploadBytes = 10 << 20

// Classifier runs content through the classification pipeline
type Classifier interface {
	Classify(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	ClassifyEach(ctx context.Context, reqs []pipeline.Request) []pipeline.ItemOutcome
	ModelInfo() models.ModelInfo
}

// TextRecognizer reads text from an image
type TextRecognizer interface {
	Recognize(ctx context.Context, filename string, image []byte) (string, error)
}

// ArticleFetcher scrapes a news article
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (*models.Article, error)
}

// FeedFetcher reads feed items
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, limit int) ([]feed.Item, error)
}

// StatsReader exposes the statistics counters
type StatsReader interface {
	Snapshot(ctx context.Context) (models.StatsSnapshot, error)
}

// Store reads prediction history and tracks async jobs
type Store interface {
	GetPrediction(ctx context.Context, id string) (*models.Prediction, error)
	ListPredictions(ctx context.Context, limit, offset int) ([]*models.Prediction, error)
	CountPredictions(ctx context.Context) (int, error)
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

// Enqueuer hands jobs to the worker
type Enqueuer interface {
	EnqueueClassifyURL(ctx context.Context, jobID, url string) (string, error)
	EnqueueClassifyFeed(ctx context.Context, jobID, url string, limit int) (string, error)
}

// Config controls handler behavior
type Config struct {
	// Debug includes debug_info in every prediction response
	Debug          bool
	MaxUploadBytes int64
	AllowedOrigins []string
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
}

// Dependencies are the services behind the handlers. Only Classifier is
// required; endpoints whose dependency is nil answer 503.
type Dependencies struct {
	Classifier Classifier
	OCR        TextRecognizer
	Articles   ArticleFetcher
	Feeds      FeedFetcher
	Stats      StatsReader
	Store      Store
	Queue      Enqueuer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Handler handles HTTP requests
type Handler struct {
	cfg  Config
	deps Dependencies
	mux  *http.ServeMux
}

// NewHandler creates the API handler with CORS support
func NewHandler(cfg Config, deps Dependencies) http.Handler {
	h := newHandler(cfg, deps)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(h.mux)
}

func newHandler(cfg Config, deps Dependencies) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &Handler{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	if h.cfg.Gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{}))
	} else {
		h.mux.Handle("GET /metrics", promhttp.Handler())
	}
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("POST /predict", h.handlePredict)
	h.mux.HandleFunc("POST /ocr_predict", h.handleOCRPredict)
	h.mux.HandleFunc("POST /predict_url", h.handlePredictURL)
	h.mux.HandleFunc("POST /predict_feed", h.handlePredictFeed)

	h.mux.HandleFunc("GET /api/stats", h.handleStats)
	h.mux.HandleFunc("GET /api/predictions", h.handleListPredictions)
	h.mux.HandleFunc("GET /api/predictions/{id}", h.handleGetPrediction)
	h.mux.HandleFunc("POST /api/jobs", h.handleCreateJob)
	h.mux.HandleFunc("GET /api/jobs/{id}", h.handleGetJob)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
		"model":  h.deps.Classifier.ModelInfo(),
	}, http.StatusOK)
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidRequest, models.KindInsufficientContent,
		models.KindUnsupportedFormat, models.KindExtraction:
		return http.StatusBadRequest
	case models.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends err with the status of its kind. Untyped errors are
// logged and reported without detail.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	status := StatusFor(kind)
	message := err.Error()

	var upstream *models.UpstreamServiceError
	if errors.As(err, &upstream) {
		h.deps.Metrics.UpstreamError(upstream.Service)
	}

	logger := logging.FromContext(r.Context(), h.deps.Logger)
	if kind == models.KindInternal {
		logger.Error("request failed", "error", err, "path", r.URL.Path)
		message = "internal server error"
	} else {
		logger.Info("request rejected", "error", err, "kind", string(kind), "path", r.URL.Path)
	}

	respondJSON(w, errorResponse{Error: message, Kind: kind}, status)
}

// respondMessage sends a client error that has no typed error behind it
func respondMessage(w http.ResponseWriter, message string, statusCode int) {
	kind := models.KindInvalidRequest
	if statusCode >= http.StatusInternalServerError {
		kind = models.KindInternal
	}
	respondJSON(w, errorResponse{Error: message, Kind: kind}, statusCode)
}
