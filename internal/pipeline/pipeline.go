// Package pipeline runs one news item through normalization, scoring,
// calibration and advice, and records the outcome.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zombar/truthlens/internal/classifier"
	"github.com/zombar/truthlens/internal/decision"
	"github.com/zombar/truthlens/internal/metrics"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/stats"
	"github.com/zombar/truthlens/internal/textproc"
	"github.com/zombar/truthlens/internal/tracing"
	"github.com/zombar/truthlens/pkg/logging"
)

// PredictionStore persists classification outcomes
type PredictionStore interface {
	SavePrediction(ctx context.Context, p *models.Prediction) error
}

// Request is one item to classify
type Request struct {
	Input     models.ClassificationInput
	Source    models.Source
	SourceRef string // URL or file name
	FileInfo  string
}

// Result is the outcome of a pipeline run
type Result struct {
	ID             string           `json:"id"`
	Decision       models.Decision  `json:"decision"`
	Recommendation string           `json:"recommendation"`
	Preview        string           `json:"extracted_preview"`
	ModelInfo      models.ModelInfo `json:"model_info"`
	Debug          *DebugInfo       `json:"debug_info,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Pipeline classifies requests with a shared scorer
type Pipeline struct {
	scorer   classifier.Scorer
	engine   *decision.Engine
	recorder stats.Recorder
	store    PredictionStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	fallback bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRecorder counts every successful decision
func WithRecorder(r stats.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithStore persists every decision
func WithStore(s PredictionStore) Option {
	return func(p *Pipeline) { p.store = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithFallback controls whether a scorer failure yields the neutral ERROR
// decision (true, the default) or is returned to the caller.
func WithFallback(enabled bool) Option {
	return func(p *Pipeline) { p.fallback = enabled }
}

// New creates a pipeline around scorer and engine
func New(scorer classifier.Scorer, engine *decision.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:   scorer,
		engine:   engine,
		logger:   slog.Default(),
		fallback: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelInfo describes the scorer serving this pipeline
func (p *Pipeline) ModelInfo() models.ModelInfo {
	return models.ModelInfo{
		Type:    classifier.ModelType(p.scorer.Backend()),
		Backend: p.scorer.Backend(),
	}
}

// Classify runs req through the pipeline. Typed errors are returned for
// rejected input; a scorer failure becomes the fallback decision unless
// fallback is disabled.
func (p *Pipeline) Classify(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	source := req.Source
	if source == "" {
		source = models.SourceManual
	}
	logger := logging.FromContext(ctx, p.logger).With("source", string(source))

	ctx, span := tracing.Tracer().Start(ctx, "pipeline.classify")
	defer span.End()
	span.SetAttributes(attribute.String("source", string(source)))

	input := req.Input
	truncated := false
	if source != models.SourceManual {
		input.Body, truncated = textproc.Truncate(input.Body, runeLen(input.Title), runeLen(input.Description))
	}

	text, err := textproc.Combine(input)
	if err != nil {
		p.metrics.Rejection(string(models.KindOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info("classification rejected", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("text.length", runeLen(text)))

	result := &Result{
		ID:        uuid.NewString(),
		Preview:   textproc.Preview(req.Input),
		ModelInfo: p.ModelInfo(),
	}

	score, err := p.score(ctx, text)
	if err != nil {
		p.metrics.InferenceError(p.scorer.Backend())
		logger.Error("model inference failed", "error", err, "analysis_id", result.ID)
		if !p.fallback {
			return nil, err
		}
		result.Decision = decision.Fallback()
		result.Error = err.Error()
	} else {
		result.Decision = p.engine.Decide(score)
	}
	result.Recommendation = decision.Advise(result.Decision)
	result.Debug = newDebugInfo(req, source, result, runeLen(text), truncated)

	span.SetAttributes(
		attribute.String("decision.label", string(result.Decision.Label)),
		attribute.String("decision.tier", string(result.Decision.ConfidenceTier)),
	)

	p.record(ctx, logger, req, source, result)

	p.metrics.ObservePrediction(string(result.Decision.Label), string(result.Decision.ConfidenceTier), string(source))
	p.metrics.ObserveDuration(string(source), time.Since(start))

	logger.Info("classification completed",
		"analysis_id", result.ID,
		"label", result.Decision.Label,
		"tier", result.Decision.ConfidenceTier,
		"probability_fake", result.Decision.ProbabilityFake,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (p *Pipeline) score(ctx context.Context, text string) (models.RawScore, error) {
	ctx, span := tracing.Tracer().Start(ctx, "classifier.score")
	defer span.End()
	span.SetAttributes(
		attribute.String("classifier.backend", p.scorer.Backend()),
		attribute.Int("text.length", runeLen(text)),
	)

	score, err := p.scorer.Score(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return score, err
	}
	span.SetAttributes(attribute.Float64("probability_fake", score.ProbabilityFake))
	return score, nil
}

// record updates statistics and history; failures there never fail the
// classification
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, req Request, source models.Source, result *Result) {
	d := result.Decision
	if p.recorder != nil && d.Label != models.LabelError {
		if err := p.recorder.Record(ctx, d.Label == models.LabelFake, d.ConfidenceTier == models.TierHigh); err != nil {
			logger.Warn("failed to record stats", "error", err)
		}
	}

	if p.store == nil {
		return
	}
	prediction := &models.Prediction{
		ID:              result.ID,
		Source:          source,
		SourceRef:       req.SourceRef,
		Prediction:      PredictionName(d.Label),
		ProbabilityFake: d.ProbabilityFake,
		ProbabilityTrue: d.ProbabilityTrue,
		Confidence:      d.Confidence,
		ConfidenceTier:  d.ConfidenceTier,
		ThresholdUsed:   d.ThresholdUsed,
		Recommendation:  result.Recommendation,
		Preview:         result.Preview,
		CreatedAt:       time.Now().UTC(),
	}
	if err := p.store.SavePrediction(ctx, prediction); err != nil {
		logger.Warn("failed to save prediction", "error", err, "analysis_id", result.ID)
	}
}

// PredictionName is the display name of a label
func PredictionName(l models.Label) string {
	switch l {
	case models.LabelFake:
		return "Fake"
	case models.LabelReal:
		return "Real"
	default:
		return "Error"
	}
}

// NumericLabel is 1 for fake, 0 for real and -1 for error
func NumericLabel(l models.Label) int {
	switch l {
	case models.LabelFake:
		return 1
	case models.LabelReal:
		return 0
	default:
		return -1
	}
}
