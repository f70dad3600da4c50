// Package classifier adapts concrete model backends to a single scoring
// interface. Every backend returns the probability that a text is fake and
// the probability that it is real.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zombar/truthlens/internal/models"
)

// Scorer scores combined news text. Implementations must be deterministic for
// identical input and must be safe for concurrent use, or be wrapped with
// Serialized.
type Scorer interface {
	Score(ctx context.Context, text string) (models.RawScore, error)
	Backend() string
}

// sumTolerance bounds how far p_fake + p_true may drift from 1
const sumTolerance = 0.02

// validate rejects scores that are not two probabilities summing to ~1
func validate(score models.RawScore) error {
	for _, p := range []float64{score.ProbabilityFake, score.ProbabilityTrue} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("probability out of range: %v", p)
		}
	}
	if sum := score.ProbabilityFake + score.ProbabilityTrue; math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("probabilities sum to %.4f", sum)
	}
	return nil
}

// fromFakeProbability builds a score from a single fake-class probability
func fromFakeProbability(pFake float64) models.RawScore {
	pFake = math.Max(0, math.Min(1, pFake))
	return models.RawScore{ProbabilityFake: pFake, ProbabilityTrue: 1 - pFake}
}

// inferenceError wraps a backend failure
func inferenceError(backend string, err error) error {
	return &models.ModelInferenceError{Backend: backend, Err: err}
}

// Serialized limits concurrent calls into a backend that is not safe for
// parallel inference. One slot gives mutex semantics.
type Serialized struct {
	next  Scorer
	slots chan struct{}
}

// NewSerialized wraps next allowing at most slots concurrent calls
func NewSerialized(next Scorer, slots int) *Serialized {
	if slots <= 0 {
		slots = 1
	}
	return &Serialized{next: next, slots: make(chan struct{}, slots)}
}

// Score waits for a free slot, honoring ctx cancellation
func (s *Serialized) Score(ctx context.Context, text string) (models.RawScore, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return models.RawScore{}, inferenceError(s.next.Backend(), ctx.Err())
	}
	defer func() { <-s.slots }()

	return s.next.Score(ctx, text)
}

// Backend returns the wrapped backend name
func (s *Serialized) Backend() string {
	return s.next.Backend()
}

// Cached memoizes scores by text hash. Only successful scores are cached;
// backends are deterministic so a hit is equivalent to a fresh call.
type Cached struct {
	next  Scorer
	cache *gocache.Cache
}

// NewCached wraps next with an in-memory cache
func NewCached(next Scorer, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Score returns the cached score for text or asks the wrapped backend
func (c *Cached) Score(ctx context.Context, text string) (models.RawScore, error) {
	key := cacheKey(text)
	if v, found := c.cache.Get(key); found {
		return v.(models.RawScore), nil
	}

	score, err := c.next.Score(ctx, text)
	if err != nil {
		return score, err
	}

	c.cache.Set(key, score, gocache.DefaultExpiration)
	return score, nil
}

// Backend returns the wrapped backend name
func (c *Cached) Backend() string {
	return c.next.Backend()
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// Validated checks every score coming out of a backend
type Validated struct {
	next Scorer
}

// NewValidated wraps next with range and sum checks
func NewValidated(next Scorer) *Validated {
	return &Validated{next: next}
}

// Score delegates and converts any failure into a ModelInferenceError
func (v *Validated) Score(ctx context.Context, text string) (models.RawScore, error) {
	score, err := v.next.Score(ctx, text)
	if err != nil {
		if models.KindOf(err) == models.KindModelInference {
			return models.RawScore{}, err
		}
		return models.RawScore{}, inferenceError(v.next.Backend(), err)
	}
	if err := validate(score); err != nil {
		return models.RawScore{}, inferenceError(v.next.Backend(), err)
	}
	return score, nil
}

// Backend returns the wrapped backend name
func (v *Validated) Backend() string {
	return v.next.Backend()
}
