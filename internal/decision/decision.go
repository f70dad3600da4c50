// Package decision converts raw classifier probabilities into a calibrated
// verdict and a reader-facing recommendation.
package decision

import (
	"math"

	"github.com/zombar/truthlens/internal/models"
)

// DefaultThreshold is the baseline cutoff that calibration is reported against
const DefaultThreshold = 0.7

// Margin bands and the fake-news threshold each one requires. A narrow margin
// between the two probabilities raises the bar for calling something fake.
const (
	MediumMargin = 0.3
	HighMargin   = 0.5

	LowTierThreshold    = 0.85
	MediumTierThreshold = 0.75
	HighTierThreshold   = 0.65
)

// Engine applies margin-based thresholds to raw scores
type Engine struct {
	defaultThreshold float64
}

// NewEngine creates an Engine. A non-positive default falls back to
// DefaultThreshold.
func NewEngine(defaultThreshold float64) *Engine {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultThreshold
	}
	return &Engine{defaultThreshold: defaultThreshold}
}

// DefaultThreshold returns the baseline the engine compares against
func (e *Engine) DefaultThreshold() float64 {
	return e.defaultThreshold
}

// Decide builds a Decision from a raw score
func (e *Engine) Decide(score models.RawScore) models.Decision {
	pFake, pTrue := score.ProbabilityFake, score.ProbabilityTrue
	diff := math.Abs(pFake - pTrue)
	tier, threshold := Tier(diff)

	d := models.Decision{
		Label:                 models.LabelReal,
		Confidence:            pTrue,
		ProbabilityFake:       pFake,
		ProbabilityTrue:       pTrue,
		ThresholdUsed:         threshold,
		RawLabel:              models.LabelReal,
		ConfidenceTier:        tier,
		ProbabilityDifference: diff,
		CalibrationApplied:    threshold != e.defaultThreshold,
	}

	if pFake >= threshold {
		d.Label = models.LabelFake
		d.Confidence = pFake
	}
	if pFake > pTrue {
		d.RawLabel = models.LabelFake
	}

	return d
}

// Tier maps a probability margin to its confidence tier and threshold
func Tier(diff float64) (models.ConfidenceTier, float64) {
	switch {
	case diff < MediumMargin:
		return models.TierLow, LowTierThreshold
	case diff < HighMargin:
		return models.TierMedium, MediumTierThreshold
	default:
		return models.TierHigh, HighTierThreshold
	}
}

// Fallback is the neutral decision returned when the classifier fails
func Fallback() models.Decision {
	return models.Decision{
		Label:           models.LabelError,
		Confidence:      0,
		ProbabilityFake: 0.5,
		ProbabilityTrue: 0.5,
		RawLabel:        models.LabelError,
		ConfidenceTier:  models.TierLow,
	}
}
