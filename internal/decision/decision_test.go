package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zombar/truthlens/internal/models"
)

func TestTierBands(t *testing.T) {
	tests := []struct {
		name      string
		diff      float64
		tier      models.ConfidenceTier
		threshold float64
	}{
		{"zero margin", 0, models.TierLow, 0.85},
		{"just below medium", 0.2999, models.TierLow, 0.85},
		{"medium lower bound", 0.3, models.TierMedium, 0.75},
		{"just below high", 0.4999, models.TierMedium, 0.75},
		{"high lower bound", 0.5, models.TierHigh, 0.65},
		{"certain", 1.0, models.TierHigh, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, threshold := Tier(tt.diff)
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, tt.threshold, threshold)
		})
	}
}

func TestDecideHighMarginFake(t *testing.T) {
	d := NewEngine(DefaultThreshold).Decide(models.RawScore{ProbabilityFake: 0.9, ProbabilityTrue: 0.1})

	assert.Equal(t, models.TierHigh, d.ConfidenceTier)
	assert.Equal(t, 0.65, d.ThresholdUsed)
	assert.Equal(t, models.LabelFake, d.Label)
	assert.Equal(t, models.LabelFake, d.RawLabel)
	assert.Equal(t, 0.9, d.Confidence)
	assert.InDelta(t, 0.8, d.ProbabilityDifference, 1e-9)
	assert.True(t, d.CalibrationApplied)
}

func TestDecideNarrowMarginDisagreesWithArgmax(t *testing.T) {
	d := NewEngine(DefaultThreshold).Decide(models.RawScore{ProbabilityFake: 0.55, ProbabilityTrue: 0.45})

	assert.Equal(t, models.TierLow, d.ConfidenceTier)
	assert.Equal(t, 0.85, d.ThresholdUsed)
	assert.Equal(t, models.LabelReal, d.Label)
	assert.Equal(t, models.LabelFake, d.RawLabel)
	assert.Equal(t, 0.45, d.Confidence)
}

func TestDecideMediumMargin(t *testing.T) {
	engine := NewEngine(DefaultThreshold)

	fake := engine.Decide(models.RawScore{ProbabilityFake: 0.72, ProbabilityTrue: 0.28})
	assert.Equal(t, models.TierMedium, fake.ConfidenceTier)
	assert.Equal(t, models.LabelReal, fake.Label, "0.72 is below the 0.75 medium threshold")

	genuine := engine.Decide(models.RawScore{ProbabilityFake: 0.3, ProbabilityTrue: 0.7})
	assert.Equal(t, models.TierMedium, genuine.ConfidenceTier)
	assert.Equal(t, models.LabelReal, genuine.Label)
	assert.Equal(t, models.LabelReal, genuine.RawLabel)
	assert.Equal(t, 0.7, genuine.Confidence)
}

func TestDecideThresholdIsInclusive(t *testing.T) {
	d := NewEngine(DefaultThreshold).Decide(models.RawScore{ProbabilityFake: 0.85, ProbabilityTrue: 0.65})

	assert.Equal(t, models.TierLow, d.ConfidenceTier)
	assert.Equal(t, models.LabelFake, d.Label)
}

func TestDecideConfidenceIsMaxForHighMargin(t *testing.T) {
	d := NewEngine(DefaultThreshold).Decide(models.RawScore{ProbabilityFake: 0.1, ProbabilityTrue: 0.9})

	assert.Equal(t, models.LabelReal, d.Label)
	assert.Equal(t, 0.9, d.Confidence)
}

func TestCalibrationApplied(t *testing.T) {
	score := models.RawScore{ProbabilityFake: 0.95, ProbabilityTrue: 0.05}

	withDefault := NewEngine(0.7).Decide(score)
	assert.True(t, withDefault.CalibrationApplied)

	matching := NewEngine(0.65).Decide(score)
	assert.False(t, matching.CalibrationApplied)
	assert.Equal(t, withDefault.Label, matching.Label)
}

func TestNewEngineDefault(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewEngine(0).DefaultThreshold())
	assert.Equal(t, 0.6, NewEngine(0.6).DefaultThreshold())
}

func TestEndToEndScenarioDecision(t *testing.T) {
	score := models.RawScore{ProbabilityFake: 0.95, ProbabilityTrue: 0.05}

	for _, def := range []float64{0.7, 0.65} {
		d := NewEngine(def).Decide(score)
		assert.Equal(t, models.TierHigh, d.ConfidenceTier)
		assert.Equal(t, 0.65, d.ThresholdUsed)
		assert.Equal(t, models.LabelFake, d.Label)
		assert.Equal(t, models.LabelFake, d.RawLabel)
		assert.Equal(t, 0.95, d.Confidence)
		assert.Equal(t, def != 0.65, d.CalibrationApplied, "default %.2f", def)
	}
}

func TestFallback(t *testing.T) {
	d := Fallback()
	assert.Equal(t, models.LabelError, d.Label)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Equal(t, 0.5, d.ProbabilityFake)
	assert.Equal(t, 0.5, d.ProbabilityTrue)
}
