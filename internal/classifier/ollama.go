package classifier

import (
	"context"

	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/ollama"
)

const BackendOllama = "ollama"

// OllamaScorer asks a local LLM for a fake probability
type OllamaScorer struct {
	client *ollama.Client
}

// NewOllamaScorer creates a scorer backed by client
func NewOllamaScorer(client *ollama.Client) *OllamaScorer {
	return &OllamaScorer{client: client}
}

func (s *OllamaScorer) Score(ctx context.Context, text string) (models.RawScore, error) {
	assessment, err := s.client.AssessCredibility(ctx, text)
	if err != nil {
		return models.RawScore{}, err
	}
	return fromFakeProbability(assessment.ProbabilityFake), nil
}

func (s *OllamaScorer) Backend() string {
	return BackendOllama
}
