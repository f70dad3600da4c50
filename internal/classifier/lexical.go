package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/zombar/truthlens/internal/models"
)

const BackendLexical = "lexical"

// LexicalModel is a logistic regression over tf-idf weighted n-grams.
// A positive logit leans towards the fake class.
type LexicalModel struct {
	Version   string             `json:"version"`
	NGramMax  int                `json:"ngram_max"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
	IDF       map[string]float64 `json:"idf"`
}

// LoadLexicalModel reads a model exported as JSON
func LoadLexicalModel(path string) (*LexicalModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexical model: %w", err)
	}

	var m LexicalModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse lexical model: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("lexical model %s has no weights", path)
	}
	if m.NGramMax <= 0 {
		m.NGramMax = 1
	}
	return &m, nil
}

// LexicalScorer scores text with an in-process LexicalModel. It only reads
// the model so it is safe for concurrent use.
type LexicalScorer struct {
	model *LexicalModel
}

// NewLexicalScorer creates a scorer for m
func NewLexicalScorer(m *LexicalModel) *LexicalScorer {
	return &LexicalScorer{model: m}
}

// Score computes the fake probability of normalized text
func (s *LexicalScorer) Score(ctx context.Context, text string) (models.RawScore, error) {
	if err := ctx.Err(); err != nil {
		return models.RawScore{}, err
	}

	features := s.model.features(text)
	z := s.model.Intercept
	for term, value := range features {
		z += s.model.Weights[term] * value
	}

	return fromFakeProbability(sigmoid(z)), nil
}

// Backend returns "lexical"
func (s *LexicalScorer) Backend() string {
	return BackendLexical
}

// features returns l2-normalized tf-idf values for known terms
func (m *LexicalModel) features(text string) map[string]float64 {
	tokens := strings.Fields(text)
	counts := make(map[string]float64)
	for n := 1; n <= m.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := strings.Join(tokens[i:i+n], " ")
			if _, known := m.Weights[term]; known {
				counts[term]++
			}
		}
	}

	var norm float64
	for term, tf := range counts {
		idf := 1.0
		if v, ok := m.IDF[term]; ok {
			idf = v
		}
		counts[term] = tf * idf
		norm += counts[term] * counts[term]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for term := range counts {
			counts[term] /= norm
		}
	}
	return counts
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
