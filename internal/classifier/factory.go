package classifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/zombar/truthlens/internal/ollama"
)

// Config selects and configures a scoring backend
type Config struct {
	Backend       string
	Model         string
	URL           string
	APIKey        string
	ModelPath     string
	FakeLabels    []string
	Timeout       time.Duration
	CacheTTL      time.Duration
	MaxConcurrent int
}

// New builds the configured backend wrapped with validation, concurrency
// limits and, when CacheTTL > 0, a result cache.
func New(cfg Config) (Scorer, error) {
	base, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	var s Scorer = NewValidated(base)
	if cfg.MaxConcurrent >= 0 {
		s = NewSerialized(s, cfg.MaxConcurrent)
	}
	if cfg.CacheTTL > 0 {
		s = NewCached(s, cfg.CacheTTL)
	}
	return s, nil
}

func newBackend(cfg Config) (Scorer, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendLexical:
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("lexical backend requires a model path")
		}
		m, err := LoadLexicalModel(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		return NewLexicalScorer(m), nil

	case BackendRemote:
		return NewRemoteScorer(cfg.URL, cfg.APIKey, cfg.FakeLabels, cfg.Timeout)

	case BackendOllama, "":
		client, err := ollama.New(cfg.URL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewOllamaScorer(client.WithTimeout(cfg.Timeout)), nil

	case BackendOpenAI:
		return NewOpenAIScorer(cfg.APIKey, cfg.URL, cfg.Model, cfg.Timeout)

	default:
		return nil, fmt.Errorf("unknown classifier backend: %s (supported: lexical, remote, ollama, openai)", cfg.Backend)
	}
}

// ModelType describes the model family behind a backend name
func ModelType(backend string) string {
	switch backend {
	case BackendLexical:
		return "tfidf-logistic"
	case BackendRemote:
		return "transformer"
	case BackendOllama, BackendOpenAI:
		return "llm"
	default:
		return "unknown"
	}
}
