package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultModel   = "llama3.2"
	DefaultURL     = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second

	// fixed sampling so repeated requests give the same answer
	seed = 42
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL: %q", ollamaURL)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}, nil
}

// WithTimeout overrides the per-request timeout
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}

// GenerateResponse generates a response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("ollama request", "model", c.model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool), // false
		Options: map[string]any{
			"temperature": 0,
			"seed":        seed,
		},
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	c.logger.Debug("ollama response", "model", c.model, "chars", len(result))
	return result, nil
}

// Assessment is the model's verdict on a news text
type Assessment struct {
	ProbabilityFake float64 `json:"probability_fake"`
	Reasoning       string  `json:"reasoning"`
}

// AssessCredibility asks the model how likely the text is to be fake news
func (c *Client) AssessCredibility(ctx context.Context, text string) (*Assessment, error) {
	prompt := fmt.Sprintf(`You are a fact-checking assistant for Spanish-language news. Estimate how likely the following news text is to be fabricated or misleading.

Consider:
- Sensationalist or emotionally loaded wording
- Claims without attributable sources
- Implausible statistics or events
- Style typical of satire or clickbait

The text has been lowercased and stripped of punctuation, links and mentions.

Provide your assessment as a JSON object with:
- probability_fake: number between 0.0 (certainly real) and 1.0 (certainly fake)
- reasoning: one short sentence

Text:
%s

Return ONLY the JSON object, nothing else:`, text)

	response, err := c.GenerateResponse(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseAssessment(response)
}

// parseAssessment extracts the first JSON object in the model response
func parseAssessment(response string) (*Assessment, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var raw struct {
		ProbabilityFake *float64 `json:"probability_fake"`
		Reasoning       string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse assessment JSON: %w", err)
	}
	if raw.ProbabilityFake == nil {
		return nil, fmt.Errorf("assessment is missing probability_fake")
	}
	if p := *raw.ProbabilityFake; p < 0 || p > 1 {
		return nil, fmt.Errorf("probability_fake out of range: %v", p)
	}

	return &Assessment{
		ProbabilityFake: *raw.ProbabilityFake,
		Reasoning:       raw.Reasoning,
	}, nil
}
