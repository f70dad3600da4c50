package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/zombar/truthlens/internal/models"
)

const BackendOpenAI = "openai"

const openAISystemPrompt = `You are a fact-checking assistant for Spanish-language news. ` +
	`Reply with a single JSON object {"probability_fake": <number between 0 and 1>} and nothing else.`

// OpenAIScorer scores text with an OpenAI compatible chat completion API
type OpenAIScorer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIScorer creates a scorer; baseURL may point at any compatible server
func NewOpenAIScorer(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIScorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIScorer{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

func (s *OpenAIScorer) Score(ctx context.Context, text string) (models.RawScore, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   50,
		Temperature: 0,
		Seed:        &openAISeed,
	})
	if err != nil {
		return models.RawScore{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.RawScore{}, fmt.Errorf("no response from OpenAI")
	}

	pFake, err := parseProbability(resp.Choices[0].Message.Content)
	if err != nil {
		return models.RawScore{}, err
	}
	return fromFakeProbability(pFake), nil
}

func (s *OpenAIScorer) Backend() string {
	return BackendOpenAI
}

var openAISeed = 42

func parseProbability(content string) (float64, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return 0, fmt.Errorf("no JSON object in completion: %q", content)
	}

	var out struct {
		ProbabilityFake *float64 `json:"probability_fake"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return 0, fmt.Errorf("failed to parse completion: %w", err)
	}
	if out.ProbabilityFake == nil {
		return 0, fmt.Errorf("completion is missing probability_fake")
	}
	if p := *out.ProbabilityFake; p < 0 || p > 1 {
		return 0, fmt.Errorf("probability_fake out of range: %v", p)
	}
	return *out.ProbabilityFake, nil
}
