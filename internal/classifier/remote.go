package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombar/truthlens/internal/models"
)

const BackendRemote = "remote"

// DefaultFakeLabels are the class names a sequence classification server
// uses for the fake class. Index 1 of a two-class head is fake.
var DefaultFakeLabels = []string{"LABEL_1", "FAKE", "1"}

// RemoteScorer calls a text classification server that answers
// {"inputs": text} with [{"label": ..., "score": ...}] (optionally nested
// one level).
type RemoteScorer struct {
	url        string
	token      string
	fakeLabels map[string]bool
	client     *http.Client
}

// NewRemoteScorer creates a scorer for the inference endpoint at url
func NewRemoteScorer(url, token string, fakeLabels []string, timeout time.Duration) (*RemoteScorer, error) {
	if url == "" {
		return nil, fmt.Errorf("remote inference URL is required")
	}
	if len(fakeLabels) == 0 {
		fakeLabels = DefaultFakeLabels
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	labels := make(map[string]bool, len(fakeLabels))
	for _, l := range fakeLabels {
		labels[strings.ToUpper(l)] = true
	}

	return &RemoteScorer{
		url:        url,
		token:      token,
		fakeLabels: labels,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score posts text to the server and reads the fake class score
func (s *RemoteScorer) Score(ctx context.Context, text string) (models.RawScore, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return models.RawScore{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return models.RawScore{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.RawScore{}, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.RawScore{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.RawScore{}, fmt.Errorf("inference server returned status %d", resp.StatusCode)
	}

	scores, err := parseLabelScores(data)
	if err != nil {
		return models.RawScore{}, err
	}
	return s.toRawScore(scores)
}

// Backend returns "remote"
func (s *RemoteScorer) Backend() string {
	return BackendRemote
}

func parseLabelScores(data []byte) ([]labelScore, error) {
	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("unexpected inference response: %w", err)
	}
	if len(nested) == 0 {
		return nil, fmt.Errorf("empty inference response")
	}
	return nested[0], nil
}

// toRawScore maps the fake class score; the other class gets the rest
func (s *RemoteScorer) toRawScore(scores []labelScore) (models.RawScore, error) {
	if len(scores) == 0 {
		return models.RawScore{}, fmt.Errorf("empty inference response")
	}

	for _, ls := range scores {
		if s.fakeLabels[strings.ToUpper(ls.Label)] {
			return fromFakeProbability(ls.Score), nil
		}
	}

	// top-k responses may only carry the winning (real) label
	if len(scores) == 1 {
		return fromFakeProbability(1 - scores[0].Score), nil
	}
	return models.RawScore{}, fmt.Errorf("no fake class label in inference response")
}
