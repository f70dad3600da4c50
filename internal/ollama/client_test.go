package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		ollamaURL     string
		model         string
		expectError   bool
		expectedModel string
	}{
		{
			name:          "default values",
			ollamaURL:     "",
			model:         "",
			expectError:   false,
			expectedModel: DefaultModel,
		},
		{
			name:          "custom URL and model",
			ollamaURL:     "http://custom-ollama:11434",
			model:         "qwen2.5",
			expectError:   false,
			expectedModel: "qwen2.5",
		},
		{
			name:          "custom URL, default model",
			ollamaURL:     "http://localhost:11434",
			model:         "",
			expectError:   false,
			expectedModel: DefaultModel,
		},
		{
			name:        "invalid URL",
			ollamaURL:   "://invalid-url",
			model:       "test",
			expectError: true,
		},
		{
			name:        "missing scheme",
			ollamaURL:   "ollama",
			model:       "test",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.model)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.Model() != tt.expectedModel {
				t.Errorf("Expected model %s, got %s", tt.expectedModel, client.Model())
			}
			if client.timeout != DefaultTimeout {
				t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.timeout)
			}
		})
	}
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		expected    float64
		expectError bool
	}{
		{
			name:     "plain object",
			response: `{"probability_fake": 0.82, "reasoning": "sin fuentes"}`,
			expected: 0.82,
		},
		{
			name:     "object wrapped in prose",
			response: "Here is my answer:\n{\"probability_fake\": 0.1}\nThanks",
			expected: 0.1,
		},
		{
			name:     "zero is a valid answer",
			response: `{"probability_fake": 0}`,
			expected: 0,
		},
		{
			name:        "missing field",
			response:    `{"reasoning": "unsure"}`,
			expectError: true,
		},
		{
			name:        "out of range",
			response:    `{"probability_fake": 1.7}`,
			expectError: true,
		},
		{
			name:        "no object",
			response:    "I cannot answer that",
			expectError: true,
		},
		{
			name:        "malformed object",
			response:    `{"probability_fake": }`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseAssessment(tt.response)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, got %+v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.ProbabilityFake != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result.ProbabilityFake)
			}
		})
	}
}

func TestAssessCredibility(t *testing.T) {
	var gotRequest map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotRequest)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    "test",
			"response": `{"probability_fake": 0.9, "reasoning": "clickbait"}`,
			"done":     true,
		})
	}))
	defer server.Close()

	client, err := New(server.URL, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := client.AssessCredibility(context.Background(), "el gobierno anuncia medidas")
	if err != nil {
		t.Fatalf("AssessCredibility: %v", err)
	}
	if result.ProbabilityFake != 0.9 {
		t.Errorf("Expected 0.9, got %v", result.ProbabilityFake)
	}
	if result.Reasoning != "clickbait" {
		t.Errorf("Expected reasoning to be passed through, got %q", result.Reasoning)
	}

	options, ok := gotRequest["options"].(map[string]any)
	if !ok {
		t.Fatalf("Expected options in request, got %v", gotRequest)
	}
	if options["temperature"] != float64(0) {
		t.Errorf("Expected temperature 0, got %v", options["temperature"])
	}
}

func TestAssessCredibility_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client, err := New(server.URL, "missing")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.AssessCredibility(context.Background(), "texto"); err == nil {
		t.Error("Expected error from failing server")
	}
}
