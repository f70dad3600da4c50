package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteScorer(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantFake float64
		wantErr  bool
	}{
		{
			name:     "flat response",
			status:   http.StatusOK,
			body:     `[{"label":"LABEL_0","score":0.2},{"label":"LABEL_1","score":0.8}]`,
			wantFake: 0.8,
		},
		{
			name:     "nested response",
			status:   http.StatusOK,
			body:     `[[{"label":"LABEL_1","score":0.35},{"label":"LABEL_0","score":0.65}]]`,
			wantFake: 0.35,
		},
		{
			name:     "only the real label",
			status:   http.StatusOK,
			body:     `[{"label":"LABEL_0","score":0.9}]`,
			wantFake: 0.1,
		},
		{
			name:    "server error",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":"loading"}`,
			wantErr: true,
		},
		{
			name:    "garbage",
			status:  http.StatusOK,
			body:    `{"unexpected": true}`,
			wantErr: true,
		},
		{
			name:    "unknown labels",
			status:  http.StatusOK,
			body:    `[{"label":"A","score":0.5},{"label":"B","score":0.5}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s, err := NewRemoteScorer(server.URL, "secret", nil, time.Second)
			require.NoError(t, err)

			score, err := s.Score(context.Background(), "texto de prueba")
			assert.Equal(t, "texto de prueba", got["inputs"])
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantFake, score.ProbabilityFake, 1e-9)
			assert.InDelta(t, 1-tt.wantFake, score.ProbabilityTrue, 1e-9)
		})
	}
}

func TestNewRemoteScorer_RequiresURL(t *testing.T) {
	_, err := NewRemoteScorer("", "", nil, 0)
	assert.Error(t, err)
}
