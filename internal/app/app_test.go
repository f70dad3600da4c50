package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/truthlens/internal/classifier"
	"github.com/zombar/truthlens/internal/config"
	"github.com/zombar/truthlens/internal/models"
)

const lexicalModel = `{
	"version": "test",
	"ngram_max": 1,
	"intercept": -0.5,
	"weights": {"milagrosa": 4.0, "cura": 2.5, "gobierno": -1.5, "presupuesto": -2.0},
	"idf": {"milagrosa": 2.0, "cura": 1.5, "gobierno": 1.0, "presupuesto": 1.2}
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(modelPath, []byte(lexicalModel), 0o644))

	cfg := config.Default()
	cfg.Classifier.Backend = classifier.BackendLexical
	cfg.Classifier.ModelPath = modelPath
	cfg.Database.Path = filepath.Join(dir, "truthlens.db")
	return &cfg
}

func TestNewAndClose(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, classifier.BackendLexical, a.Scorer.Backend())
	assert.Nil(t, a.OCR, "no OCR key configured")
	assert.Nil(t, a.Queue, "no redis configured")

	_, err = a.NewWorker()
	assert.Error(t, err)

	require.NoError(t, a.Close(context.Background()))
}

func TestNewFailsOnBadClassifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier")
}

func TestHandlerServesPredictions(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	server := httptest.NewServer(a.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/predict", "application/json",
		strings.NewReader(`{"title":"Cura milagrosa","text":"Una cura milagrosa elimina todas las enfermedades."}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Prediction string           `json:"prediction"`
		ModelInfo  models.ModelInfo `json:"model_info"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tfidf-logistic", body.ModelInfo.Type)
	assert.Contains(t, []string{"Fake", "Real"}, body.Prediction)

	snap, err := a.Stats.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Total)

	metricsResp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestStatsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Stats.Record(ctx, true, true))
	require.NoError(t, a.Stats.Record(ctx, false, false))
	require.NoError(t, a.Close(ctx))

	b, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close(ctx)

	snap, err := b.Stats.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Total)
	assert.Equal(t, int64(1), snap.TotalFakes)
	assert.Equal(t, int64(1), snap.HighConfidence)
}

func TestMetricsEndpoint(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	h := a.Handler()

	predict := httptest.NewRequest(http.MethodPost, "/predict",
		strings.NewReader(`{"text":"El gobierno aprueba el presupuesto anual del ministerio."}`))
	h.ServeHTTP(httptest.NewRecorder(), predict)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	body := w.Body.String()
	for _, metric := range []string{
		"go_goroutines",
		"process_start_time_seconds",
		"truthlens_predictions_total",
		"truthlens_pipeline_duration_seconds",
		"truthlens_db_open_connections",
	} {
		assert.Contains(t, body, metric)
	}
}

func TestStatsSharedBetweenProcesses(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	server, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	worker, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, server.Stats.Record(ctx, true, false))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, worker.Stats.Record(ctx, false, false))
	}

	require.NoError(t, server.Close(ctx))
	require.NoError(t, worker.Close(ctx))

	restarted, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer restarted.Close(ctx)

	snap, err := restarted.Stats.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snap.Total)
	assert.Equal(t, int64(3), snap.TotalFakes)
}
