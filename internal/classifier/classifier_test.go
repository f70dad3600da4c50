package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/truthlens/internal/models"
)

type stubScorer struct {
	score models.RawScore
	err   error
	calls atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (s *stubScorer) Score(ctx context.Context, text string) (models.RawScore, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.score, s.err
}

func (s *stubScorer) Backend() string { return "stub" }

func TestValidated(t *testing.T) {
	tests := []struct {
		name    string
		score   models.RawScore
		err     error
		wantErr bool
	}{
		{name: "valid", score: models.RawScore{ProbabilityFake: 0.8, ProbabilityTrue: 0.2}},
		{name: "small rounding drift", score: models.RawScore{ProbabilityFake: 0.505, ProbabilityTrue: 0.5}},
		{name: "negative", score: models.RawScore{ProbabilityFake: -0.1, ProbabilityTrue: 1.1}, wantErr: true},
		{name: "does not sum to one", score: models.RawScore{ProbabilityFake: 0.9, ProbabilityTrue: 0.9}, wantErr: true},
		{name: "backend error", err: errors.New("boom"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidated(&stubScorer{score: tt.score, err: tt.err})
			score, err := v.Score(context.Background(), "texto")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, models.KindModelInference, models.KindOf(err))
				var mie *models.ModelInferenceError
				require.ErrorAs(t, err, &mie)
				assert.Equal(t, "stub", mie.Backend)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.score, score)
		})
	}
}

func TestValidated_DoesNotDoubleWrap(t *testing.T) {
	inner := &models.ModelInferenceError{Backend: "ollama", Err: errors.New("down")}
	v := NewValidated(&stubScorer{err: inner})

	_, err := v.Score(context.Background(), "texto")
	assert.Same(t, inner, err)
}

func TestSerialized_LimitsConcurrency(t *testing.T) {
	stub := &stubScorer{
		score: models.RawScore{ProbabilityFake: 0.5, ProbabilityTrue: 0.5},
		delay: 5 * time.Millisecond,
	}
	s := NewSerialized(stub, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Score(context.Background(), "texto")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), stub.calls.Load())
	assert.Equal(t, int32(1), stub.maxInFlight.Load())
}

func TestSerialized_ContextCancelled(t *testing.T) {
	stub := &stubScorer{delay: 50 * time.Millisecond}
	s := NewSerialized(stub, 1)

	go func() { _, _ = s.Score(context.Background(), "slow") }()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Score(ctx, "waiting")
	require.Error(t, err)
	assert.Equal(t, models.KindModelInference, models.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCached(t *testing.T) {
	stub := &stubScorer{score: models.RawScore{ProbabilityFake: 0.3, ProbabilityTrue: 0.7}}
	c := NewCached(stub, time.Minute)

	first, err := c.Score(context.Background(), "misma noticia")
	require.NoError(t, err)
	second, err := c.Score(context.Background(), "misma noticia")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), stub.calls.Load())

	_, err = c.Score(context.Background(), "otra noticia")
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	stub := &stubScorer{err: errors.New("unavailable")}
	c := NewCached(stub, time.Minute)

	_, err := c.Score(context.Background(), "texto")
	require.Error(t, err)
	_, err = c.Score(context.Background(), "texto")
	require.Error(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "bert"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown classifier backend")
}

func TestNew_LexicalRequiresModel(t *testing.T) {
	_, err := New(Config{Backend: BackendLexical})
	require.Error(t, err)
}

func TestNew_WrapsBackend(t *testing.T) {
	s, err := New(Config{Backend: BackendRemote, URL: "http://localhost:1", CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, s)
	assert.Equal(t, BackendRemote, s.Backend())
}

func TestModelType(t *testing.T) {
	assert.Equal(t, "tfidf-logistic", ModelType(BackendLexical))
	assert.Equal(t, "transformer", ModelType(BackendRemote))
	assert.Equal(t, "llm", ModelType(BackendOllama))
	assert.Equal(t, "llm", ModelType(BackendOpenAI))
	assert.Equal(t, "unknown", ModelType("other"))
}
