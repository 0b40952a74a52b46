package ml

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fastHTTPConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        2,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      5 * time.Millisecond,
		CircuitBreakerMax: 2,
	}
}

func TestHTTPScorer_Score(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "xgb", req.Model)
		assert.Equal(t, testFeatureNames, req.FeatureNames)

		scores := make([]float64, len(req.Features))
		for i, row := range req.Features {
			scores[i] = row[0] * 10
		}
		_ = json.NewEncoder(w).Encode(ScoreResponse{Scores: scores})
	}))
	defer server.Close()

	s := NewHTTPScorer("xgb", server.URL, "secret", testFeatureNames, fastHTTPConfig(), quietLogger())
	defer s.Close()

	scores, err := s.Score(context.Background(), [][]float64{{0.1, 0, 0}, {0.5, 0, 0}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 5}, scores, 1e-9)
	assert.Equal(t, "http", s.Kind())
}

func TestHTTPScorer_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ScoreResponse{Scores: []float64{0.3}})
	}))
	defer server.Close()

	s := NewHTTPScorer("xgb", server.URL, "", testFeatureNames, fastHTTPConfig(), quietLogger())

	scores, err := s.Score(context.Background(), [][]float64{{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3}, scores)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPScorer_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad feature width", http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewHTTPScorer("xgb", server.URL, "", testFeatureNames, fastHTTPConfig(), quietLogger())

	_, err := s.Score(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidScores)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPScorer_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewHTTPScorer("xgb", server.URL, "", testFeatureNames, fastHTTPConfig(), quietLogger())

	_, err := s.Score(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, ErrModelServerUnavailable)
}

func TestHTTPScorer_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scores": "high"}`))
	}))
	defer server.Close()

	s := NewHTTPScorer("xgb", server.URL, "", testFeatureNames, fastHTTPConfig(), quietLogger())

	_, err := s.Score(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidScores)
}

func TestRateLimitedHTTPClient_CircuitBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := fastHTTPConfig()
	cfg.MaxRetries = 0
	client := NewRateLimitedHTTPClient(cfg, quietLogger())

	for i := 0; i < cfg.CircuitBreakerMax; i++ {
		_, err := client.Post(context.Background(), url, "application/json", nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := client.Post(context.Background(), url, "application/json", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	client.Reset()
	_, err = client.Post(context.Background(), url, "application/json", nil)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}
