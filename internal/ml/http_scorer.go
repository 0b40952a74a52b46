package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ScoreRequest is the payload posted to a remote model server
type ScoreRequest struct {
	Model        string      `json:"model"`
	FeatureNames []string    `json:"feature_names"`
	Features     [][]float64 `json:"features"`
}

// ScoreResponse is the model server reply
type ScoreResponse struct {
	Scores  []float64 `json:"scores"`
	Version string    `json:"version,omitempty"`
}

// HTTPScorer calls a model served over HTTP
type HTTPScorer struct {
	name         string
	url          string
	token        string
	featureNames []string
	client       *RateLimitedHTTPClient
	logger       logrus.FieldLogger
}

// NewHTTPScorer creates a scorer posting to url
func NewHTTPScorer(name, url, token string, featureNames []string, cfg HTTPClientConfig, logger logrus.FieldLogger) *HTTPScorer {
	return &HTTPScorer{
		name:         name,
		url:          url,
		token:        token,
		featureNames: featureNames,
		client:       NewRateLimitedHTTPClient(cfg, logger),
		logger:       logger,
	}
}

// Name returns the model name
func (s *HTTPScorer) Name() string { return s.name }

// Kind returns the scorer kind
func (s *HTTPScorer) Kind() string { return "http" }

// Score posts the batch and decodes one score per row
func (s *HTTPScorer) Score(ctx context.Context, rows [][]float64) ([]float64, error) {
	body, err := json.Marshal(ScoreRequest{Model: s.name, FeatureNames: s.featureNames, Features: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.WithFields(logrus.Fields{
			"model":  s.name,
			"status": resp.StatusCode,
		}).Warn("Model server returned an error")
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrModelServerUnavailable, resp.StatusCode, bytes.TrimSpace(snippet))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidScores, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %v: %w", err, ErrInvalidScores)
	}

	return out.Scores, nil
}

// Close releases idle connections
func (s *HTTPScorer) Close() error {
	return s.client.Close()
}
