package relevance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"

	"github.com/goccy/go-json"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/config"
)

// HTTPScorer calls a Cohere-compatible rerank endpoint as a cross-encoder.
type HTTPScorer struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewHTTPScorer reads the API key from the environment variable named in cfg.
func NewHTTPScorer(cfg config.RelevanceConfig) (*HTTPScorer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("relevance endpoint is required for the http provider")
	}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
	}
	return &HTTPScorer{
		endpoint: cfg.Endpoint,
		apiKey:   apiKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Score posts a single-document rerank request and returns its relevance score.
func (s *HTTPScorer) Score(ctx context.Context, query, candidate string) (float64, error) {
	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: []string{candidate},
		Model:     s.model,
		TopN:      1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, cacheerr.Wrap(err, cacheerr.CodeRelevanceUpstreamFailure, "rerank request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, cacheerr.Wrap(err, cacheerr.CodeRelevanceUpstreamFailure, "failed to read rerank response")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, cacheerr.New(cacheerr.CodeRelevanceUpstreamFailure,
			fmt.Sprintf("rerank API returned status %d: %s", resp.StatusCode, string(data)),
			cacheerr.Field("status", resp.StatusCode))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, cacheerr.Wrap(err, cacheerr.CodeRelevanceUpstreamFailure, "failed to parse rerank response")
	}
	for _, r := range parsed.Results {
		if r.Index == 0 {
			return squash(r.RelevanceScore), nil
		}
	}
	return 0, cacheerr.New(cacheerr.CodeRelevanceUpstreamFailure, "rerank response has no result for the candidate")
}

func (s *HTTPScorer) Name() string {
	return "http:" + s.model
}

// squash maps raw cross-encoder logits into [0,1]; scores already in range pass through.
func squash(v float64) float64 {
	if v >= 0 && v <= 1 {
		return v
	}
	return 1 / (1 + math.Exp(-v))
}
