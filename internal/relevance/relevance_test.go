package relevance

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/config"
)

func TestOverlapScorer(t *testing.T) {
	s := NewOverlapScorer()
	ctx := context.Background()

	tests := []struct {
		query, candidate string
		expected         float64
	}{
		{"How do I reset my password?", "how do i reset my password?", 1.0},
		{"reset password", "How to reset the password", 1.0},
		{"reset password", "reset email", 0.5},
		{"vacation policy", "expense report", 0.0},
		{"", "anything", 0.0},
		{"パスワード", "パスワードを変更", 1.0},
		{"有給休暇", "休暇申請", 1.0 / 3.0},
	}
	for _, tt := range tests {
		got, err := s.Score(ctx, tt.query, tt.candidate)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, got, 0.001, "%q vs %q", tt.query, tt.candidate)
	}
	assert.Equal(t, "overlap", s.Name())
}

func TestOverlapScorer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOverlapScorer().Score(ctx, "a", "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisabled(t *testing.T) {
	got, err := Disabled{}.Score(context.Background(), "q", "q")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestNew(t *testing.T) {
	s, err := New(config.RelevanceConfig{Provider: "overlap"})
	require.NoError(t, err)
	assert.Equal(t, "overlap", s.Name())

	s, err = New(config.RelevanceConfig{Provider: "disabled"})
	require.NoError(t, err)
	assert.Equal(t, "disabled", s.Name())

	_, err = New(config.RelevanceConfig{Provider: "bogus"})
	assert.Error(t, err)

	t.Setenv("FAQCACHE_TEST_RERANK_KEY", "")
	_, err = New(config.RelevanceConfig{Provider: "http", Endpoint: "http://x", APIKeyEnv: "FAQCACHE_TEST_RERANK_KEY"})
	assert.Error(t, err, "missing key must fail at construction")
}

func newRerankServer(t *testing.T, status int, score float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var req rerankRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, []string{"stored question"}, req.Documents)
		assert.Equal(t, "rerank-test", req.Model)

		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{{Index: 0, RelevanceScore: score}}})
		} else {
			_, _ = w.Write([]byte(`{"message":"boom"}`))
		}
	}))
}

func httpScorer(t *testing.T, url string) *HTTPScorer {
	t.Helper()
	t.Setenv("FAQCACHE_TEST_RERANK_KEY", "secret")
	s, err := NewHTTPScorer(config.RelevanceConfig{
		Provider:  "http",
		Endpoint:  url,
		APIKeyEnv: "FAQCACHE_TEST_RERANK_KEY",
		Model:     "rerank-test",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return s
}

func TestHTTPScorer(t *testing.T) {
	srv := newRerankServer(t, http.StatusOK, 0.73)
	defer srv.Close()

	got, err := httpScorer(t, srv.URL).Score(context.Background(), "query", "stored question")
	require.NoError(t, err)
	assert.InDelta(t, 0.73, got, 1e-9)
}

func TestHTTPScorer_SquashesLogits(t *testing.T) {
	srv := newRerankServer(t, http.StatusOK, 3.0)
	defer srv.Close()

	got, err := httpScorer(t, srv.URL).Score(context.Background(), "query", "stored question")
	require.NoError(t, err)
	assert.InDelta(t, 0.9526, got, 1e-3)
}

func TestHTTPScorer_UpstreamError(t *testing.T) {
	srv := newRerankServer(t, http.StatusInternalServerError, 0)
	defer srv.Close()

	_, err := httpScorer(t, srv.URL).Score(context.Background(), "query", "stored question")
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeRelevanceUpstreamFailure))
	assert.Equal(t, http.StatusBadGateway, cacheerr.HTTPStatus(err))
}
