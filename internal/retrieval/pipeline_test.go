package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/config"
	"github.com/hyperjump/faqcache/internal/embedding/embeddingtest"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/relevance"
	"github.com/hyperjump/faqcache/internal/storage"
)

const coll = "faq_collection"

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(ctx context.Context, query, candidate string) (float64, error) {
	args := m.Called(ctx, query, candidate)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockScorer) Name() string { return "mock" }

func newStore(t *testing.T, entries ...models.CacheEntry) *storage.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	s, err := storage.Open(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.GetOrCreate(ctx, coll, "static:2")
	require.NoError(t, err)
	require.NoError(t, s.SafeAdd(ctx, coll, entries))
	return s
}

func cacheCfg() config.CacheConfig {
	return config.CacheConfig{TopK: 3, MaxDistance: 4.0}
}

func TestPipeline_HitOnStoredQuestion(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "How do I reset my password?", Answer: "Use the portal.", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2).Set("How do I reset my password?", 1, 0)
	p := New(store, emb, relevance.NewOverlapScorer(), cacheCfg())

	res := p.Query(context.Background(), coll, "How do I reset my password?", 0.8, 0.5)
	require.Equal(t, models.OutcomeHit, res.Outcome, res.Message)
	assert.True(t, res.CacheHit)
	assert.Equal(t, "Use the portal.", res.Answer)
	assert.Equal(t, "How do I reset my password?", res.Question)
	require.NotNil(t, res.Confidence.VectorSimilarity)
	assert.InDelta(t, 1.0, *res.Confidence.VectorSimilarity, 1e-6)
	require.NotNil(t, res.Confidence.RelevanceScore)
	assert.InDelta(t, 1.0, *res.Confidence.RelevanceScore, 1e-6)
}

func TestPipeline_RelevanceGateIndependentOfVectorGate(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "stored", Answer: "a", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2).Set("query", 1, 0.1)
	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, "query", "stored").Return(0.3, nil)
	p := New(store, emb, scorer, cacheCfg())

	res := p.Query(context.Background(), coll, "query", 0.8, 0.5)
	assert.Equal(t, models.OutcomeMiss, res.Outcome)
	assert.Equal(t, models.ReasonRelevanceScoreTooLow, res.Reason)
	assert.False(t, res.CacheHit)
	assert.InDelta(t, 1-0.01/4, *res.Confidence.VectorSimilarity, 1e-6)
	assert.InDelta(t, 0.3, *res.Confidence.RelevanceScore, 1e-9)
	scorer.AssertExpectations(t)
}

func TestPipeline_VectorGateSkipsScoring(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "stored", Answer: "a", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2).Set("query", 0, 1)
	scorer := &mockScorer{}
	p := New(store, emb, scorer, cacheCfg())

	res := p.Query(context.Background(), coll, "query", 0.8, 0.5)
	assert.Equal(t, models.OutcomeMiss, res.Outcome)
	assert.Equal(t, models.ReasonVectorSimilarityTooLow, res.Reason)
	require.NotNil(t, res.Confidence.VectorSimilarity)
	assert.InDelta(t, 0.5, *res.Confidence.VectorSimilarity, 1e-6)
	require.NotNil(t, res.Confidence.VectorDistance)
	assert.InDelta(t, 2.0, *res.Confidence.VectorDistance, 1e-6)
	assert.Nil(t, res.Confidence.RelevanceScore)
	scorer.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_RelevancePicksAmongAllCandidates(t *testing.T) {
	store := newStore(t,
		models.CacheEntry{ID: "1", Question: "nearest", Answer: "first", Vector: []float32{1, 0}},
		models.CacheEntry{ID: "2", Question: "second", Answer: "better", Vector: []float32{1, 0.2}},
		models.CacheEntry{ID: "3", Question: "far", Answer: "best", Vector: []float32{-1, 0}},
	)
	emb := embeddingtest.New(2).Set("query", 1, 0)
	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, "query", "nearest").Return(0.2, nil)
	scorer.On("Score", mock.Anything, "query", "second").Return(0.6, nil)
	scorer.On("Score", mock.Anything, "query", "far").Return(0.9, nil)
	p := New(store, emb, scorer, cacheCfg())

	res := p.Query(context.Background(), coll, "query", 0.8, 0.5)
	require.Equal(t, models.OutcomeHit, res.Outcome)
	assert.Equal(t, "best", res.Answer)
	assert.InDelta(t, 0.9, *res.Confidence.RelevanceScore, 1e-9)
	assert.InDelta(t, 0, *res.Confidence.VectorSimilarity, 1e-6, "confidence reports the winner's own similarity")
	assert.InDelta(t, 4.0, *res.Confidence.VectorDistance, 1e-6)
	scorer.AssertNumberOfCalls(t, "Score", 3)
}

func TestPipeline_RelevanceTieKeepsNearest(t *testing.T) {
	store := newStore(t,
		models.CacheEntry{ID: "1", Question: "nearest", Answer: "first", Vector: []float32{1, 0}},
		models.CacheEntry{ID: "2", Question: "second", Answer: "second", Vector: []float32{1, 0.2}},
	)
	emb := embeddingtest.New(2).Set("query", 1, 0)
	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, "query", mock.Anything).Return(0.7, nil)
	p := New(store, emb, scorer, cacheCfg())

	res := p.Query(context.Background(), coll, "query", 0.8, 0.5)
	require.Equal(t, models.OutcomeHit, res.Outcome)
	assert.Equal(t, "first", res.Answer)
}

func TestPipeline_EmptyCollectionIsMiss(t *testing.T) {
	store := newStore(t)
	p := New(store, embeddingtest.New(2), relevance.NewOverlapScorer(), cacheCfg())

	res := p.Query(context.Background(), coll, "anything", 0.8, 0.5)
	assert.Equal(t, models.OutcomeMiss, res.Outcome)
	assert.Equal(t, models.ReasonNoCandidates, res.Reason)
	assert.NoError(t, res.Err)
}

func TestPipeline_MissingCollectionIsNotReady(t *testing.T) {
	store := newStore(t)
	p := New(store, embeddingtest.New(2), relevance.NewOverlapScorer(), cacheCfg())

	res := p.Query(context.Background(), "other", "anything", 0.8, 0.5)
	require.Equal(t, models.OutcomeError, res.Outcome)
	assert.True(t, cacheerr.HasCode(res.Err, cacheerr.CodeCollectionUnavailable))
	assert.True(t, cacheerr.IsNotReady(res.Err))
}

func TestPipeline_EmbedderFailurePropagates(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "q", Answer: "a", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2)
	emb.FailWith(cacheerr.New(cacheerr.CodeModelUnavailable, "model gone"))
	p := New(store, emb, relevance.NewOverlapScorer(), cacheCfg())

	res := p.Query(context.Background(), coll, "q", 0.8, 0.5)
	require.Equal(t, models.OutcomeError, res.Outcome)
	assert.True(t, cacheerr.HasCode(res.Err, cacheerr.CodeModelUnavailable))
}

func TestPipeline_ScorerFailurePropagates(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "q", Answer: "a", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2).Set("q", 1, 0)
	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, "q", "q").Return(0.0, errors.New("upstream down"))
	p := New(store, emb, scorer, cacheCfg())

	res := p.Query(context.Background(), coll, "q", 0.8, 0.5)
	assert.Equal(t, models.OutcomeError, res.Outcome)
	assert.EqualError(t, res.Err, "upstream down")
}

func TestPipeline_ResultCache(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "q", Answer: "a", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2).Set("q", 1, 0)
	p := New(store, emb, relevance.NewOverlapScorer(), cacheCfg(), WithResultCache(time.Minute))
	ctx := context.Background()

	first := p.Query(ctx, coll, "q", 0.8, 0.5)
	second := p.Query(ctx, coll, "q", 0.8, 0.5)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.Calls())

	p.Query(ctx, coll, "q", 0.9, 0.5)
	assert.Equal(t, 2, emb.Calls(), "thresholds are part of the cache key")

	p.Flush()
	p.Query(ctx, coll, "q", 0.8, 0.5)
	assert.Equal(t, 3, emb.Calls())
}

func TestPipeline_DefaultsApplied(t *testing.T) {
	p := New(nil, nil, nil, config.CacheConfig{})
	assert.Equal(t, config.DefaultTopK, p.topK)
	assert.Equal(t, config.DefaultMaxDistance, p.maxDistance)
	assert.Equal(t, "disabled", p.scorer.Name())
}

// blockingScorer parks the first Score call until release is closed.
type blockingScorer struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	score   float64
}

func (b *blockingScorer) Score(ctx context.Context, query, candidate string) (float64, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
		return 0.1, nil
	}
	return b.score, nil
}

func (b *blockingScorer) Name() string { return "blocking" }

func TestPipeline_ResultComputedAcrossFlushIsNotCached(t *testing.T) {
	store := newStore(t, models.CacheEntry{ID: "1", Question: "q", Answer: "a", Vector: []float32{1, 0}})
	emb := embeddingtest.New(2).Set("q", 1, 0)
	scorer := &blockingScorer{entered: make(chan struct{}), release: make(chan struct{}), score: 0.9}
	p := New(store, emb, scorer, cacheCfg(), WithResultCache(time.Minute))
	ctx := context.Background()

	stale := make(chan models.QueryResult, 1)
	go func() { stale <- p.Query(ctx, coll, "q", 0.8, 0.5) }()
	<-scorer.entered

	// A write lands while the first query is still scoring.
	p.Flush()
	close(scorer.release)

	first := <-stale
	require.Equal(t, models.OutcomeMiss, first.Outcome)
	assert.Equal(t, models.ReasonRelevanceScoreTooLow, first.Reason)

	next := p.Query(ctx, coll, "q", 0.8, 0.5)
	assert.Equal(t, models.OutcomeHit, next.Outcome, "the pre-flush miss must not be served from the result cache")
	assert.Equal(t, 2, emb.Calls())

	again := p.Query(ctx, coll, "q", 0.8, 0.5)
	assert.Equal(t, models.OutcomeHit, again.Outcome)
	assert.Equal(t, 2, emb.Calls(), "results computed after the flush are cached")
}
