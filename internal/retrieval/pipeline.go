// Package retrieval runs the two-gate query: nearest-neighbor search on question vectors,
// then relevance scoring of every top-k candidate once the nearest one clears the vector gate.
package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/config"
	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/relevance"
	"github.com/hyperjump/faqcache/internal/storage"
	"github.com/hyperjump/faqcache/internal/vector"
)

// Pipeline answers queries against one store.
type Pipeline struct {
	store       storage.Store
	embedder    embedding.Embedder
	scorer      relevance.Scorer
	topK        int
	maxDistance float64
	results     *cache.Cache
	logger      *zap.Logger

	// gen counts flushes. A result computed across a flush is not cached.
	genMu sync.Mutex
	gen   uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithResultCache keeps hit and miss results for ttl. A non-positive ttl disables the cache.
func WithResultCache(ttl time.Duration) Option {
	return func(p *Pipeline) {
		if ttl > 0 {
			p.results = cache.New(ttl, ttl*2)
		} else {
			p.results = nil
		}
	}
}

// New creates a pipeline. topK and maxDistance come from the cache config.
func New(store storage.Store, embedder embedding.Embedder, scorer relevance.Scorer, cfg config.CacheConfig, opts ...Option) *Pipeline {
	if scorer == nil {
		scorer = relevance.Disabled{}
	}
	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		scorer:      scorer,
		topK:        cfg.TopK,
		maxDistance: cfg.MaxDistance,
		logger:      zap.NewNop(),
	}
	if p.topK <= 0 {
		p.topK = config.DefaultTopK
	}
	if p.maxDistance <= 0 {
		p.maxDistance = config.DefaultMaxDistance
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Flush drops every cached result. Call after any mutation of the store.
func (p *Pipeline) Flush() {
	p.genMu.Lock()
	defer p.genMu.Unlock()
	p.gen++
	if p.results != nil {
		p.results.Flush()
	}
}

func (p *Pipeline) generation() uint64 {
	p.genMu.Lock()
	defer p.genMu.Unlock()
	return p.gen
}

// Query runs both gates and returns a hit, a miss with its reason, or an error result.
// Misses always carry the best score that caused them.
func (p *Pipeline) Query(ctx context.Context, collection, query string, vectorThreshold, relevanceThreshold float64) models.QueryResult {
	key := fmt.Sprintf("%s\x00%s\x00%g\x00%g", collection, query, vectorThreshold, relevanceThreshold)
	if p.results != nil {
		if cached, ok := p.results.Get(key); ok {
			return cached.(models.QueryResult)
		}
	}

	gen := p.generation()
	res := p.run(ctx, collection, query, vectorThreshold, relevanceThreshold)
	if res.Outcome != models.OutcomeError && p.results != nil {
		p.genMu.Lock()
		if p.gen == gen {
			p.results.SetDefault(key, res)
		}
		p.genMu.Unlock()
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, collection, query string, vectorThreshold, relevanceThreshold float64) models.QueryResult {
	conf := models.Confidence{VectorThreshold: vectorThreshold, RelevanceThreshold: relevanceThreshold}

	if _, err := p.store.Get(ctx, collection); err != nil {
		if cacheerr.IsNotFound(err) {
			return models.Failed(cacheerr.New(cacheerr.CodeCollectionUnavailable,
				fmt.Sprintf("collection %s is not available", collection), cacheerr.FieldCollection(collection)))
		}
		return models.Failed(err)
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return models.Failed(err)
	}

	candidates, err := p.store.QueryNearest(ctx, collection, vec, p.topK)
	if err != nil {
		return models.Failed(err)
	}
	if len(candidates) == 0 {
		return models.Miss(models.ReasonNoCandidates, conf)
	}

	best := 0
	for i := range candidates {
		candidates[i].VectorSimilarity = vector.DistanceToSimilarity(candidates[i].VectorDistance, p.maxDistance)
		if candidates[i].VectorSimilarity > candidates[best].VectorSimilarity {
			best = i
		}
	}
	conf.VectorSimilarity = models.Float(candidates[best].VectorSimilarity)
	conf.VectorDistance = models.Float(candidates[best].VectorDistance)

	if candidates[best].VectorSimilarity < vectorThreshold {
		p.logger.Debug("query miss at vector gate",
			zap.String("collection", collection),
			zap.Float64("vector_similarity", candidates[best].VectorSimilarity))
		return models.Miss(models.ReasonVectorSimilarityTooLow, conf)
	}

	winner := -1
	bestScore := 0.0
	for i := range candidates {
		score, err := p.scorer.Score(ctx, query, candidates[i].Entry.Question)
		if err != nil {
			return models.Failed(err)
		}
		candidates[i].RelevanceScore = models.Float(score)
		if winner == -1 || score > bestScore {
			winner, bestScore = i, score
		}
	}

	conf.VectorSimilarity = models.Float(candidates[winner].VectorSimilarity)
	conf.VectorDistance = models.Float(candidates[winner].VectorDistance)
	conf.RelevanceScore = models.Float(bestScore)

	if bestScore < relevanceThreshold {
		p.logger.Debug("query miss at relevance gate",
			zap.String("collection", collection),
			zap.Float64("relevance_score", bestScore))
		return models.Miss(models.ReasonRelevanceScoreTooLow, conf)
	}
	return models.Hit(candidates[winner].Entry, conf)
}
