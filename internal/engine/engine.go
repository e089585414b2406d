// Package engine is the service object behind the HTTP API and the CLI. It owns the
// retrieval pipeline, maintenance and reconstruction for the active collection and
// serializes mutations per collection.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/config"
	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/maintenance"
	"github.com/hyperjump/faqcache/internal/metrics"
	"github.com/hyperjump/faqcache/internal/reconstruct"
	"github.com/hyperjump/faqcache/internal/relevance"
	"github.com/hyperjump/faqcache/internal/retrieval"
	"github.com/hyperjump/faqcache/internal/storage"
)

// exportPreviewLength is the rune length of answer previews in Export.
const exportPreviewLength = 500

// collectionLock guards one collection. Readers (queries, saves) share rw; rebuilds take
// it exclusively. admit serializes the check-then-insert of concurrent saves.
type collectionLock struct {
	rw    sync.RWMutex
	admit sync.Mutex
}

// Engine runs every cache operation against one store.
type Engine struct {
	store      storage.Store
	embedder   embedding.Embedder
	scorer     relevance.Scorer
	cfg        *config.Config
	pipeline   *retrieval.Pipeline
	maintainer *maintenance.Maintainer
	rebuilder  *reconstruct.Reconstructor
	journal    *journal.Journal
	logger     *zap.Logger

	initMu sync.Mutex
	ready  bool

	locksMu sync.Mutex
	locks   map[string]*collectionLock

	fpMu         sync.Mutex
	fingerprints map[string]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and the components it builds.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithJournal records maintenance actions in j.
func WithJournal(j *journal.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// New creates an engine. A nil scorer disables relevance scoring.
func New(store storage.Store, embedder embedding.Embedder, scorer relevance.Scorer, cfg *config.Config, opts ...Option) *Engine {
	if scorer == nil {
		scorer = relevance.Disabled{}
	}
	e := &Engine{
		store:        store,
		embedder:     embedder,
		scorer:       scorer,
		cfg:          cfg,
		logger:       zap.NewNop(),
		locks:        make(map[string]*collectionLock),
		fingerprints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.pipeline = retrieval.New(store, embedder, scorer, cfg.Cache,
		retrieval.WithLogger(e.logger), retrieval.WithResultCache(cfg.Cache.ResultCacheTTL))
	e.maintainer = maintenance.New(store, embedder,
		maintenance.WithLogger(e.logger), maintenance.WithBatchSize(cfg.Embedding.BatchSize))
	e.rebuilder = reconstruct.New(store, embedder,
		reconstruct.WithLogger(e.logger),
		reconstruct.WithBatchSize(cfg.Embedding.BatchSize),
		reconstruct.WithTimeout(cfg.Corpus.Timeout))
	return e
}

// Init makes sure the active collection exists. It runs once; later calls return
// immediately. A failed init is retried on the next call.
func (e *Engine) Init(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ready {
		return nil
	}
	name := e.Collection()
	c, err := e.store.GetOrCreate(ctx, name, e.embedder.Version())
	if err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeCollectionUnavailable,
			fmt.Sprintf("failed to initialize collection %s", name), cacheerr.FieldCollection(name))
	}
	if n, err := e.store.Count(ctx, name); err == nil {
		metrics.SetEntries(name, n)
		e.logger.Info("cache ready",
			zap.String("collection", name),
			zap.Int("count", n),
			zap.Int("dimension", c.Dimension),
			zap.String("vectorizer_version", c.VectorizerVersion),
			zap.String("scorer", e.scorer.Name()))
	}
	e.ready = true
	return nil
}

// Collection is the name of the active collection.
func (e *Engine) Collection() string {
	return e.cfg.Cache.Collection
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Scorer returns the relevance scorer in use.
func (e *Engine) Scorer() relevance.Scorer {
	return e.scorer
}

// Embedder returns the vectorizer in use.
func (e *Engine) Embedder() embedding.Embedder {
	return e.embedder
}

func (e *Engine) lock(name string) *collectionLock {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[name]
	if !ok {
		l = &collectionLock{}
		e.locks[name] = l
	}
	return l
}

// mutated runs after every successful mutation of name.
func (e *Engine) mutated(ctx context.Context, name string) {
	e.pipeline.Flush()
	if n, err := e.store.Count(ctx, name); err == nil {
		metrics.SetEntries(name, n)
	}
}

func (e *Engine) record(ev journal.Event) {
	if err := e.journal.Append(ev); err != nil {
		e.logger.Warn("failed to append journal event", zap.String("action", ev.Action), zap.Error(err))
	}
}

func observe(operation string, start time.Time) {
	metrics.RecordRebuild(operation, time.Since(start).Seconds())
}
