package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cli"
	"github.com/hyperjump/faqcache/internal/config"
	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/engine"
	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/metrics"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/reconstruct"
	"github.com/hyperjump/faqcache/internal/relevance"
	"github.com/hyperjump/faqcache/internal/storage"
)

// Components holds the long-lived pieces behind the engine.
type Components struct {
	Store    *storage.SQLiteStore
	Embedder embedding.Embedder
	Journal  *journal.Journal
	Engine   *engine.Engine
}

// Close releases everything in reverse order of creation.
func (c *Components) Close() {
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	default:
		e, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	store, err := storage.Open(ctx, cfg.Storage.DataDir,
		storage.WithLogger(logger),
		storage.WithFileName(cfg.Storage.DatabaseFile),
		storage.WithHotIndex(cfg.Storage.HotIndexOrDefault()),
		storage.WithLegacyCheck(cfg.Storage.LegacyCheckOrDefault()),
		storage.WithRepairHook(metrics.RecordRepair),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store
	logger.Debug("store opened",
		zap.String("path", store.Path()),
		zap.Bool("hot_index", store.HotIndex()))

	c.Embedder, err = newEmbedder(cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, err
	}
	logger.Info("vectorizer initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("version", c.Embedder.Version()),
		zap.Int("dimensions", c.Embedder.Dimensions()))

	scorer, err := relevance.New(cfg.Relevance)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize relevance scorer: %w", err)
	}

	c.Journal, err = journal.Open(cfg.Storage.JournalFile())
	if err != nil {
		logger.Warn("maintenance journal disabled", zap.String("path", cfg.Storage.JournalFile()), zap.Error(err))
		c.Journal = nil
	}

	c.Engine = engine.New(c.Store, c.Embedder, scorer, cfg,
		engine.WithLogger(logger),
		engine.WithJournal(c.Journal),
	)
	return c, nil
}

// backend is the set of operations the CLI commands need, served either by a remote
// server or by an engine opened in-process.
type backend interface {
	Query(ctx context.Context, req models.QueryRequest) (models.QueryResult, error)
	Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error)
	Delete(ctx context.Context, req models.DeleteRequest) (models.DeleteResult, error)
	Feedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error)
	Reconstruct(ctx context.Context, req models.ReconstructRequest) (models.ReconstructResult, error)
	Stats(ctx context.Context) (models.Stats, error)
	Export(ctx context.Context, limit int) (models.ExportResult, error)
	History(ctx context.Context, limit int) ([]journal.Event, error)
	Close()
}

type remoteBackend struct {
	client *cli.Client
}

func (r *remoteBackend) Query(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	return r.client.Query(ctx, req)
}

func (r *remoteBackend) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	return r.client.Save(ctx, req)
}

func (r *remoteBackend) Delete(ctx context.Context, req models.DeleteRequest) (models.DeleteResult, error) {
	return r.client.Delete(ctx, req)
}

func (r *remoteBackend) Feedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error) {
	return r.client.Feedback(ctx, req)
}

func (r *remoteBackend) Reconstruct(ctx context.Context, req models.ReconstructRequest) (models.ReconstructResult, error) {
	return r.client.Reconstruct(ctx, req)
}

func (r *remoteBackend) Stats(ctx context.Context) (models.Stats, error) {
	return r.client.Stats(ctx)
}

func (r *remoteBackend) Export(ctx context.Context, limit int) (models.ExportResult, error) {
	return r.client.Export(ctx, limit)
}

func (r *remoteBackend) History(ctx context.Context, limit int) ([]journal.Event, error) {
	return r.client.History(ctx, limit)
}

func (r *remoteBackend) Close() {}

type localBackend struct {
	*Components
	logger   *zap.Logger
	progress reconstruct.ProgressFunc
}

func (l *localBackend) Query(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	return l.Engine.Query(ctx, req), nil
}

func (l *localBackend) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	return l.Engine.Save(ctx, req)
}

func (l *localBackend) Delete(ctx context.Context, req models.DeleteRequest) (models.DeleteResult, error) {
	return l.Engine.Delete(ctx, req)
}

func (l *localBackend) Feedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error) {
	return l.Engine.Feedback(ctx, req)
}

func (l *localBackend) Reconstruct(ctx context.Context, req models.ReconstructRequest) (models.ReconstructResult, error) {
	return l.Engine.Reconstruct(ctx, req, l.progress)
}

func (l *localBackend) Stats(ctx context.Context) (models.Stats, error) {
	return l.Engine.Stats(ctx)
}

func (l *localBackend) Export(ctx context.Context, limit int) (models.ExportResult, error) {
	return l.Engine.Export(ctx, limit)
}

func (l *localBackend) History(_ context.Context, limit int) ([]journal.Event, error) {
	return l.Engine.History(limit)
}

func (l *localBackend) Close() {
	l.Components.Close()
	_ = l.logger.Sync()
}
