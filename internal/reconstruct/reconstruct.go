// Package reconstruct rebuilds a collection from a corpus file.
package reconstruct

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/corpus"
	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/storage"
)

// ProgressFunc is called as questions are embedded.
type ProgressFunc func(done, total int)

// Reconstructor loads a corpus, embeds its questions and swaps the result in for a live
// collection. It holds no locks; callers serialize access per collection.
type Reconstructor struct {
	store     storage.Store
	embedder  embedding.Embedder
	logger    *zap.Logger
	batchSize int
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconstructor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBatchSize sets how many questions are embedded per call.
func WithBatchSize(n int) Option {
	return func(r *Reconstructor) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithTimeout bounds a whole reconstruction. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconstructor) {
		r.timeout = d
	}
}

// New creates a Reconstructor.
func New(store storage.Store, embedder embedding.Embedder, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		store:     store,
		embedder:  embedder,
		logger:    zap.NewNop(),
		batchSize: 32,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconstruct replaces req.CollectionName with the rows of req.CorpusPath. When backup is
// true and the store holds any data, a file-level backup is taken first. The live
// collection is untouched unless every step succeeds.
func (r *Reconstructor) Reconstruct(ctx context.Context, req models.ReconstructRequest, backup bool, progress ProgressFunc) (models.ReconstructResult, error) {
	start := r.now()
	if err := req.Validate(); err != nil {
		return models.ReconstructResult{}, cacheerr.Wrap(err, cacheerr.CodeInvalidInput, "invalid reconstruct request")
	}
	if req.CollectionName == "" {
		return models.ReconstructResult{}, cacheerr.New(cacheerr.CodeInvalidInput, "collection_name cannot be empty")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result := models.ReconstructResult{
		CollectionName: req.CollectionName,
		CorpusPath:     req.CorpusPath,
	}

	if backup {
		path, err := r.store.Backup(ctx)
		if err != nil {
			return result, storage.RebuildError(err, "failed to back up store")
		}
		if path != "" {
			r.logger.Info("backed up store before reconstruction", zap.String("path", path))
		}
		result.BackupCreated = path
	}

	rows, err := corpus.Load(req.CorpusPath)
	if err != nil {
		return result, err
	}
	r.logger.Info("loaded corpus",
		zap.String("path", req.CorpusPath), zap.Int("count", len(rows)))

	questions := make([]string, len(rows))
	for i, row := range rows {
		questions[i] = row.Question
	}
	var report func(int)
	if progress != nil {
		report = func(done int) { progress(done, len(rows)) }
	}
	vecs, err := embedding.Encode(ctx, r.embedder, questions, r.batchSize, report)
	if err != nil {
		return result, storage.RebuildError(err, "failed to embed corpus questions")
	}

	createdAt := r.now().UTC()
	entries := make([]models.CacheEntry, len(rows))
	for i, row := range rows {
		entries[i] = models.CacheEntry{
			ID:        fmt.Sprintf("faq_%d", i),
			Question:  row.Question,
			Answer:    row.Answer,
			Vector:    vecs[i],
			CreatedAt: createdAt,
		}
	}

	if err := storage.Rebuild(ctx, r.store, req.CollectionName, r.embedder.Version(), entries); err != nil {
		r.logger.Error("reconstruction failed, live collection kept",
			zap.String("collection", req.CollectionName), zap.Error(err))
		return result, err
	}

	result.Success = true
	result.ItemsProcessed = len(entries)
	result.Duration = r.now().Sub(start)
	result.Message = fmt.Sprintf("Reconstructed %s with %d entries", req.CollectionName, len(entries))
	r.logger.Info("reconstructed collection",
		zap.String("collection", req.CollectionName),
		zap.Int("count", len(entries)),
		zap.Int("dimension", r.embedder.Dimensions()),
		zap.Duration("duration", result.Duration))
	return result, nil
}
