package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/metrics"
	"github.com/hyperjump/faqcache/internal/models"
)

// Query looks req.Query up in the active collection. Invalid requests and failures come
// back as error results rather than a separate error.
func (e *Engine) Query(ctx context.Context, req models.QueryRequest) models.QueryResult {
	start := time.Now()
	res := e.query(ctx, req)
	metrics.RecordQuery(string(res.Outcome), res.Reason, time.Since(start).Seconds())
	if res.Outcome == models.OutcomeError {
		e.logger.Warn("query failed", zap.Error(res.Err))
	}
	return res
}

func (e *Engine) query(ctx context.Context, req models.QueryRequest) models.QueryResult {
	if err := req.Validate(); err != nil {
		return models.Failed(cacheerr.New(cacheerr.CodeInvalidInput, err.Error()))
	}
	if err := e.Init(ctx); err != nil {
		return models.Failed(err)
	}
	vThr, rThr := req.Thresholds(e.cfg.Thresholds.VectorSimilarity, e.cfg.Thresholds.Relevance)

	name := e.Collection()
	l := e.lock(name)
	l.rw.RLock()
	defer l.rw.RUnlock()
	return e.pipeline.Query(ctx, name, req.Query, vThr, rThr)
}
