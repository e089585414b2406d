package engine

import (
	"context"

	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/pkg/utils"
)

// Stats returns the entry count of the active collection.
func (e *Engine) Stats(ctx context.Context) (models.Stats, error) {
	if err := e.Init(ctx); err != nil {
		return models.Stats{}, err
	}
	name := e.Collection()
	n, err := e.store.Count(ctx, name)
	if err != nil {
		return models.Stats{}, err
	}
	return models.Stats{
		TotalEntries:   n,
		CollectionName: name,
		DatabasePath:   e.store.Path(),
	}, nil
}

// Health inspects the backing store and the active collection. It does not create the
// collection.
func (e *Engine) Health(ctx context.Context) (models.StoreHealth, error) {
	return e.store.Health(ctx, e.Collection())
}

// Export dumps the active collection with answers cut to a preview. A positive limit caps
// the number of items; Count is always the full size.
func (e *Engine) Export(ctx context.Context, limit int) (models.ExportResult, error) {
	if err := e.Init(ctx); err != nil {
		return models.ExportResult{}, err
	}
	name := e.Collection()
	l := e.lock(name)
	l.rw.RLock()
	defer l.rw.RUnlock()

	all, err := e.store.GetAll(ctx, name)
	if err != nil {
		return models.ExportResult{}, err
	}
	items := all
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := models.ExportResult{Count: len(all), Items: make([]models.ExportItem, len(items))}
	for i, entry := range items {
		out.Items[i] = models.ExportItem{
			ID:            entry.ID,
			Question:      entry.Question,
			AnswerPreview: utils.Truncate(entry.Answer, exportPreviewLength),
		}
	}
	return out, nil
}

// History returns recent maintenance events, newest first.
func (e *Engine) History(limit int) ([]journal.Event, error) {
	return e.journal.List(limit)
}
