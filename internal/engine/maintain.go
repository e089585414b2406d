package engine

import (
	"context"
	"time"

	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/metrics"
	"github.com/hyperjump/faqcache/internal/models"
)

// Save admits a question/answer pair into the active collection. Saves run alongside
// queries but never alongside each other or a rebuild.
func (e *Engine) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	if err := e.Init(ctx); err != nil {
		return models.SaveResult{}, err
	}
	name := e.Collection()
	l := e.lock(name)
	l.rw.RLock()
	defer l.rw.RUnlock()
	l.admit.Lock()
	defer l.admit.Unlock()

	res, err := e.maintainer.Save(ctx, name, req)
	if err != nil {
		metrics.RecordMaintenance("save", "error")
		return res, err
	}
	outcome := "saved"
	if res.DuplicateDetected {
		outcome = "duplicate"
	} else {
		e.mutated(ctx, name)
	}
	metrics.RecordMaintenance("save", outcome)
	e.record(journal.Event{
		Action:     "save",
		Collection: name,
		Question:   req.Question,
		Outcome:    outcome,
		Detail:     map[string]any{"faq_id": res.EntryID},
	})
	return res, nil
}

// Delete evicts entries matching req.Question. It holds the collection exclusively for
// the whole rebuild.
func (e *Engine) Delete(ctx context.Context, req models.DeleteRequest) (models.DeleteResult, error) {
	if err := e.Init(ctx); err != nil {
		return models.DeleteResult{}, err
	}
	name := e.Collection()
	l := e.lock(name)
	l.rw.Lock()
	defer l.rw.Unlock()

	start := time.Now()
	res, err := e.maintainer.Delete(ctx, name, req)
	if err != nil {
		metrics.RecordMaintenance("delete", "error")
		return res, err
	}
	outcome := "no_match"
	if res.DeletedCount > 0 {
		outcome = "deleted"
		observe("delete", start)
		e.mutated(ctx, name)
	}
	metrics.RecordMaintenance("delete", outcome)
	e.record(journal.Event{
		Action:     "delete",
		Collection: name,
		Question:   req.Question,
		Outcome:    outcome,
		Detail:     map[string]any{"deleted_count": res.DeletedCount, "remaining_count": res.RemainingCount},
	})
	return res, nil
}

// Feedback applies an approval signal. It may save or rebuild, so it holds the collection
// exclusively.
func (e *Engine) Feedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error) {
	if err := e.Init(ctx); err != nil {
		return models.FeedbackResult{}, err
	}
	name := e.Collection()
	l := e.lock(name)
	l.rw.Lock()
	defer l.rw.Unlock()

	saveThr, deleteThr := req.Thresholds(e.cfg.Thresholds.FeedbackSave, e.cfg.Thresholds.FeedbackDelete)
	res, err := e.maintainer.Feedback(ctx, name, req, saveThr, deleteThr)
	if err != nil {
		metrics.RecordMaintenance("feedback", "error")
		return res, err
	}
	if res.ActionTaken == models.ActionSaved || res.ActionTaken == models.ActionDeleted {
		e.mutated(ctx, name)
	}
	metrics.RecordMaintenance("feedback", string(res.ActionTaken))
	e.record(journal.Event{
		Action:     "feedback",
		Collection: name,
		Question:   req.Query,
		Outcome:    string(res.ActionTaken),
		Detail:     map[string]any{"cache_signal": req.CacheSignal, "matched_question": res.MatchedQuestion},
	})
	return res, nil
}
