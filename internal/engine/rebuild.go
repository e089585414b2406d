package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/corpus"
	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/metrics"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/reconstruct"
	"github.com/hyperjump/faqcache/internal/storage"
)

// Reconstruct rebuilds a collection (the active one by default) from a corpus file.
// backup_existing defaults to the corpus config.
func (e *Engine) Reconstruct(ctx context.Context, req models.ReconstructRequest, progress reconstruct.ProgressFunc) (models.ReconstructResult, error) {
	if err := req.Validate(); err != nil {
		return models.ReconstructResult{}, cacheerr.New(cacheerr.CodeInvalidInput, err.Error())
	}
	if req.CollectionName == "" {
		req.CollectionName = e.Collection()
	}
	return e.reconstruct(ctx, req, "", progress)
}

// ReconstructIfChanged rebuilds the active collection from path unless the file content
// is identical to the last corpus this engine reconstructed from.
func (e *Engine) ReconstructIfChanged(ctx context.Context, path string) (models.ReconstructResult, error) {
	fp, err := corpus.Fingerprint(path)
	if err != nil {
		return models.ReconstructResult{}, cacheerr.Wrap(err, cacheerr.CodeCorpusNotFound, "failed to read corpus", cacheerr.Field("path", path))
	}
	name := e.Collection()
	if e.fingerprint(name) == fp {
		e.logger.Debug("corpus unchanged, skipping reconstruction", zap.String("path", path))
		return models.ReconstructResult{
			Success:        true,
			Skipped:        true,
			Message:        "Corpus unchanged",
			CollectionName: name,
			CorpusPath:     path,
		}, nil
	}
	return e.reconstruct(ctx, models.ReconstructRequest{CorpusPath: path, CollectionName: name}, fp, nil)
}

func (e *Engine) reconstruct(ctx context.Context, req models.ReconstructRequest, fp string, progress reconstruct.ProgressFunc) (models.ReconstructResult, error) {
	backup := e.cfg.Corpus.BackupOrDefault()
	if req.BackupExisting != nil {
		backup = *req.BackupExisting
	}
	if fp == "" {
		fp, _ = corpus.Fingerprint(req.CorpusPath)
	}

	l := e.lock(req.CollectionName)
	l.rw.Lock()
	defer l.rw.Unlock()

	start := time.Now()
	res, err := e.rebuilder.Reconstruct(ctx, req, backup, progress)
	if err != nil {
		metrics.RecordMaintenance("reconstruct", "error")
		e.record(journal.Event{
			Action:     "reconstruct",
			Collection: req.CollectionName,
			Outcome:    "error",
			Detail:     map[string]any{"corpus_path": req.CorpusPath, "error": err.Error()},
		})
		return res, err
	}
	observe("reconstruct", start)
	e.setFingerprint(req.CollectionName, fp)
	e.mutated(ctx, req.CollectionName)
	metrics.RecordMaintenance("reconstruct", "success")
	e.record(journal.Event{
		Action:     "reconstruct",
		Collection: req.CollectionName,
		Outcome:    "success",
		Detail: map[string]any{
			"corpus_path":     req.CorpusPath,
			"items_processed": res.ItemsProcessed,
			"backup_created":  res.BackupCreated,
		},
	})
	return res, nil
}

// Reset drops the active collection and recreates it empty.
func (e *Engine) Reset(ctx context.Context) (models.ResetResult, error) {
	name := e.Collection()
	l := e.lock(name)
	l.rw.Lock()
	defer l.rw.Unlock()

	if err := e.store.Delete(ctx, name); err != nil && !cacheerr.IsNotFound(err) {
		metrics.RecordMaintenance("reset", "error")
		return models.ResetResult{}, err
	}
	if _, err := e.store.GetOrCreate(ctx, name, e.embedder.Version()); err != nil {
		metrics.RecordMaintenance("reset", "error")
		return models.ResetResult{}, err
	}
	e.setFingerprint(name, "")
	e.mutated(ctx, name)
	metrics.RecordMaintenance("reset", "success")
	e.record(journal.Event{Action: "reset", Collection: name, Outcome: "success"})
	e.logger.Info("collection reset", zap.String("collection", name))
	return models.ResetResult{
		Success:        true,
		Message:        fmt.Sprintf("Collection %s reset", name),
		CollectionName: name,
	}, nil
}

// CleanAnswers backs up the store, then strips prompt prologues from stored answers.
func (e *Engine) CleanAnswers(ctx context.Context) (models.CleanAnswersResult, error) {
	if err := e.Init(ctx); err != nil {
		return models.CleanAnswersResult{}, err
	}
	name := e.Collection()
	l := e.lock(name)
	l.rw.Lock()
	defer l.rw.Unlock()

	start := time.Now()
	backup, err := e.store.Backup(ctx)
	if err != nil {
		metrics.RecordMaintenance("clean_answers", "error")
		return models.CleanAnswersResult{}, storage.RebuildError(err, "failed to back up store")
	}
	res, err := e.maintainer.CleanAnswers(ctx, name)
	if err != nil {
		metrics.RecordMaintenance("clean_answers", "error")
		return res, err
	}
	res.BackupCreated = backup
	if res.Changed > 0 {
		observe("clean_answers", start)
		e.mutated(ctx, name)
	}
	metrics.RecordMaintenance("clean_answers", "success")
	e.record(journal.Event{
		Action:     "clean_answers",
		Collection: name,
		Outcome:    "success",
		Detail:     map[string]any{"count": res.Count, "changed": res.Changed, "backup_created": backup},
	})
	return res, nil
}

func (e *Engine) fingerprint(name string) string {
	e.fpMu.Lock()
	defer e.fpMu.Unlock()
	return e.fingerprints[name]
}

func (e *Engine) setFingerprint(name, fp string) {
	e.fpMu.Lock()
	defer e.fpMu.Unlock()
	e.fingerprints[name] = fp
}
