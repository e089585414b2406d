package maintenance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/storage"
)

// Prologue markers left at the start of answers that were captured from an LLM response.
var prologueMarkers = []string{
	"You are",
	"あなたは",
	"以下は社内FAQシステムから取得した回答です",
	"## FAQ回答",
}

var (
	prologueBreaks    = []string{"\n\n", "\n#", "\n##", "\n回答", "\n以下は", "\n\r\n"}
	prologueFallbacks = []string{"以下は", "回答:", "Answer:"}
)

// SanitizeAnswer strips a leading system prompt or translator prologue from an answer.
// Text that does not start with a known marker is only trimmed.
func SanitizeAnswer(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return t
	}
	for _, marker := range prologueMarkers {
		if !strings.HasPrefix(t, marker) {
			continue
		}
		for _, sep := range prologueBreaks {
			if idx := strings.Index(t, sep); idx > 0 {
				return strings.TrimSpace(t[idx+len(sep):])
			}
		}
		for _, sep := range prologueFallbacks {
			if idx := strings.Index(t, sep); idx > 0 {
				return strings.TrimSpace(t[idx+len(sep):])
			}
		}
		return t
	}
	return t
}

// CleanAnswers sanitizes every stored answer and rebuilds the collection when any changed.
// Questions and their vectors are kept as stored.
func (m *Maintainer) CleanAnswers(ctx context.Context, collection string) (models.CleanAnswersResult, error) {
	if _, err := m.collection(ctx, collection); err != nil {
		return models.CleanAnswersResult{}, err
	}
	all, err := m.store.GetAll(ctx, collection)
	if err != nil {
		return models.CleanAnswersResult{}, err
	}

	changed := 0
	cleaned := make([]models.CacheEntry, len(all))
	for i, e := range all {
		answer := SanitizeAnswer(e.Answer)
		if answer != e.Answer {
			changed++
		}
		e.Answer = answer
		cleaned[i] = e
	}
	if changed == 0 {
		return models.CleanAnswersResult{
			Success: true,
			Message: "No answers needed cleaning",
			Count:   len(all),
		}, nil
	}

	if err := storage.Rebuild(ctx, m.store, collection, m.embedder.Version(), cleaned); err != nil {
		return models.CleanAnswersResult{}, err
	}
	m.logger.Info("rebuilt collection with sanitized answers",
		zap.String("collection", collection), zap.Int("count", len(all)), zap.Int("changed", changed))
	return models.CleanAnswersResult{
		Success: true,
		Message: fmt.Sprintf("Rebuilt %s with sanitized answers", collection),
		Count:   len(all),
		Changed: changed,
	}, nil
}
