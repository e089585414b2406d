package maintenance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/storage"
	"github.com/hyperjump/faqcache/internal/vector"
	"github.com/hyperjump/faqcache/pkg/utils"
)

// Delete evicts every entry whose question matches target, either exactly after
// normalization or with a question cosine above 0.95. The store cannot delete by
// similarity, so the survivors are re-embedded into a staging collection that replaces
// the live one. When nothing matches the rebuild is skipped and NoMatch is reported.
func (m *Maintainer) Delete(ctx context.Context, collection string, req models.DeleteRequest) (models.DeleteResult, error) {
	if err := req.Validate(); err != nil {
		return models.DeleteResult{}, invalid(err)
	}
	if _, err := m.collection(ctx, collection); err != nil {
		return models.DeleteResult{}, err
	}

	all, err := m.store.GetAll(ctx, collection)
	if err != nil {
		return models.DeleteResult{}, err
	}
	if len(all) == 0 {
		return noMatch(fmt.Sprintf("No FAQs found in collection %s", collection), 0), nil
	}

	target, err := m.embedder.Embed(ctx, req.Question)
	if err != nil {
		return models.DeleteResult{}, err
	}
	questions := make([]string, len(all))
	for i, e := range all {
		questions[i] = strings.TrimSpace(e.Question)
	}
	fresh, err := embedding.Encode(ctx, m.embedder, questions, m.batchSize, nil)
	if err != nil {
		return models.DeleteResult{}, storage.RebuildError(err, "failed to embed stored questions")
	}

	normalized := utils.NormalizeText(req.Question)
	var (
		kept    []models.CacheEntry
		deleted []models.DeletedItem
	)
	for i, e := range all {
		stored := questions[i]
		answer := strings.TrimSpace(e.Answer)
		if utils.NormalizeText(stored) == normalized {
			deleted = append(deleted, models.DeletedItem{Question: stored, Answer: utils.Truncate(answer, previewLength)})
			continue
		}
		if stored != "" {
			if sim := vector.CosineSimilarity(target, fresh[i]); sim > deleteCosineThreshold {
				deleted = append(deleted, models.DeletedItem{
					Question:   stored,
					Answer:     utils.Truncate(answer, previewLength),
					Similarity: models.Float(sim),
				})
				continue
			}
		}
		kept = append(kept, models.CacheEntry{
			ID:       fmt.Sprintf("faq_%d", len(kept)),
			Question: e.Question,
			Answer:   e.Answer,
			Vector:   fresh[i],
		})
	}

	if len(deleted) == 0 {
		return noMatch(fmt.Sprintf("No matching FAQ found to delete for question: %s", req.Question), len(all)), nil
	}

	m.logger.Info("rebuilding collection without deleted entries",
		zap.String("collection", collection),
		zap.Int("deleted", len(deleted)),
		zap.Int("kept", len(kept)))
	if err := storage.Rebuild(ctx, m.store, collection, m.embedder.Version(), kept); err != nil {
		return models.DeleteResult{}, err
	}

	return models.DeleteResult{
		Success:        true,
		Message:        fmt.Sprintf("Successfully deleted %d FAQ entry/entries based on question matching", len(deleted)),
		DeletedCount:   len(deleted),
		RemainingCount: len(kept),
		DeletedItems:   deleted,
		SearchCriteria: "question_only",
	}, nil
}

func noMatch(msg string, remaining int) models.DeleteResult {
	return models.DeleteResult{
		Message:        msg,
		NoMatch:        true,
		RemainingCount: remaining,
		DeletedItems:   []models.DeletedItem{},
		SearchCriteria: "question_only",
	}
}
