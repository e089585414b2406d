package maintenance

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/vector"
	"github.com/hyperjump/faqcache/pkg/utils"
)

// Save admits a question/answer pair unless an equivalent entry already exists.
// Duplicate detection runs cheapest first: exact normalized match, then nearest questions
// with an identical answer, then nearest questions with a near-identical answer.
// A failing duplicate check is logged and the save goes ahead.
func (m *Maintainer) Save(ctx context.Context, collection string, req models.SaveRequest) (models.SaveResult, error) {
	if err := req.Validate(); err != nil {
		return models.SaveResult{}, invalid(err)
	}
	if _, err := m.collection(ctx, collection); err != nil {
		return models.SaveResult{}, err
	}

	vec, err := m.embedder.Embed(ctx, req.Question)
	if err != nil {
		return models.SaveResult{}, err
	}

	dup, err := m.findDuplicate(ctx, collection, req, vec)
	if err != nil {
		m.logger.Warn("duplicate check failed, proceeding with save",
			zap.String("collection", collection), zap.Error(err))
	} else if dup != nil {
		m.logger.Info("duplicate entry detected, skipping save",
			zap.String("collection", collection), zap.String("question", utils.Truncate(req.Question, 50)))
		return *dup, nil
	}

	entry := models.CacheEntry{
		ID:       m.newID(),
		Question: req.Question,
		Answer:   req.Answer,
		Vector:   vec,
	}
	if err := m.store.SafeAdd(ctx, collection, []models.CacheEntry{entry}); err != nil {
		return models.SaveResult{}, err
	}
	m.logger.Info("entry saved", zap.String("collection", collection), zap.String("id", entry.ID))
	return models.SaveResult{
		Success: true,
		Message: "FAQ saved successfully",
		EntryID: entry.ID,
	}, nil
}

func (m *Maintainer) findDuplicate(ctx context.Context, collection string, req models.SaveRequest, vec []float32) (*models.SaveResult, error) {
	all, err := m.store.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	q, a := utils.NormalizeText(req.Question), utils.NormalizeText(req.Answer)
	for _, e := range all {
		if utils.NormalizeText(e.Question) == q && utils.NormalizeText(e.Answer) == a {
			return &models.SaveResult{
				Success:           true,
				Message:           "FAQ already exists (exact duplicate detected)",
				DuplicateDetected: true,
				Existing:          existing(e, nil),
			}, nil
		}
	}

	candidates, err := m.store.QueryNearest(ctx, collection, vec, duplicateCandidates)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		sim := vector.InverseDistanceSimilarity(c.VectorDistance)
		if sim <= duplicateQuestionSimilarity {
			continue
		}
		storedAnswer := strings.TrimSpace(c.Entry.Answer)
		if storedAnswer == req.Answer {
			return &models.SaveResult{
				Success:           true,
				Message:           "FAQ already exists (similar question with same answer)",
				DuplicateDetected: true,
				SimilarityScore:   models.Float(sim),
				Existing:          existing(c.Entry, models.Float(sim)),
			}, nil
		}
		if utils.CompactLower(req.Answer) == "" || utils.CompactLower(storedAnswer) == "" {
			continue
		}
		if overlap := utils.CharOverlapRatio(req.Answer, storedAnswer); overlap > duplicateAnswerOverlap {
			return &models.SaveResult{
				Success:           true,
				Message:           "Very similar FAQ already exists",
				DuplicateDetected: true,
				SimilarityScore:   models.Float(sim),
				SimilarityScores:  map[string]float64{"question": sim, "answer": overlap},
				Existing:          existing(c.Entry, models.Float(sim)),
			}, nil
		}
	}
	return nil, nil
}

func existing(e models.CacheEntry, sim *float64) *models.ExistingEntry {
	return &models.ExistingEntry{
		Question:   strings.TrimSpace(e.Question),
		Answer:     strings.TrimSpace(e.Answer),
		Similarity: sim,
	}
}
