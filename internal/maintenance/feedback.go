package maintenance

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/pkg/utils"
)

// Feedback turns an approval signal into an action. A positive signal saves the pair
// unless a similar question is already cached; a negative signal deletes the located
// match, using the combined question+answer score when an answer is given. Feedback only
// ever acts on a located match.
func (m *Maintainer) Feedback(ctx context.Context, collection string, req models.FeedbackRequest, saveThreshold, deleteThreshold float64) (models.FeedbackResult, error) {
	if err := req.Validate(); err != nil {
		return models.FeedbackResult{}, invalid(err)
	}
	if _, err := m.collection(ctx, collection); err != nil {
		return models.FeedbackResult{}, err
	}
	if req.CacheSignal == 1 {
		return m.positive(ctx, collection, req, saveThreshold)
	}
	return m.negative(ctx, collection, req, deleteThreshold)
}

func (m *Maintainer) positive(ctx context.Context, collection string, req models.FeedbackRequest, threshold float64) (models.FeedbackResult, error) {
	match, err := m.FindSimilarQuestion(ctx, collection, req.Query, threshold)
	if err != nil {
		return models.FeedbackResult{}, err
	}
	if match != nil {
		return models.FeedbackResult{
			Success:         true,
			Message:         fmt.Sprintf("Similar question already exists in cache (similarity: %.3f)", match.Score),
			ActionTaken:     models.ActionNoAction,
			CacheSignal:     req.CacheSignal,
			SimilarFound:    true,
			SimilarityScore: models.Float(match.Score),
			MatchedQuestion: match.Entry.Question,
			Details: map[string]any{
				"reason":         "duplicate_detected",
				"matched_answer": utils.Truncate(match.Entry.Answer, previewLength),
			},
		}, nil
	}

	if req.Answer == "" {
		return models.FeedbackResult{}, cacheerr.New(cacheerr.CodeAnswerRequired, "answer is required when cache_signal=1")
	}
	saved, err := m.Save(ctx, collection, models.SaveRequest{Question: req.Query, Answer: req.Answer})
	if err != nil {
		return models.FeedbackResult{}, err
	}
	if saved.DuplicateDetected {
		res := models.FeedbackResult{
			Success:         true,
			Message:         saved.Message,
			ActionTaken:     models.ActionNoAction,
			CacheSignal:     req.CacheSignal,
			SimilarFound:    true,
			SimilarityScore: saved.SimilarityScore,
			Details:         map[string]any{"reason": "duplicate_detected"},
		}
		if saved.Existing != nil {
			res.MatchedQuestion = saved.Existing.Question
			res.Details["matched_answer"] = utils.Truncate(saved.Existing.Answer, previewLength)
		}
		return res, nil
	}

	m.logger.Info("feedback saved entry", zap.String("collection", collection), zap.String("id", saved.EntryID))
	return models.FeedbackResult{
		Success:     true,
		Message:     "FAQ saved successfully to cache",
		ActionTaken: models.ActionSaved,
		CacheSignal: req.CacheSignal,
		Details: map[string]any{
			"faq_id":        saved.EntryID,
			"question":      req.Query,
			"answer_length": utf8.RuneCountInString(req.Answer),
		},
	}, nil
}

func (m *Maintainer) negative(ctx context.Context, collection string, req models.FeedbackRequest, threshold float64) (models.FeedbackResult, error) {
	var (
		match *models.Match
		err   error
	)
	if req.Answer == "" {
		match, err = m.FindSimilarQuestion(ctx, collection, req.Query, threshold)
	} else {
		match, err = m.FindSimilarPair(ctx, collection, req.Query, req.Answer, threshold)
	}
	if err != nil {
		return models.FeedbackResult{}, err
	}
	if match == nil {
		return noMatchFeedback(req), nil
	}

	deleted, err := m.Delete(ctx, collection, models.DeleteRequest{Question: match.Entry.Question})
	if err != nil {
		return models.FeedbackResult{}, err
	}
	if deleted.NoMatch {
		return noMatchFeedback(req), nil
	}

	items := make([]map[string]string, 0, len(deleted.DeletedItems))
	for _, item := range deleted.DeletedItems {
		items = append(items, map[string]string{
			"question":       item.Question,
			"answer_preview": utils.Truncate(item.Answer, previewLength),
		})
	}
	m.logger.Info("feedback deleted entries",
		zap.String("collection", collection),
		zap.Int("deleted", deleted.DeletedCount),
		zap.Float64("similarity", match.Score))
	return models.FeedbackResult{
		Success:         true,
		Message:         fmt.Sprintf("FAQ deleted successfully from cache (similarity: %.3f)", match.Score),
		ActionTaken:     models.ActionDeleted,
		CacheSignal:     req.CacheSignal,
		SimilarFound:    true,
		SimilarityScore: models.Float(match.Score),
		MatchedQuestion: match.Entry.Question,
		Details: map[string]any{
			"deleted_count":   deleted.DeletedCount,
			"remaining_count": deleted.RemainingCount,
			"deleted_items":   items,
		},
	}, nil
}

func noMatchFeedback(req models.FeedbackRequest) models.FeedbackResult {
	return models.FeedbackResult{
		Success:     true,
		Message:     "No similar Q&A pair found in cache",
		ActionTaken: models.ActionNoAction,
		CacheSignal: req.CacheSignal,
		Details:     map[string]any{"reason": "no_match_found"},
	}
}
