package maintenance

import (
	"context"
	"strings"

	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/vector"
	"github.com/hyperjump/faqcache/pkg/utils"
)

// FindSimilarQuestion looks for a stored question equal to q after normalization (score 1)
// or, failing that, the nearest stored question with 1/(1+d) at or above threshold.
// It returns nil when nothing qualifies.
func (m *Maintainer) FindSimilarQuestion(ctx context.Context, collection, q string, threshold float64) (*models.Match, error) {
	all, err := m.store.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	normalized := utils.NormalizeText(q)
	for _, e := range all {
		if utils.NormalizeText(e.Question) == normalized {
			return &models.Match{Entry: trimmed(e), Score: 1}, nil
		}
	}

	vec, err := m.embedder.Embed(ctx, q)
	if err != nil {
		return nil, err
	}
	nearest, err := m.store.QueryNearest(ctx, collection, vec, 1)
	if err != nil {
		return nil, err
	}
	if len(nearest) == 0 {
		return nil, nil
	}
	if sim := vector.InverseDistanceSimilarity(nearest[0].VectorDistance); sim >= threshold {
		return &models.Match{Entry: trimmed(nearest[0].Entry), Score: sim}, nil
	}
	return nil, nil
}

// FindSimilarPair scores every stored entry with both fields present as
// 0.4*cos(question) + 0.6*cos(answer) on fresh vectors and returns the best one if its
// score is at or above threshold. The first entry wins a tie.
func (m *Maintainer) FindSimilarPair(ctx context.Context, collection, q, a string, threshold float64) (*models.Match, error) {
	all, err := m.store.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	var (
		pairs     []models.CacheEntry
		questions []string
		answers   []string
	)
	for _, e := range all {
		e = trimmed(e)
		if e.Question == "" || e.Answer == "" {
			continue
		}
		pairs = append(pairs, e)
		questions = append(questions, e.Question)
		answers = append(answers, e.Answer)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	targets, err := m.embedder.EmbedBatch(ctx, []string{q, a})
	if err != nil {
		return nil, err
	}
	qVecs, err := embedding.Encode(ctx, m.embedder, questions, m.batchSize, nil)
	if err != nil {
		return nil, err
	}
	aVecs, err := embedding.Encode(ctx, m.embedder, answers, m.batchSize, nil)
	if err != nil {
		return nil, err
	}

	best := -1
	bestScore := 0.0
	for i := range pairs {
		score := questionWeight*vector.CosineSimilarity(targets[0], qVecs[i]) +
			answerWeight*vector.CosineSimilarity(targets[1], aVecs[i])
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best == -1 || bestScore < threshold {
		return nil, nil
	}
	return &models.Match{Entry: pairs[best], Score: bestScore}, nil
}

func trimmed(e models.CacheEntry) models.CacheEntry {
	e.Question = strings.TrimSpace(e.Question)
	e.Answer = strings.TrimSpace(e.Answer)
	return e
}
