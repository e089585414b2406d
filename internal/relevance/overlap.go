package relevance

import (
	"context"
	"strings"

	"github.com/hyperjump/faqcache/internal/embedding"
)

// OverlapScorer scores the share of query terms that also appear in the candidate.
// Text without spaces is split into character bigrams so Japanese questions overlap too.
type OverlapScorer struct{}

// NewOverlapScorer creates a term-overlap scorer.
func NewOverlapScorer() *OverlapScorer {
	return &OverlapScorer{}
}

// Score returns |terms(query) ∩ terms(candidate)| / |terms(query)|. Identical text scores 1.
func (s *OverlapScorer) Score(ctx context.Context, query, candidate string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return 0, nil
	}
	if q == c {
		return 1, nil
	}

	queryTerms := termSet(q)
	if len(queryTerms) == 0 {
		return 0, nil
	}
	docTerms := termSet(c)
	matches := 0
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms)), nil
}

func (s *OverlapScorer) Name() string {
	return "overlap"
}

func termSet(text string) map[string]struct{} {
	terms := embedding.Terms(text)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}
