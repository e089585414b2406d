// Package relevance provides the second-stage scorers that rate how well a stored question
// answers a query. Scores are in [0,1].
package relevance

import (
	"context"
	"fmt"

	"github.com/hyperjump/faqcache/internal/config"
)

// Scorer rates a candidate question against a query.
type Scorer interface {
	Score(ctx context.Context, query, candidate string) (float64, error)
	Name() string
}

// New returns the scorer selected by cfg.Provider.
func New(cfg config.RelevanceConfig) (Scorer, error) {
	switch cfg.Provider {
	case "", "overlap":
		return NewOverlapScorer(), nil
	case "http":
		return NewHTTPScorer(cfg)
	case "disabled":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown relevance provider: %s", cfg.Provider)
	}
}

// Disabled always returns the neutral score 0.
type Disabled struct{}

func (Disabled) Score(ctx context.Context, _, _ string) (float64, error) {
	return 0, ctx.Err()
}

func (Disabled) Name() string { return "disabled" }
