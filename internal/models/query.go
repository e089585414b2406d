package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a cache lookup. Unset thresholds fall back to configured defaults.
type QueryRequest struct {
	Query              string   `json:"query"`
	VectorThreshold    *float64 `json:"vector_similarity_threshold,omitempty"`
	RelevanceThreshold *float64 `json:"relevance_threshold,omitempty"`
	CrossEncoderCompat *float64 `json:"cross_encoder_threshold,omitempty"` // older clients
}

// Validate trims the query and checks threshold ranges.
func (q *QueryRequest) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.RelevanceThreshold == nil && q.CrossEncoderCompat != nil {
		q.RelevanceThreshold = q.CrossEncoderCompat
	}
	if err := checkUnit("vector_similarity_threshold", q.VectorThreshold); err != nil {
		return err
	}
	return checkUnit("relevance_threshold", q.RelevanceThreshold)
}

// Thresholds resolves the request thresholds against defaults.
func (q *QueryRequest) Thresholds(defVector, defRelevance float64) (float64, float64) {
	v, r := defVector, defRelevance
	if q.VectorThreshold != nil {
		v = *q.VectorThreshold
	}
	if q.RelevanceThreshold != nil {
		r = *q.RelevanceThreshold
	}
	return v, r
}

// Outcome is the terminal state of a query.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeError Outcome = "error"
)

// Miss reasons.
const (
	ReasonVectorSimilarityTooLow = "vector_similarity_too_low"
	ReasonRelevanceScoreTooLow   = "relevance_score_too_low"
	ReasonNoCandidates           = "no_candidates"
)

// Confidence carries the scores behind a query decision.
type Confidence struct {
	VectorSimilarity   *float64 `json:"vector_similarity,omitempty"`
	RelevanceScore     *float64 `json:"relevance_score,omitempty"`
	VectorDistance     *float64 `json:"vector_distance,omitempty"`
	VectorThreshold    float64  `json:"vector_threshold"`
	RelevanceThreshold float64  `json:"relevance_threshold"`
}

// QueryResult is a tagged result: exactly one of hit, miss (with Reason) or error (with Err).
type QueryResult struct {
	Outcome    Outcome    `json:"outcome"`
	CacheHit   bool       `json:"cache_hit"`
	Answer     string     `json:"answer,omitempty"`
	Question   string     `json:"question,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Message    string     `json:"message,omitempty"`
	Confidence Confidence `json:"confidence"`
	Err        error      `json:"-"`
}

// Hit builds a hit result.
func Hit(entry CacheEntry, c Confidence) QueryResult {
	return QueryResult{
		Outcome:    OutcomeHit,
		CacheHit:   true,
		Answer:     entry.Answer,
		Question:   entry.Question,
		Confidence: c,
		Message:    "cache hit",
	}
}

// Miss builds a miss result with a diagnostic reason.
func Miss(reason string, c Confidence) QueryResult {
	return QueryResult{
		Outcome:    OutcomeMiss,
		Reason:     reason,
		Confidence: c,
		Message:    "cache miss",
	}
}

// Failed builds an error result.
func Failed(err error) QueryResult {
	return QueryResult{Outcome: OutcomeError, Err: err, Message: err.Error()}
}

func checkUnit(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, *v)
	}
	return nil
}

// Float returns a pointer to v. Used for optional score fields.
func Float(v float64) *float64 {
	return &v
}
