// Package maintenance implements cache admission, eviction by rebuild, and the feedback
// channel that turns approval signals into saves and deletes.
package maintenance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/embedding"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/storage"
)

const (
	// duplicateCandidates is how many nearest questions the semantic duplicate check inspects.
	duplicateCandidates = 3
	// duplicateQuestionSimilarity is the 1/(1+d) similarity above which a stored question
	// counts as the same question for duplicate detection.
	duplicateQuestionSimilarity = 0.85
	// duplicateAnswerOverlap is the character overlap above which two answers are the same.
	duplicateAnswerOverlap = 0.9
	// deleteCosineThreshold is the question cosine above which delete treats an entry as a match.
	deleteCosineThreshold = 0.95

	questionWeight = 0.4
	answerWeight   = 0.6

	previewLength = 100
)

// Maintainer performs mutations of a collection. It holds no locks; callers serialize
// rebuilds per collection.
type Maintainer struct {
	store     storage.Store
	embedder  embedding.Embedder
	logger    *zap.Logger
	batchSize int
	newID     func() string
}

// Option configures a Maintainer.
type Option func(*Maintainer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Maintainer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBatchSize sets how many texts are embedded per call during rebuilds.
func WithBatchSize(n int) Option {
	return func(m *Maintainer) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// New creates a Maintainer.
func New(store storage.Store, embedder embedding.Embedder, opts ...Option) *Maintainer {
	m := &Maintainer{
		store:     store,
		embedder:  embedder,
		logger:    zap.NewNop(),
		batchSize: 32,
		newID:     func() string { return "faq_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// collection returns the live collection, refusing to work on one written by another
// vectorizer version.
func (m *Maintainer) collection(ctx context.Context, name string) (*models.Collection, error) {
	c, err := m.store.Get(ctx, name)
	if err != nil {
		if cacheerr.IsNotFound(err) {
			return nil, cacheerr.New(cacheerr.CodeCollectionUnavailable,
				fmt.Sprintf("collection %s is not available", name), cacheerr.FieldCollection(name))
		}
		return nil, err
	}
	if current := m.embedder.Version(); c.VectorizerVersion != "" && c.VectorizerVersion != current {
		return nil, cacheerr.New(cacheerr.CodeVectorizerVersionMismatch,
			fmt.Sprintf("collection %s was built with vectorizer %s, current is %s; reconstruct it first",
				name, c.VectorizerVersion, current),
			cacheerr.FieldCollection(name),
			cacheerr.Field("recorded", c.VectorizerVersion),
			cacheerr.Field("current", current),
		)
	}
	return c, nil
}

func invalid(err error) error {
	return cacheerr.New(cacheerr.CodeInvalidInput, err.Error())
}
