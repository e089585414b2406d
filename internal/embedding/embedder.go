// Package embedding provides the question vectorizer: ONNX inference, a deterministic mock, and caching.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/faqcache/internal/cacheerr"
)

// Embedder produces vector embeddings for text. Implementations must be deterministic
// for a fixed Version and must fail rather than return placeholder vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Version identifies the model generation. Vectors from different versions are not comparable.
	Version() string
	Close() error
}

// ErrModelUnavailable wraps err as a model-unavailable failure.
func ErrModelUnavailable(err error, modelPath string) error {
	return cacheerr.Wrap(err, cacheerr.CodeModelUnavailable,
		fmt.Sprintf("embedding model unavailable: %s", modelPath),
		cacheerr.Field("model_path", modelPath))
}

// Encode embeds texts in batches of batchSize, calling progress after each batch with the
// number of texts done so far. progress may be nil.
func Encode(ctx context.Context, e Embedder, texts []string, batchSize int, progress func(done int)) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(texts))
		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, cacheerr.Errorf(cacheerr.CodeEmbeddingFailure,
				"embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
		if progress != nil {
			progress(len(out))
		}
	}
	return out, nil
}
