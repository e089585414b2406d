// Package embeddingtest provides an embedder with hand-picked vectors for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/faqcache/internal/embedding"
)

// StaticEmbedder returns the registered vector for a text (matched after trimming and
// lowercasing) and falls back to the deterministic mock embedding for anything else.
type StaticEmbedder struct {
	mu       sync.Mutex
	dim      int
	version  string
	vectors  map[string][]float32
	fallback *embedding.MockEmbedder
	fail     error
	calls    int
}

// New creates a StaticEmbedder of the given dimension.
func New(dim int) *StaticEmbedder {
	return &StaticEmbedder{
		dim:      dim,
		version:  fmt.Sprintf("static:%d", dim),
		vectors:  make(map[string][]float32),
		fallback: embedding.NewMockEmbedder(dim),
	}
}

// Set registers vec for text and returns the embedder for chaining.
func (e *StaticEmbedder) Set(text string, vec ...float32) *StaticEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[key(text)] = vec
	return e
}

// SetVersion overrides the reported model version.
func (e *StaticEmbedder) SetVersion(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.version = v
}

// FailWith makes every subsequent call return err; nil restores normal behavior.
func (e *StaticEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

// Calls returns how many texts have been embedded.
func (e *StaticEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	fail := e.fail
	vec, ok := e.vectors[key(text)]
	e.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if ok {
		return append([]float32(nil), vec...), nil
	}
	return e.fallback.Embed(ctx, text)
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int { return e.dim }

func (e *StaticEmbedder) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

func (e *StaticEmbedder) Close() error { return nil }

func key(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
