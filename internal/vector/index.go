// Package vector provides the in-memory nearest-neighbor index and distance/similarity helpers.
package vector

import "context"

// VectorIndex defines vector storage and nearest-neighbor search by ascending distance.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string
	Distance float64 // squared Euclidean distance, smaller is nearer
}
