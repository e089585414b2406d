// Package storage is the persistent vector store adapter: named collections of cache entries
// in one SQLite file, with integrity repair on open and a dimension guard on every write.
package storage

import (
	"context"

	"github.com/hyperjump/faqcache/internal/models"
)

// Store defines collection lifecycle, bulk insertion and nearest-neighbor queries.
type Store interface {
	// Collection lifecycle
	GetOrCreate(ctx context.Context, name, vectorizerVersion string) (*models.Collection, error)
	Get(ctx context.Context, name string) (*models.Collection, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]models.Collection, error)

	// SafeAdd inserts all entries or none. It fails with a dimension mismatch when the
	// vectors disagree with the collection's recorded dimension.
	SafeAdd(ctx context.Context, name string, entries []models.CacheEntry) error
	// QueryNearest returns up to k candidates by ascending distance.
	QueryNearest(ctx context.Context, name string, vec []float32, k int) ([]models.Candidate, error)
	// GetAll returns every entry in insertion order.
	GetAll(ctx context.Context, name string) ([]models.CacheEntry, error)
	Count(ctx context.Context, name string) (int, error)

	// Swap atomically replaces live with staging; staging no longer exists afterwards.
	Swap(ctx context.Context, staging, live string) error
	// Backup copies the store to a timestamped file and returns its path, or "" when
	// there is nothing to back up.
	Backup(ctx context.Context) (string, error)
	Health(ctx context.Context, name string) (models.StoreHealth, error)

	Path() string
	Close() error
}
