package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/models"
)

// StagingName returns a fresh staging collection name for rebuilding live.
func StagingName(live string) string {
	return fmt.Sprintf("%s__rebuild_%d", live, time.Now().UnixNano())
}

// Rebuild replaces the contents of live with entries. The entries are written to a staging
// collection, the staging count is verified, and only then is staging swapped in. On any
// failure staging is dropped and live is left exactly as it was.
func Rebuild(ctx context.Context, s Store, live, vectorizerVersion string, entries []models.CacheEntry) (err error) {
	staging := StagingName(live)
	if _, err := s.GetOrCreate(ctx, staging, vectorizerVersion); err != nil {
		return RebuildError(err, "failed to create staging collection")
	}
	defer func() {
		if err != nil {
			_ = s.Delete(context.WithoutCancel(ctx), staging)
		}
	}()

	if err := s.SafeAdd(ctx, staging, entries); err != nil {
		return RebuildError(err, "failed to populate staging collection")
	}
	n, err := s.Count(ctx, staging)
	if err != nil {
		return RebuildError(err, "failed to verify staging collection")
	}
	if n != len(entries) {
		return cacheerr.New(cacheerr.CodeRebuildVerifyFailure,
			fmt.Sprintf("staging collection has %d entries, expected %d", n, len(entries)),
			cacheerr.FieldCollection(staging))
	}
	if err := ctx.Err(); err != nil {
		return RebuildError(err, "rebuild cancelled before swap")
	}
	if err := s.Swap(ctx, staging, live); err != nil {
		return RebuildError(err, "failed to swap staging collection")
	}
	return nil
}

// RebuildError maps cancellation and deadline errors to the rebuild timeout code and
// wraps everything else with msg.
func RebuildError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return cacheerr.New(cacheerr.CodeRebuildTimeout, fmt.Sprintf("%s: %v", msg, err))
	}
	if cacheerr.CodeOf(err) != "" {
		return err
	}
	return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, msg)
}
