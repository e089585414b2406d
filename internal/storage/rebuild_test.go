package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/models"
)

func seedLive(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, "faq", "v1")
	require.NoError(t, err)
	require.NoError(t, s.SafeAdd(ctx, "faq", []models.CacheEntry{entry("old", "old", "old", 1, 0)}))
}

func assertOnlyLive(t *testing.T, s *SQLiteStore) {
	t.Helper()
	list, err := s.List(context.Background())
	require.NoError(t, err)
	for _, c := range list {
		assert.False(t, strings.Contains(c.Name, "__rebuild_"), "staging collection %s left behind", c.Name)
	}
}

func TestRebuild_ReplacesLive(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	seedLive(t, s)
	ctx := context.Background()

	err := Rebuild(ctx, s, "faq", "v2", []models.CacheEntry{
		entry("faq_0", "a", "1", 0, 1),
		entry("faq_1", "b", "2", 1, 1),
	})
	require.NoError(t, err)

	all, err := s.GetAll(ctx, "faq")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "faq_0", all[0].ID)

	c, err := s.Get(ctx, "faq")
	require.NoError(t, err)
	assert.Equal(t, "v2", c.VectorizerVersion)
	assertOnlyLive(t, s)
}

func TestRebuild_EmptyEntriesLeavesEmptyCollection(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	seedLive(t, s)
	ctx := context.Background()

	require.NoError(t, Rebuild(ctx, s, "faq", "v1", nil))
	n, err := s.Count(ctx, "faq")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRebuild_FailureKeepsLive(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	seedLive(t, s)
	ctx := context.Background()

	err := Rebuild(ctx, s, "faq", "v1", []models.CacheEntry{
		entry("faq_0", "a", "1", 0, 1),
		entry("faq_1", "b", "2", 1, 1, 1),
	})
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeDimensionMismatch))

	all, err := s.GetAll(ctx, "faq")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "old", all[0].ID)
	assertOnlyLive(t, s)
}

func TestRebuild_CancelledKeepsLive(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	seedLive(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Rebuild(ctx, s, "faq", "v1", []models.CacheEntry{entry("faq_0", "a", "1", 0, 1)})
	require.Error(t, err)
	assert.True(t, cacheerr.IsTimeout(err))

	n, err := s.Count(context.Background(), "faq")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assertOnlyLive(t, s)
}
