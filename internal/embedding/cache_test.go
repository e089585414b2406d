package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	v, ok := c.Get("a")
	require.False(t, ok)
	require.Nil(t, v)

	c.Set("a", []float32{1, 2, 3})
	v, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)

	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	_, ok = c.Get("a")
	assert.False(t, ok, "a should be evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestEmbeddingCache_LenAndPurge(t *testing.T) {
	c := NewEmbeddingCache(4)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	require.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "expected miss after Purge")
}
