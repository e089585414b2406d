package vector

import (
	"context"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[0].Distance != 0 {
		t.Errorf("top result should be a at distance 0, got %s %v", results[0].ID, results[0].Distance)
	}
	if results[1].ID != "b" || results[1].Distance <= results[0].Distance {
		t.Errorf("second result should be b, got %s %v", results[1].ID, results[1].Distance)
	}
}

func TestMemoryIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"first", "second", "third"}, [][]float32{{0, 1}, {0, 1}, {0, 1}})
	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].ID != want {
			t.Errorf("results[%d]=%s, want %s", i, results[i].ID, want)
		}
	}
}

func TestMemoryIndex_DimensionMismatchRejectsBatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	err := idx.Add(ctx, []string{"ok", "bad"}, [][]float32{{1, 0}, {1, 0, 0}})
	if err == nil {
		t.Fatal("expected dimension mismatch")
	}
	if idx.Size() != 0 {
		t.Errorf("batch should not be partially applied, size=%d", idx.Size())
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected query dimension mismatch")
	}
}

func TestMemoryIndex_DistanceIsSquaredL2(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "x" || results[0].Distance != 0 {
		t.Errorf("results[0] = %s %v, want x 0", results[0].ID, results[0].Distance)
	}
	if results[1].ID != "y" || results[1].Distance != 2 {
		t.Errorf("results[1] = %s %v, want y 2", results[1].ID, results[1].Distance)
	}
}

func TestMemoryIndex_EmptySearch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
