package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDistanceToSimilarity(t *testing.T) {
	tests := []struct {
		d, max, want float64
	}{
		{0, 2, 1},
		{1, 2, 0.5},
		{2, 2, 0},
		{3, 2, 0},
		{0.1, 0, 0},
	}
	for _, tt := range tests {
		if got := DistanceToSimilarity(tt.d, tt.max); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DistanceToSimilarity(%v, %v) = %v, want %v", tt.d, tt.max, got, tt.want)
		}
	}
}

func TestInverseDistanceSimilarity(t *testing.T) {
	if got := InverseDistanceSimilarity(0); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := InverseDistanceSimilarity(1); got != 0.5 {
		t.Errorf("got %v, want 0.5", got)
	}
}

func TestSquaredL2Distance(t *testing.T) {
	if got := SquaredL2Distance([]float32{0, 0}, []float32{3, 4}); got != 25 {
		t.Errorf("got %v, want 25", got)
	}
	if got := SquaredL2Distance([]float32{1, 0}, []float32{0, 1}); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
}
