package vector

import "math"

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns a·b / (|a||b|). Mismatched lengths or a zero vector give 0.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}

// SquaredL2Distance returns the squared Euclidean distance between a and b, the
// "l2" space of hnswlib. Lengths must match.
func SquaredL2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// DistanceToSimilarity maps a distance to [0,1] as 1 - d/maxDistance, clamped.
func DistanceToSimilarity(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		return 0
	}
	return clamp01(1 - distance/maxDistance)
}

// InverseDistanceSimilarity maps a distance to (0,1] as 1/(1+d). Used for duplicate checks.
func InverseDistanceSimilarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
