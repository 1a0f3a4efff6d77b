package vector

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Only the common prefix is compared when the lengths differ, so records written
// before a dimension change can still be scored. Zero-magnitude input yields 0.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom <= 0 || math.IsInf(denom, 0) || math.IsNaN(denom) {
		return 0
	}
	sim := dot / denom
	if math.IsNaN(sim) {
		return 0
	}
	return math.Max(-1, math.Min(1, sim))
}

// Fit returns a copy of v with exactly dim entries: the tail is dropped when v is
// longer and zeros are appended when it is shorter. dim <= 0 returns a plain copy.
func Fit(v []float32, dim int) []float32 {
	if dim <= 0 {
		dim = len(v)
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
