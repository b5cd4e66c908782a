package database

import "math"

// CosineDistance computes 1 - cosine similarity between two vectors.
// Returns a value in [0, 2] where 0 means identical direction.
// Zero-length or mismatched vectors yield the maximally dissimilar 1.0.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Clamp against fp drift so distances stay within [0, 2].
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}

	return 1.0 - sim
}
