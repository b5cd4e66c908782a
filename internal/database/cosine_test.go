package database

import (
	"math"
	"testing"
)

func TestCosineDistance_Identical(t *testing.T) {
	v := []float32{0.6, 0.8}
	d := CosineDistance(v, v)
	if math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %f", d)
	}
}

func TestCosineDistance_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	d := CosineDistance(a, b)
	if math.Abs(d-1.0) > 1e-9 {
		t.Errorf("expected distance 1 for orthogonal vectors, got %f", d)
	}
}

func TestCosineDistance_Opposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	d := CosineDistance(a, b)
	if math.Abs(d-2.0) > 1e-9 {
		t.Errorf("expected distance 2 for opposite vectors, got %f", d)
	}
}

func TestCosineDistance_ZeroVector(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{1, 0}
	if d := CosineDistance(a, b); d != 1.0 {
		t.Errorf("expected distance 1 for zero vector, got %f", d)
	}
}

func TestCosineDistance_MismatchedLengths(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0, 0}
	if d := CosineDistance(a, b); d != 1.0 {
		t.Errorf("expected distance 1 for mismatched lengths, got %f", d)
	}
}

func TestCosineDistance_Clamped(t *testing.T) {
	// Long parallel vectors can push similarity past 1 through rounding;
	// the distance must stay non-negative.
	a := make([]float32, 512)
	for i := range a {
		a[i] = 0.0441941738
	}
	d := CosineDistance(a, a)
	if d < 0 {
		t.Errorf("expected non-negative distance, got %g", d)
	}
}
