// Package vecmath provides the vector primitives used to compare note and
// folder embeddings: cosine similarity, element-wise mean and normalization.
//
// Inputs are float32 slices as produced by embedding models. All
// accumulation happens in float64.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for vector operations.
var (
	// ErrDimensionMismatch is returned when two vectors have different lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDegenerateVector is returned when a vector has zero norm and
	// similarity is undefined. Callers treat it as similarity 0.
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrEmptyInput is returned when an aggregate is requested over nothing.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidParameter is returned for out-of-range tuning parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// InvalidParameter builds an ErrInvalidParameter error naming the parameter
// and the offending value.
func InvalidParameter(name string, value any, constraint string) error {
	return fmt.Errorf("%w: %s=%v (%s)", ErrInvalidParameter, name, value, constraint)
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// IsZero reports whether v is empty or has zero norm.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the cosine of the angle between a and b.
//
// Vectors of different length yield ErrDimensionMismatch; they are never
// truncated. If either vector has zero norm the similarity is 0 and
// ErrDegenerateVector is returned alongside it.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0, ErrDegenerateVector
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Rounding can push the ratio just outside [-1, 1].
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Similarity is CosineSimilarity with degenerate vectors mapped to 0.
// Only a dimension mismatch is reported.
func Similarity(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil && !errors.Is(err, ErrDegenerateVector) {
		return 0, err
	}
	return sim, nil
}

// CosineDistance returns 1 - cosine similarity, never negative.
// Degenerate vectors are at distance 1 from everything.
func CosineDistance(a, b []float32) (float64, error) {
	sim, err := Similarity(a, b)
	if err != nil {
		return 0, err
	}
	d := 1 - sim
	if d < 0 {
		d = 0
	}
	return d, nil
}

// Mean returns the element-wise mean of vectors.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	n := float64(len(vectors))
	out := make([]float32, dim)
	for j, s := range sum {
		out[j] = float32(s / n)
	}
	return out, nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero copy; similarity against it is undefined.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := Norm(v)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// NormalizedMean is Normalize(Mean(vectors)).
func NormalizedMean(vectors [][]float32) ([]float32, error) {
	m, err := Mean(vectors)
	if err != nil {
		return nil, err
	}
	return Normalize(m), nil
}

// Clone returns a copy of v.
func Clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
