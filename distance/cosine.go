package distance

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Cosine computes the cosine distance.
// D(x, y) = 1 - (x . y) / (||x|| * ||y||)
//
// A zero vector is at distance 0 from itself and 1 from any non-zero
// vector.
func Cosine(x, y []float64) float64 {
	normX := floats.Dot(x, x)
	normY := floats.Dot(y, y)
	if normX == 0 && normY == 0 {
		return 0
	}
	if normX == 0 || normY == 0 {
		return 1
	}

	similarity := floats.Dot(x, y) / (math.Sqrt(normX) * math.Sqrt(normY))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	} else if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
