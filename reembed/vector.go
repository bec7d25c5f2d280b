package reembed

import "math"

// NormalizeVector scales v to unit length. A zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}

	magnitude := math.Sqrt(sum)
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// uniformDimension returns the shared length of vectors, or false when
// the lengths differ.
func uniformDimension(vectors [][]float32) (int, bool) {
	if len(vectors) == 0 {
		return 0, true
	}
	dim := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return 0, false
		}
	}
	return dim, true
}
