package model

import "errors"

// ErrEmptyOutput is returned by ArgMax for an empty probability vector.
var ErrEmptyOutput = errors.New("classifier returned no probabilities")

// Classifier maps a normalized image tensor to class probabilities.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Predict(input []float32) ([]float32, error)
}

// ArgMax returns the index and value of the highest probability.
// Ties resolve to the lowest index.
func ArgMax(probabilities []float32) (int, float32, error) {
	if len(probabilities) == 0 {
		return -1, 0, ErrEmptyOutput
	}

	maxIdx := 0
	maxProb := probabilities[0]
	for i := 1; i < len(probabilities); i++ {
		if probabilities[i] > maxProb {
			maxProb = probabilities[i]
			maxIdx = i
		}
	}

	return maxIdx, maxProb, nil
}

// ShapeSize is the number of elements in a tensor of the given shape.
func ShapeSize(shape []int64) int {
	size := 1
	for _, d := range shape {
		size *= int(d)
	}
	return size
}
