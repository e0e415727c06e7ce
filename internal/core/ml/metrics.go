package ml

import (
	"fmt"

	"model-trainer-service/internal/core/domain"
)

// Accuracy is the fraction of positions where predicted equals actual.
func Accuracy(actual, predicted []string) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("accuracy: %d labels vs %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return 0, domain.ErrEmptyDataset
	}
	hits := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(actual)), nil
}

// checkMatrix validates a training or prediction matrix and returns its width.
func checkMatrix(X [][]float64, want int) (int, error) {
	if len(X) == 0 {
		return 0, domain.ErrEmptyDataset
	}
	width := len(X[0])
	if want >= 0 && width != want {
		return 0, fmt.Errorf("%w: got %d columns, want %d", domain.ErrFeatureMismatch, width, want)
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", domain.ErrFeatureMismatch, i, len(row), width)
		}
	}
	return width, nil
}

func checkFitInput(X [][]float64, y []string) (int, error) {
	width, err := checkMatrix(X, -1)
	if err != nil {
		return 0, err
	}
	if len(y) != len(X) {
		return 0, fmt.Errorf("%w: %d rows but %d labels", domain.ErrFeatureMismatch, len(X), len(y))
	}
	return width, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
