// Package ml holds the trainable model variants, the estimators behind them and
// the registry that maps a model-type tag to a variant constructor.
package ml

import (
	"model-trainer-service/internal/core/domain"
)

// Estimator is a bare learning algorithm: fit on labelled rows, predict labels.
type Estimator interface {
	Fit(X [][]float64, y []string) error
	Predict(X [][]float64) ([]string, error)
}

// ProbabilityEstimator is an Estimator that can also report one probability
// per class, ordered as Classes.
type ProbabilityEstimator interface {
	Estimator
	PredictProba(X [][]float64) ([][]float64, error)
	Classes() []string
}

// Model is a trainable, predictable variant. The set of implementations is
// closed: LinearClassifier, EnsembleClassifier and BinaryNeuralNet.
type Model interface {
	Type() domain.ModelType
	Params() map[string]any

	// Train fits on exactly the rows given and returns accuracy measured by
	// re-predicting those same rows.
	Train(X [][]float64, y []string) (float64, error)
	// Predict fails with domain.ErrModelNotFitted until Train or a load succeeds.
	Predict(X [][]float64) ([]string, error)
	IsFitted() bool

	// Estimator returns the fitted handle, or nil before fitting.
	Estimator() Estimator
	// NewEstimator returns a fresh unfitted copy of the underlying algorithm
	// configured with the same hyperparameters.
	NewEstimator() Estimator

	// SetSeed makes estimators without an explicit random_state reproducible.
	SetSeed(seed uint64)
}

// Constructor builds an unfitted variant, validating its hyperparameters.
type Constructor func(params map[string]any) (Model, error)
