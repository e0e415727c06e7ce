package domain

import (
	"github.com/google/uuid"
)

// TrainingJob describes one training request. It lives only for the duration
// of a single training call and is never persisted.
type TrainingJob struct {
	OwnerID   uuid.UUID
	Name      string
	ModelType string
	Params    map[string]any

	Features [][]float64
	Labels   []string

	// TestSize is the holdout fraction used when KFolds <= 1.
	TestSize float64
	// KFolds > 1 selects k-fold cross-validation.
	KFolds int

	// Seed makes the split and unseeded estimators reproducible. Without it
	// every run draws a fresh partition.
	Seed *int64
}

// CrossValidated reports whether the job is evaluated with k-fold cross-validation.
func (j TrainingJob) CrossValidated() bool {
	return j.KFolds > 1
}
