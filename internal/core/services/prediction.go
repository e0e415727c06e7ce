package services

import (
	"fmt"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
)

type PredictionService struct {
	registry     *ml.Registry
	maxBatchSize int
}

func NewPredictionService(registry *ml.Registry, maxBatchSize int) *PredictionService {
	return &PredictionService{registry: registry, maxBatchSize: maxBatchSize}
}

func (s *PredictionService) MaxBatchSize() int {
	return s.maxBatchSize
}

// Predict returns one probability vector per row when wantProba is set and
// the fitted estimator can produce them, and one label per row otherwise.
func (s *PredictionService) Predict(model ml.Model, modelType string, rows [][]float64, wantProba bool) (*domain.Prediction, error) {
	if _, _, err := s.registry.Resolve(modelType); err != nil {
		return nil, err
	}
	if s.maxBatchSize > 0 && len(rows) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d rows, maximum is %d", domain.ErrBatchTooLarge, len(rows), s.maxBatchSize)
	}
	if model == nil || !model.IsFitted() {
		return nil, domain.ErrModelNotFitted
	}
	if len(rows) == 0 {
		return nil, domain.ErrEmptyDataset
	}

	if wantProba {
		if est, ok := model.Estimator().(ml.ProbabilityEstimator); ok {
			proba, err := est.PredictProba(rows)
			if err != nil {
				return nil, err
			}
			return &domain.Prediction{Probabilities: proba}, nil
		}
	}
	labels, err := model.Predict(rows)
	if err != nil {
		return nil, err
	}
	return &domain.Prediction{Labels: labels}, nil
}
