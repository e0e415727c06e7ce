package ml

import (
	"context"
	"fmt"
	"runtime"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// CVResult is the outcome of a k-fold cross-validation run.
type CVResult struct {
	Scores []float64
	Mean   float64
	StdDev float64
}

// CrossValScore fits one fresh estimator per stratified fold and scores it on
// the held-out rows. Folds run in parallel; newEstimator is called once per
// fold before any fitting starts.
func CrossValScore(ctx context.Context, newEstimator func() Estimator, X [][]float64, y []string, k int) (CVResult, error) {
	if _, err := checkFitInput(X, y); err != nil {
		return CVResult{}, err
	}
	splits, err := StratifiedKFold(y, k)
	if err != nil {
		return CVResult{}, err
	}

	estimators := make([]Estimator, len(splits))
	for i := range splits {
		estimators[i] = newEstimator()
	}

	scores := make([]float64, len(splits))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, split := range splits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trainX, trainY := Subset(X, y, split.Train)
			testX, testY := Subset(X, y, split.Test)
			est := estimators[i]
			if err := est.Fit(trainX, trainY); err != nil {
				return fmt.Errorf("fold %d: %w", i+1, err)
			}
			pred, err := est.Predict(testX)
			if err != nil {
				return fmt.Errorf("fold %d: %w", i+1, err)
			}
			acc, err := Accuracy(testY, pred)
			if err != nil {
				return fmt.Errorf("fold %d: %w", i+1, err)
			}
			scores[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CVResult{}, err
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		return CVResult{}, err
	}
	sd, err := stats.StandardDeviation(scores)
	if err != nil {
		return CVResult{}, err
	}
	return CVResult{Scores: scores, Mean: mean, StdDev: sd}, nil
}
