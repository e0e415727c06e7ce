package ml

import (
	"fmt"
	"math"
	"math/rand/v2"

	"model-trainer-service/internal/core/domain"
)

// Split is one train/test partition expressed as row indices.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit draws a random holdout partition. The test side gets
// ceil(testSize*n) rows taken from the front of a permutation of rng.
func TrainTestSplit(n int, testSize float64, rng *rand.Rand) (Split, error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return Split{}, fmt.Errorf("%w: got %v", domain.ErrInvalidTestSize, testSize)
	}
	if n == 0 {
		return Split{}, domain.ErrEmptyDataset
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return Split{}, fmt.Errorf("%w: %d rows cannot be split with test size %v", domain.ErrInvalidTestSize, n, testSize)
	}
	perm := rng.Perm(n)
	return Split{Train: perm[nTest:], Test: perm[:nTest]}, nil
}

// StratifiedKFold partitions rows into k folds without shuffling, keeping
// each class's share roughly equal across folds. Rows of one class are
// assigned to folds in their original order.
func StratifiedKFold(y []string, k int) ([]Split, error) {
	n := len(y)
	if n == 0 {
		return nil, domain.ErrEmptyDataset
	}
	if k < 2 || k > n {
		return nil, fmt.Errorf("%w: k=%d with %d rows", domain.ErrInvalidFoldCount, k, n)
	}

	classes := UniqueLabels(y)
	index := classIndex(classes)
	codes := make([]int, n)
	counts := make([]int, len(classes))
	for i, v := range y {
		codes[i] = index[v]
		counts[codes[i]]++
	}

	// Rows sorted by class, then dealt round-robin, give the per-fold quota
	// of each class.
	order := make([]int, 0, n)
	for c, cnt := range counts {
		for j := 0; j < cnt; j++ {
			order = append(order, c)
		}
	}
	quota := make([][]int, k)
	for f := range quota {
		quota[f] = make([]int, len(classes))
		for i := f; i < n; i += k {
			quota[f][order[i]]++
		}
	}

	fold := make([]int, n)
	next := make([]int, len(classes))
	used := make([]int, len(classes))
	for i, c := range codes {
		for used[c] >= quota[next[c]][c] {
			next[c]++
			used[c] = 0
		}
		fold[i] = next[c]
		used[c]++
	}

	splits := make([]Split, k)
	for i, f := range fold {
		for s := range splits {
			if s == f {
				splits[s].Test = append(splits[s].Test, i)
			} else {
				splits[s].Train = append(splits[s].Train, i)
			}
		}
	}
	return splits, nil
}

func takeRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func takeLabels(y []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// Subset returns the rows and labels selected by idx.
func Subset(X [][]float64, y []string, idx []int) ([][]float64, []string) {
	return takeRows(X, idx), takeLabels(y, idx)
}
