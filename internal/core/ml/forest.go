package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"model-trainer-service/internal/core/domain"
)

// Max-features modes for RandomForest.
const (
	MaxFeaturesSqrt     = "sqrt"
	MaxFeaturesLog2     = "log2"
	MaxFeaturesCount    = "int"
	MaxFeaturesFraction = "fraction"
)

// RandomForest is a bagged ensemble of CART trees. Probabilities are the mean
// of the per-tree leaf distributions.
type RandomForest struct {
	NEstimators      int
	MaxDepth         int
	MinSamplesSplit  int
	MaxFeaturesMode  string
	MaxFeaturesValue float64
	Bootstrap        bool
	Seed             uint64

	ClassLabels []string
	Width       int
	Trees       []DecisionTree
}

func (rf *RandomForest) fitted() bool {
	return len(rf.Trees) > 0
}

func (rf *RandomForest) Classes() []string {
	return append([]string(nil), rf.ClassLabels...)
}

func (rf *RandomForest) featuresPerSplit(width int) int {
	var k int
	switch rf.MaxFeaturesMode {
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(width)))
	case MaxFeaturesCount:
		k = int(rf.MaxFeaturesValue)
	case MaxFeaturesFraction:
		k = int(rf.MaxFeaturesValue * float64(width))
	default:
		k = int(math.Sqrt(float64(width)))
	}
	return max(1, min(k, width))
}

func (rf *RandomForest) Fit(X [][]float64, y []string) error {
	width, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	classes := UniqueLabels(y)
	index := classIndex(classes)
	codes := make([]int, len(y))
	for i, v := range y {
		codes[i] = index[v]
	}

	n := len(X)
	mtry := rf.featuresPerSplit(width)
	rng := rand.New(rand.NewPCG(rf.Seed, rf.Seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, rf.NEstimators)
	for t := range seeds {
		seeds[t] = rng.Uint64()
	}

	trees := make([]DecisionTree, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			treeRng := rand.New(rand.NewPCG(seeds[t], uint64(t)))
			idx := make([]int, n)
			for i := range idx {
				if rf.Bootstrap {
					idx[i] = treeRng.IntN(n)
				} else {
					idx[i] = i
				}
			}
			grower := &treeGrower{
				X:           X,
				codes:       codes,
				nClasses:    len(classes),
				width:       width,
				maxDepth:    rf.MaxDepth,
				minSplit:    rf.MinSamplesSplit,
				maxFeatures: mtry,
				rng:         treeRng,
			}
			trees[t] = growTree(grower, idx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.ClassLabels = classes
	rf.Width = width
	rf.Trees = trees
	return nil
}

func (rf *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	if !rf.fitted() {
		return nil, domain.ErrModelNotFitted
	}
	if _, err := checkMatrix(X, rf.Width); err != nil {
		return nil, err
	}
	k := len(rf.ClassLabels)
	out := make([][]float64, len(X))
	for i, row := range X {
		acc := make([]float64, k)
		for t := range rf.Trees {
			p, err := rf.Trees[t].proba(row)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
			}
			if len(p) != k {
				return nil, domain.ErrCorruptArtifact
			}
			for c := range acc {
				acc[c] += p[c]
			}
		}
		for c := range acc {
			acc[c] /= float64(len(rf.Trees))
		}
		out[i] = acc
	}
	return out, nil
}

func (rf *RandomForest) Predict(X [][]float64) ([]string, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(proba))
	for i, p := range proba {
		out[i] = rf.ClassLabels[argmax(p)]
	}
	return out, nil
}

type forestConfig struct {
	NEstimators      int
	MaxDepth         int
	MinSamplesSplit  int
	MaxFeaturesMode  string
	MaxFeaturesValue float64
	Bootstrap        bool
	RandomState      *uint64
}

func parseForestConfig(params map[string]any) (forestConfig, error) {
	p := newParamReader(params)
	cfg := forestConfig{
		NEstimators:     p.Int("n_estimators", 100),
		MaxDepth:        p.Int("max_depth", 0),
		MinSamplesSplit: p.Int("min_samples_split", 2),
		MaxFeaturesMode: MaxFeaturesSqrt,
		Bootstrap:       p.Bool("bootstrap", true),
	}
	p.Check(cfg.NEstimators >= 1, "n_estimators must be at least 1")
	p.Check(cfg.MaxDepth >= 0, "max_depth must be positive")
	p.Check(cfg.MinSamplesSplit >= 2, "min_samples_split must be at least 2")

	if raw, ok := p.Raw("max_features"); ok {
		switch v := raw.(type) {
		case string:
			p.Check(v == MaxFeaturesSqrt || v == MaxFeaturesLog2, "max_features: unknown mode %q", v)
			cfg.MaxFeaturesMode = v
		default:
			if i, ok := integerLiteral(v); ok {
				p.Check(i >= 1, "max_features must be at least 1")
				cfg.MaxFeaturesMode, cfg.MaxFeaturesValue = MaxFeaturesCount, float64(i)
			} else if f, ok := toFloat(v); ok {
				p.Check(f > 0 && f <= 1, "max_features fraction must be in (0, 1]")
				cfg.MaxFeaturesMode, cfg.MaxFeaturesValue = MaxFeaturesFraction, f
			} else {
				p.Check(false, "max_features: expected sqrt, log2, integer or fraction, got %v", v)
			}
		}
	}
	if seed, ok := p.OptionalInt("random_state"); ok {
		p.Check(seed >= 0, "random_state must not be negative")
		s := uint64(seed)
		cfg.RandomState = &s
	}
	return cfg, p.Err(true)
}

func (c forestConfig) estimator(seed uint64) *RandomForest {
	if c.RandomState != nil {
		seed = *c.RandomState
	}
	return &RandomForest{
		NEstimators:      c.NEstimators,
		MaxDepth:         c.MaxDepth,
		MinSamplesSplit:  c.MinSamplesSplit,
		MaxFeaturesMode:  c.MaxFeaturesMode,
		MaxFeaturesValue: c.MaxFeaturesValue,
		Bootstrap:        c.Bootstrap,
		Seed:             seed,
	}
}

// EnsembleClassifier is the random forest variant.
type EnsembleClassifier struct {
	params map[string]any
	cfg    forestConfig
	seed   uint64
	model  *RandomForest
}

func NewEnsembleClassifier(params map[string]any) (*EnsembleClassifier, error) {
	cfg, err := parseForestConfig(params)
	if err != nil {
		return nil, err
	}
	return &EnsembleClassifier{params: copyParams(params), cfg: cfg, seed: rand.Uint64()}, nil
}

func (m *EnsembleClassifier) Type() domain.ModelType { return domain.ModelTypeRandomForest }

func (m *EnsembleClassifier) Params() map[string]any { return copyParams(m.params) }

func (m *EnsembleClassifier) IsFitted() bool { return m.model != nil }

func (m *EnsembleClassifier) SetSeed(seed uint64) { m.seed = seed }

func (m *EnsembleClassifier) NewEstimator() Estimator { return m.cfg.estimator(m.seed) }

func (m *EnsembleClassifier) Estimator() Estimator {
	if m.model == nil {
		return nil
	}
	return m.model
}

func (m *EnsembleClassifier) Train(X [][]float64, y []string) (float64, error) {
	est := m.cfg.estimator(m.seed)
	if err := est.Fit(X, y); err != nil {
		return 0, err
	}
	m.model = est
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return Accuracy(y, pred)
}

func (m *EnsembleClassifier) Predict(X [][]float64) ([]string, error) {
	if m.model == nil {
		return nil, domain.ErrModelNotFitted
	}
	return m.model.Predict(X)
}

// Fitted returns the underlying estimator for serialization.
func (m *EnsembleClassifier) Fitted() *RandomForest { return m.model }

// Restore installs a deserialized estimator as the fitted state.
func (m *EnsembleClassifier) Restore(est *RandomForest) error {
	if est == nil || !est.fitted() || len(est.ClassLabels) == 0 {
		return domain.ErrCorruptArtifact
	}
	m.model = est
	return nil
}
