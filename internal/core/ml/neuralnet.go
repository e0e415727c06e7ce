package ml

import (
	"fmt"
	"math/rand/v2"

	"model-trainer-service/internal/core/domain"
)

type networkConfig struct {
	Activation   string
	Hidden       []int
	Epochs       int
	BatchSize    int
	LearningRate float64
	RandomState  *uint64
}

// parseNetworkConfig ignores keys it does not recognise.
func parseNetworkConfig(params map[string]any) (networkConfig, error) {
	p := newParamReader(params)
	cfg := networkConfig{
		Activation:   p.String("activation", ActivationReLU),
		Hidden:       p.Ints("hidden_layer_sizes", []int{64, 64}),
		Epochs:       p.Int("epochs", 20),
		BatchSize:    p.Int("batch_size", 32),
		LearningRate: p.Float("learning_rate", 0.001),
	}
	switch cfg.Activation {
	case ActivationReLU, ActivationTanh, ActivationSigmoid, ActivationLinear:
	default:
		p.Check(false, "activation: unknown function %q", cfg.Activation)
	}
	p.Check(len(cfg.Hidden) > 0, "hidden_layer_sizes must name at least one layer")
	for _, units := range cfg.Hidden {
		p.Check(units >= 1, "hidden_layer_sizes: layer width %d must be at least 1", units)
	}
	p.Check(cfg.Epochs >= 1, "epochs must be at least 1")
	p.Check(cfg.BatchSize >= 1, "batch_size must be at least 1")
	p.Check(cfg.LearningRate > 0, "learning_rate must be positive")
	if seed, ok := p.OptionalInt("random_state"); ok {
		p.Check(seed >= 0, "random_state must not be negative")
		s := uint64(seed)
		cfg.RandomState = &s
	}
	return cfg, p.Err(false)
}

func (c networkConfig) estimator(seed uint64) *Network {
	if c.RandomState != nil {
		seed = *c.RandomState
	}
	return &Network{
		Activation:   c.Activation,
		Hidden:       append([]int(nil), c.Hidden...),
		Epochs:       c.Epochs,
		BatchSize:    c.BatchSize,
		LearningRate: c.LearningRate,
		Seed:         seed,
	}
}

// BinaryNeuralNet is the feed-forward network variant. It only accepts label
// columns with exactly two distinct values.
type BinaryNeuralNet struct {
	params map[string]any
	cfg    networkConfig
	seed   uint64
	model  *Network
}

func NewBinaryNeuralNet(params map[string]any) (*BinaryNeuralNet, error) {
	cfg, err := parseNetworkConfig(params)
	if err != nil {
		return nil, err
	}
	return &BinaryNeuralNet{params: copyParams(params), cfg: cfg, seed: rand.Uint64()}, nil
}

func (m *BinaryNeuralNet) Type() domain.ModelType { return domain.ModelTypeNeuralNet }

func (m *BinaryNeuralNet) Params() map[string]any { return copyParams(m.params) }

func (m *BinaryNeuralNet) IsFitted() bool { return m.model != nil }

func (m *BinaryNeuralNet) SetSeed(seed uint64) { m.seed = seed }

func (m *BinaryNeuralNet) NewEstimator() Estimator { return m.cfg.estimator(m.seed) }

func (m *BinaryNeuralNet) Estimator() Estimator {
	if m.model == nil {
		return nil
	}
	return m.model
}

func (m *BinaryNeuralNet) Train(X [][]float64, y []string) (float64, error) {
	if k := len(UniqueLabels(y)); k != 2 {
		return 0, fmt.Errorf("%w: found %d", domain.ErrInvalidLabelCardinality, k)
	}
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

func (m *BinaryNeuralNet) Predict(X [][]float64) ([]string, error) {
	if m.model == nil {
		return nil, domain.ErrModelNotFitted
	}
	return m.model.Predict(X)
}

// Scores returns the raw sigmoid outputs, before thresholding.
func (m *BinaryNeuralNet) Scores(X [][]float64) ([]float64, error) {
	if m.model == nil {
		return nil, domain.ErrModelNotFitted
	}
	return m.model.Scores(X)
}

// Fitted returns the underlying network for serialization.
func (m *BinaryNeuralNet) Fitted() *Network { return m.model }

// Restore installs a decoded network as the fitted state.
func (m *BinaryNeuralNet) Restore(nn *Network) error {
	if nn == nil || !nn.fitted() {
		return domain.ErrCorruptArtifact
	}
	m.model = nn
	return nil
}
