package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"model-trainer-service/internal/core/domain"
)

// LogisticRegression is a multinomial logistic regression trained by
// full-batch gradient descent on standardized features with an L2 penalty.
// Exported fields are the fitted state and are what gets serialized.
type LogisticRegression struct {
	C            float64
	MaxIter      int
	Tol          float64
	FitIntercept bool
	LearningRate float64

	ClassLabels []string
	// Coef is one weight row per class over the standardized features.
	Coef      [][]float64
	Intercept []float64
	Mean      []float64
	Scale     []float64
}

func (lr *LogisticRegression) fitted() bool {
	return len(lr.Coef) > 0
}

func (lr *LogisticRegression) Classes() []string {
	return append([]string(nil), lr.ClassLabels...)
}

func (lr *LogisticRegression) Fit(X [][]float64, y []string) error {
	width, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	classes := UniqueLabels(y)
	if len(classes) < 2 {
		return domain.ErrSingleClass
	}
	n, k := len(X), len(classes)

	mean, scale := standardizer(X, width)
	xs := mat.NewDense(n, width, nil)
	for i, row := range X {
		for j, v := range row {
			xs.Set(i, j, (v-mean[j])/scale[j])
		}
	}
	index := classIndex(classes)
	onehot := mat.NewDense(n, k, nil)
	for i, v := range y {
		onehot.Set(i, index[v], 1)
	}

	w := mat.NewDense(width, k, nil)
	b := make([]float64, k)
	alpha := 1 / (lr.C * float64(n))

	var z, grad, gradW mat.Dense
	for iter := 0; iter < lr.MaxIter; iter++ {
		z.Mul(xs, w)
		softmaxRows(&z, b)
		grad.Sub(&z, onehot)
		grad.Scale(1/float64(n), &grad)

		gradW.Mul(xs.T(), &grad)
		gradW.Add(&gradW, scaled(alpha, w))

		maxGrad := maxAbs(gradW.RawMatrix().Data)
		gb := make([]float64, k)
		if lr.FitIntercept {
			for c := 0; c < k; c++ {
				gb[c] = mat.Sum(grad.ColView(c))
				maxGrad = math.Max(maxGrad, math.Abs(gb[c]))
			}
		}

		gradW.Scale(lr.LearningRate, &gradW)
		w.Sub(w, &gradW)
		for c := range b {
			b[c] -= lr.LearningRate * gb[c]
		}
		if maxGrad < lr.Tol {
			break
		}
	}
	for c := range b {
		if math.IsNaN(b[c]) || math.IsInf(b[c], 0) {
			return fmt.Errorf("logistic regression diverged")
		}
	}

	coef := make([][]float64, k)
	for c := 0; c < k; c++ {
		coef[c] = mat.Col(nil, c, w)
	}
	lr.ClassLabels = classes
	lr.Coef = coef
	lr.Intercept = b
	lr.Mean = mean
	lr.Scale = scale
	return nil
}

func (lr *LogisticRegression) PredictProba(X [][]float64) ([][]float64, error) {
	if !lr.fitted() {
		return nil, domain.ErrModelNotFitted
	}
	width := len(lr.Mean)
	if _, err := checkMatrix(X, width); err != nil {
		return nil, err
	}
	k := len(lr.ClassLabels)
	xs := mat.NewDense(len(X), width, nil)
	for i, row := range X {
		for j, v := range row {
			xs.Set(i, j, (v-lr.Mean[j])/lr.Scale[j])
		}
	}
	w := mat.NewDense(width, k, nil)
	for c, col := range lr.Coef {
		w.SetCol(c, col)
	}
	var z mat.Dense
	z.Mul(xs, w)
	softmaxRows(&z, lr.Intercept)

	out := make([][]float64, len(X))
	for i := range out {
		out[i] = mat.Row(nil, i, &z)
	}
	return out, nil
}

func (lr *LogisticRegression) Predict(X [][]float64) ([]string, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(proba))
	for i, p := range proba {
		out[i] = lr.ClassLabels[argmax(p)]
	}
	return out, nil
}

// softmaxRows adds bias to each row of z and replaces it with its softmax.
func softmaxRows(z *mat.Dense, bias []float64) {
	rows, cols := z.Dims()
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		peak := math.Inf(-1)
		for c := 0; c < cols; c++ {
			row[c] += bias[c]
			peak = math.Max(peak, row[c])
		}
		var sum float64
		for c := 0; c < cols; c++ {
			row[c] = math.Exp(row[c] - peak)
			sum += row[c]
		}
		for c := 0; c < cols; c++ {
			row[c] /= sum
		}
	}
}

func standardizer(X [][]float64, width int) (mean, scale []float64) {
	n := float64(len(X))
	mean = make([]float64, width)
	scale = make([]float64, width)
	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

type logisticConfig struct {
	C            float64
	MaxIter      int
	Tol          float64
	FitIntercept bool
	LearningRate float64
}

func parseLogisticConfig(params map[string]any) (logisticConfig, error) {
	p := newParamReader(params)
	cfg := logisticConfig{
		C:            p.Float("C", 1.0),
		MaxIter:      p.Int("max_iter", 1000),
		Tol:          p.Float("tol", 1e-4),
		FitIntercept: p.Bool("fit_intercept", true),
		LearningRate: p.Float("learning_rate", 0.5),
	}
	p.Check(cfg.C > 0, "C must be positive")
	p.Check(cfg.MaxIter >= 1, "max_iter must be at least 1")
	p.Check(cfg.Tol > 0, "tol must be positive")
	p.Check(cfg.LearningRate > 0, "learning_rate must be positive")
	return cfg, p.Err(true)
}

func (c logisticConfig) estimator() *LogisticRegression {
	return &LogisticRegression{
		C:            c.C,
		MaxIter:      c.MaxIter,
		Tol:          c.Tol,
		FitIntercept: c.FitIntercept,
		LearningRate: c.LearningRate,
	}
}

// LinearClassifier is the logistic regression variant.
type LinearClassifier struct {
	params map[string]any
	cfg    logisticConfig
	model  *LogisticRegression
}

func NewLinearClassifier(params map[string]any) (*LinearClassifier, error) {
	cfg, err := parseLogisticConfig(params)
	if err != nil {
		return nil, err
	}
	return &LinearClassifier{params: copyParams(params), cfg: cfg}, nil
}

func (m *LinearClassifier) Type() domain.ModelType { return domain.ModelTypeLogisticRegression }

func (m *LinearClassifier) Params() map[string]any { return copyParams(m.params) }

func (m *LinearClassifier) IsFitted() bool { return m.model != nil }

// SetSeed is a no-op: gradient descent from zero weights is deterministic.
func (m *LinearClassifier) SetSeed(uint64) {}

func (m *LinearClassifier) NewEstimator() Estimator { return m.cfg.estimator() }

func (m *LinearClassifier) Estimator() Estimator {
	if m.model == nil {
		return nil
	}
	return m.model
}

func (m *LinearClassifier) Train(X [][]float64, y []string) (float64, error) {
	est := m.cfg.estimator()
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

func (m *LinearClassifier) Predict(X [][]float64) ([]string, error) {
	if m.model == nil {
		return nil, domain.ErrModelNotFitted
	}
	return m.model.Predict(X)
}

// Fitted returns the underlying estimator for serialization.
func (m *LinearClassifier) Fitted() *LogisticRegression { return m.model }

// Restore installs a deserialized estimator as the fitted state.
func (m *LinearClassifier) Restore(est *LogisticRegression) error {
	if est == nil || !est.fitted() || len(est.Coef) != len(est.ClassLabels) ||
		len(est.Intercept) != len(est.ClassLabels) || len(est.Scale) != len(est.Mean) {
		return domain.ErrCorruptArtifact
	}
	for _, row := range est.Coef {
		if len(row) != len(est.Mean) {
			return domain.ErrCorruptArtifact
		}
	}
	m.model = est
	return nil
}
