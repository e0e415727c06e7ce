package ml

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"model-trainer-service/internal/core/domain"
)

// Hidden-layer activations.
const (
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
	ActivationLinear  = "linear"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// Network is a fully connected feed-forward binary classifier with one
// sigmoid output unit, trained with Adam on binary cross-entropy.
type Network struct {
	Activation   string
	Hidden       []int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64

	ClassLabels [2]string
	weights     []*mat.Dense
	biases      []*mat.VecDense
}

func (nn *Network) fitted() bool {
	return len(nn.weights) > 0
}

// Classes returns the two labels; the second one is the positive class.
func (nn *Network) Classes() []string {
	return []string{nn.ClassLabels[0], nn.ClassLabels[1]}
}

func (nn *Network) inputWidth() int {
	r, _ := nn.weights[0].Dims()
	return r
}

func (nn *Network) Fit(X [][]float64, y []string) error {
	width, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	classes := UniqueLabels(y)
	if len(classes) != 2 {
		return fmt.Errorf("%w: found %d", domain.ErrInvalidLabelCardinality, len(classes))
	}
	n := len(X)
	xs := toFloat32Matrix(X)
	target := make([]float64, n)
	for i, v := range y {
		if v == classes[1] {
			target[i] = 1
		}
	}

	rng := rand.New(rand.NewPCG(nn.Seed, nn.Seed^0x632be59bd9b4e019))
	sizes := append(append([]int{width}, nn.Hidden...), 1)
	weights := make([]*mat.Dense, len(sizes)-1)
	biases := make([]*mat.VecDense, len(sizes)-1)
	for l := range weights {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(in+out))
		data := make([]float64, in*out)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * limit
		}
		weights[l] = mat.NewDense(in, out, data)
		biases[l] = mat.NewVecDense(out, nil)
	}
	nn.weights, nn.biases = weights, biases
	opt := newAdam(weights, biases, nn.LearningRate)

	batch := max(1, nn.BatchSize)
	for epoch := 0; epoch < nn.Epochs; epoch++ {
		perm := rng.Perm(n)
		for start := 0; start < n; start += batch {
			idx := perm[start:min(start+batch, n)]
			xb := mat.NewDense(len(idx), width, nil)
			yb := mat.NewDense(len(idx), 1, nil)
			for r, i := range idx {
				xb.SetRow(r, xs.RawRowView(i))
				yb.Set(r, 0, target[i])
			}
			gradW, gradB := nn.backward(xb, yb)
			opt.step(weights, biases, gradW, gradB)
		}
	}

	scores, err := nn.Scores(X)
	if err != nil {
		return err
	}
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			nn.weights, nn.biases = nil, nil
			return errors.New("network produced non-finite scores")
		}
	}
	nn.ClassLabels = [2]string{classes[0], classes[1]}
	return nil
}

// forward returns the pre-activations and activations of every layer; the
// first activation is the input itself.
func (nn *Network) forward(x *mat.Dense) (zs, as []*mat.Dense) {
	as = []*mat.Dense{x}
	a := x
	last := len(nn.weights) - 1
	for l, w := range nn.weights {
		z := new(mat.Dense)
		z.Mul(a, w)
		rows, _ := z.Dims()
		bias := nn.biases[l].RawVector().Data
		for r := 0; r < rows; r++ {
			row := z.RawRowView(r)
			for c := range row {
				row[c] += bias[c]
			}
		}
		out := new(mat.Dense)
		if l == last {
			out.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, z)
		} else {
			out.Apply(func(_, _ int, v float64) float64 { return activate(nn.Activation, v) }, z)
		}
		zs = append(zs, z)
		as = append(as, out)
		a = out
	}
	return zs, as
}

func (nn *Network) backward(x, y *mat.Dense) ([]*mat.Dense, []*mat.VecDense) {
	zs, as := nn.forward(x)
	rows, _ := x.Dims()
	layers := len(nn.weights)
	gradW := make([]*mat.Dense, layers)
	gradB := make([]*mat.VecDense, layers)

	// sigmoid output with cross-entropy gives (a - y) at the output.
	delta := new(mat.Dense)
	delta.Sub(as[layers], y)
	delta.Scale(1/float64(rows), delta)
	for l := layers - 1; l >= 0; l-- {
		gw := new(mat.Dense)
		gw.Mul(as[l].T(), delta)
		_, cols := delta.Dims()
		gb := mat.NewVecDense(cols, nil)
		for c := 0; c < cols; c++ {
			gb.SetVec(c, mat.Sum(delta.ColView(c)))
		}
		gradW[l], gradB[l] = gw, gb
		if l == 0 {
			break
		}
		prev := new(mat.Dense)
		prev.Mul(delta, nn.weights[l].T())
		z := zs[l-1]
		prev.Apply(func(i, j int, v float64) float64 {
			return v * activateDeriv(nn.Activation, z.At(i, j))
		}, prev)
		delta = prev
	}
	return gradW, gradB
}

// Scores returns the sigmoid output for each row.
func (nn *Network) Scores(X [][]float64) ([]float64, error) {
	if !nn.fitted() {
		return nil, domain.ErrModelNotFitted
	}
	if _, err := checkMatrix(X, nn.inputWidth()); err != nil {
		return nil, err
	}
	_, as := nn.forward(toFloat32Matrix(X))
	return mat.Col(nil, 0, as[len(as)-1]), nil
}

// Labels thresholds scores at 0.5 onto the two class labels.
func (nn *Network) Labels(scores []float64) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		if s > 0.5 {
			out[i] = nn.ClassLabels[1]
		} else {
			out[i] = nn.ClassLabels[0]
		}
	}
	return out
}

func (nn *Network) Predict(X [][]float64) ([]string, error) {
	scores, err := nn.Scores(X)
	if err != nil {
		return nil, err
	}
	return nn.Labels(scores), nil
}

func toFloat32Matrix(X [][]float64) *mat.Dense {
	width := len(X[0])
	out := mat.NewDense(len(X), width, nil)
	for i, row := range X {
		dst := out.RawRowView(i)
		for j, v := range row {
			dst[j] = float64(float32(v))
		}
	}
	return out
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

func activate(name string, v float64) float64 {
	switch name {
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationSigmoid:
		return sigmoid(v)
	case ActivationLinear:
		return v
	default:
		return math.Max(0, v)
	}
}

func activateDeriv(name string, z float64) float64 {
	switch name {
	case ActivationTanh:
		t := math.Tanh(z)
		return 1 - t*t
	case ActivationSigmoid:
		s := sigmoid(z)
		return s * (1 - s)
	case ActivationLinear:
		return 1
	default:
		if z > 0 {
			return 1
		}
		return 0
	}
}

type adam struct {
	lr     float64
	t      int
	mW, vW []*mat.Dense
	mB, vB []*mat.VecDense
}

func newAdam(weights []*mat.Dense, biases []*mat.VecDense, lr float64) *adam {
	a := &adam{lr: lr}
	for l := range weights {
		r, c := weights[l].Dims()
		a.mW = append(a.mW, mat.NewDense(r, c, nil))
		a.vW = append(a.vW, mat.NewDense(r, c, nil))
		a.mB = append(a.mB, mat.NewVecDense(biases[l].Len(), nil))
		a.vB = append(a.vB, mat.NewVecDense(biases[l].Len(), nil))
	}
	return a
}

func (a *adam) step(weights []*mat.Dense, biases []*mat.VecDense, gradW []*mat.Dense, gradB []*mat.VecDense) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))
	update := func(param, m, v, g []float64) {
		for i := range param {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g[i]
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g[i]*g[i]
			param[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}
	for l := range weights {
		update(weights[l].RawMatrix().Data, a.mW[l].RawMatrix().Data, a.vW[l].RawMatrix().Data, gradW[l].RawMatrix().Data)
		update(biases[l].RawVector().Data, a.mB[l].RawVector().Data, a.vB[l].RawVector().Data, gradB[l].RawVector().Data)
	}
}

// Native artifact layout: magic, big-endian uint32 header length, JSON
// header, then each layer's weight matrix and bias vector in gonum's binary
// encoding.
var networkMagic = [4]byte{'N', 'N', 'E', 'T'}

const maxNetworkHeader = 1 << 20

type networkHeader struct {
	Activation   string    `json:"activation"`
	Sizes        []int     `json:"sizes"`
	Classes      [2]string `json:"classes"`
	Epochs       int       `json:"epochs"`
	BatchSize    int       `json:"batch_size"`
	LearningRate float64   `json:"learning_rate"`
	Seed         uint64    `json:"seed"`
}

// WriteTo serializes a fitted network.
func (nn *Network) WriteTo(w io.Writer) (int64, error) {
	if !nn.fitted() {
		return 0, domain.ErrModelNotFitted
	}
	sizes := []int{nn.inputWidth()}
	for _, wm := range nn.weights {
		_, c := wm.Dims()
		sizes = append(sizes, c)
	}
	header, err := json.Marshal(networkHeader{
		Activation:   nn.Activation,
		Sizes:        sizes,
		Classes:      nn.ClassLabels,
		Epochs:       nn.Epochs,
		BatchSize:    nn.BatchSize,
		LearningRate: nn.LearningRate,
		Seed:         nn.Seed,
	})
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	var total int64
	n, err := bw.Write(networkMagic[:])
	total += int64(n)
	if err != nil {
		return total, err
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(len(header))); err != nil {
		return total, err
	}
	total += 4
	n, err = bw.Write(header)
	total += int64(n)
	if err != nil {
		return total, err
	}
	for l := range nn.weights {
		wn, err := nn.weights[l].MarshalBinaryTo(bw)
		total += int64(wn)
		if err != nil {
			return total, err
		}
		bn, err := nn.biases[l].MarshalBinaryTo(bw)
		total += int64(bn)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// ReadNetwork decodes a network written by WriteTo. Any structural mismatch
// is reported as domain.ErrCorruptArtifact.
func ReadNetwork(r io.Reader) (*Network, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil || magic != networkMagic {
		return nil, fmt.Errorf("%w: bad network header", domain.ErrCorruptArtifact)
	}
	var size uint32
	if err := binary.Read(br, binary.BigEndian, &size); err != nil || size > maxNetworkHeader {
		return nil, fmt.Errorf("%w: bad network header", domain.ErrCorruptArtifact)
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
	}
	var h networkHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
	}
	if len(h.Sizes) < 2 || h.Sizes[len(h.Sizes)-1] != 1 {
		return nil, fmt.Errorf("%w: bad layer sizes %v", domain.ErrCorruptArtifact, h.Sizes)
	}

	nn := &Network{
		Activation:   h.Activation,
		Hidden:       append([]int(nil), h.Sizes[1:len(h.Sizes)-1]...),
		Epochs:       h.Epochs,
		BatchSize:    h.BatchSize,
		LearningRate: h.LearningRate,
		Seed:         h.Seed,
		ClassLabels:  h.Classes,
	}
	for l := 0; l < len(h.Sizes)-1; l++ {
		w := new(mat.Dense)
		if _, err := w.UnmarshalBinaryFrom(br); err != nil {
			return nil, fmt.Errorf("%w: layer %d weights: %v", domain.ErrCorruptArtifact, l, err)
		}
		b := new(mat.VecDense)
		if _, err := b.UnmarshalBinaryFrom(br); err != nil {
			return nil, fmt.Errorf("%w: layer %d bias: %v", domain.ErrCorruptArtifact, l, err)
		}
		rows, cols := w.Dims()
		if rows != h.Sizes[l] || cols != h.Sizes[l+1] || b.Len() != cols {
			return nil, fmt.Errorf("%w: layer %d has shape %dx%d", domain.ErrCorruptArtifact, l, rows, cols)
		}
		nn.weights = append(nn.weights, w)
		nn.biases = append(nn.biases, b)
	}
	return nn, nil
}
