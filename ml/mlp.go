package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/goccy/go-json"
)

type MLPConfig struct {
	Hidden       []int   `json:"hidden"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	Patience     int     `json:"patience"`
	Seed         int64   `json:"seed"`
}

func DefaultMLPConfig() MLPConfig {
	return MLPConfig{
		Hidden:       []int{128, 256, 128},
		Epochs:       100,
		BatchSize:    32,
		LearningRate: 0.001,
		Patience:     10,
		Seed:         42,
	}
}

// MLP is a feed-forward network with ReLU hidden layers and a softmax output,
// trained with Adam on cross-entropy loss.
type MLP struct {
	config     MLPConfig
	inputDim   int
	numClasses int
	layers     []dense
}

type dense struct {
	In  int       `json:"in"`
	Out int       `json:"out"`
	W   []float64 `json:"w"` // row-major [Out][In]
	B   []float64 `json:"b"`
}

type mlpFile struct {
	Type       string    `json:"type"`
	Config     MLPConfig `json:"config"`
	InputDim   int       `json:"input_dim"`
	NumClasses int       `json:"num_classes"`
	Layers     []dense   `json:"layers"`
}

func NewMLP(config MLPConfig, numClasses int) *MLP {
	defaults := DefaultMLPConfig()
	if config.Epochs <= 0 {
		config.Epochs = defaults.Epochs
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.LearningRate <= 0 {
		config.LearningRate = defaults.LearningRate
	}
	if config.Hidden == nil {
		config.Hidden = defaults.Hidden
	}
	return &MLP{config: config, numClasses: numClasses}
}

func (m *MLP) Name() string      { return ModelTypeMLP }
func (m *MLP) InputDim() int     { return m.inputDim }
func (m *MLP) NumClasses() int   { return m.numClasses }
func (m *MLP) Config() MLPConfig { return m.config }

func (m *MLP) Train(features [][]float64, labels []int) error {
	return m.TrainValidated(features, labels, nil, nil)
}

// TrainValidated fits the network on the training split. When a validation
// split is given, training stops after Patience epochs without improvement
// in validation loss and the best weights are restored.
func (m *MLP) TrainValidated(trainX [][]float64, trainY []int, valX [][]float64, valY []int) error {
	if len(trainX) == 0 || len(trainX) != len(trainY) {
		return errors.New("features and labels must be non-empty and the same length")
	}
	if len(valX) != len(valY) {
		return errors.New("validation features and labels size mismatch")
	}
	if m.numClasses <= 0 {
		return errors.New("number of classes must be positive")
	}
	if err := checkLabels(trainY, m.numClasses); err != nil {
		return err
	}
	if err := checkLabels(valY, m.numClasses); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(m.config.Seed))
	m.inputDim = len(trainX[0])
	m.layers = m.initLayers(rng)
	opt := newAdam(m.layers, m.config.LearningRate)

	best := math.Inf(1)
	var bestLayers []dense
	wait := 0

	for epoch := 0; epoch < m.config.Epochs; epoch++ {
		order := rng.Perm(len(trainX))
		for start := 0; start < len(order); start += m.config.BatchSize {
			end := start + m.config.BatchSize
			if end > len(order) {
				end = len(order)
			}
			grads := zeroGrads(m.layers)
			for _, idx := range order[start:end] {
				if len(trainX[idx]) != m.inputDim {
					return fmt.Errorf("row %d has %d features, want %d", idx, len(trainX[idx]), m.inputDim)
				}
				m.backprop(trainX[idx], trainY[idx], grads)
			}
			opt.step(m.layers, grads, float64(end-start))
		}

		if len(valX) == 0 {
			continue
		}
		loss := m.loss(valX, valY)
		if loss < best {
			best = loss
			bestLayers = cloneLayers(m.layers)
			wait = 0
			continue
		}
		wait++
		if m.config.Patience > 0 && wait >= m.config.Patience {
			break
		}
	}
	if bestLayers != nil {
		m.layers = bestLayers
	}
	return nil
}

func (m *MLP) PredictProba(features []float64) ([]float64, error) {
	if len(m.layers) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != m.inputDim {
		return nil, mismatch("classifier", "network expects %d features, got %d", m.inputDim, len(features))
	}
	acts := m.forward(features)
	return acts[len(acts)-1], nil
}

func (m *MLP) Save(path string) error {
	if len(m.layers) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(mlpFile{
		Type:       ModelTypeMLP,
		Config:     m.config,
		InputDim:   m.inputDim,
		NumClasses: m.numClasses,
		Layers:     m.layers,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (m *MLP) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file mlpFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return err
	}
	if file.Type != ModelTypeMLP {
		return mismatch("classifier", "model file holds %q, expected %q", file.Type, ModelTypeMLP)
	}
	if len(file.Layers) == 0 {
		return mismatch("classifier", "network has no layers")
	}
	in := file.InputDim
	for i, layer := range file.Layers {
		if layer.In != in || len(layer.W) != layer.In*layer.Out || len(layer.B) != layer.Out {
			return mismatch("classifier", "layer %d has inconsistent shape", i)
		}
		in = layer.Out
	}
	if in != file.NumClasses {
		return mismatch("classifier", "output layer has %d units, expected %d classes", in, file.NumClasses)
	}
	m.config = file.Config
	m.inputDim = file.InputDim
	m.numClasses = file.NumClasses
	m.layers = file.Layers
	return nil
}

func (m *MLP) initLayers(rng *rand.Rand) []dense {
	sizes := append([]int{m.inputDim}, m.config.Hidden...)
	sizes = append(sizes, m.numClasses)
	layers := make([]dense, len(sizes)-1)
	for l := range layers {
		in, out := sizes[l], sizes[l+1]
		std := math.Sqrt(2 / float64(in))
		w := make([]float64, in*out)
		for i := range w {
			w[i] = rng.NormFloat64() * std
		}
		layers[l] = dense{In: in, Out: out, W: w, B: make([]float64, out)}
	}
	return layers
}

// forward returns the activations of every layer, input first. The last
// entry is the softmax distribution.
func (m *MLP) forward(x []float64) [][]float64 {
	acts := make([][]float64, 0, len(m.layers)+1)
	acts = append(acts, x)
	a := x
	for l, layer := range m.layers {
		z := make([]float64, layer.Out)
		for o := 0; o < layer.Out; o++ {
			sum := layer.B[o]
			row := layer.W[o*layer.In : (o+1)*layer.In]
			for i, w := range row {
				sum += w * a[i]
			}
			z[o] = sum
		}
		if l == len(m.layers)-1 {
			softmax(z)
		} else {
			for o := range z {
				if z[o] < 0 {
					z[o] = 0
				}
			}
		}
		acts = append(acts, z)
		a = z
	}
	return acts
}

func (m *MLP) backprop(x []float64, label int, grads []dense) {
	acts := m.forward(x)
	delta := append([]float64(nil), acts[len(acts)-1]...)
	delta[label] -= 1

	for l := len(m.layers) - 1; l >= 0; l-- {
		layer := m.layers[l]
		input := acts[l]
		g := grads[l]
		for o := 0; o < layer.Out; o++ {
			g.B[o] += delta[o]
			row := g.W[o*layer.In : (o+1)*layer.In]
			for i := range row {
				row[i] += delta[o] * input[i]
			}
		}
		if l == 0 {
			break
		}
		prev := make([]float64, layer.In)
		for i := 0; i < layer.In; i++ {
			if input[i] <= 0 {
				continue
			}
			var sum float64
			for o := 0; o < layer.Out; o++ {
				sum += layer.W[o*layer.In+i] * delta[o]
			}
			prev[i] = sum
		}
		delta = prev
	}
}

func (m *MLP) loss(features [][]float64, labels []int) float64 {
	var total float64
	for i, x := range features {
		acts := m.forward(x)
		p := acts[len(acts)-1][labels[i]]
		total -= math.Log(math.Max(p, 1e-12))
	}
	return total / float64(len(features))
}

func softmax(z []float64) {
	peak := math.Inf(-1)
	for _, v := range z {
		if v > peak {
			peak = v
		}
	}
	var sum float64
	for i, v := range z {
		z[i] = math.Exp(v - peak)
		sum += z[i]
	}
	for i := range z {
		z[i] /= sum
	}
}

func checkLabels(labels []int, numClasses int) error {
	for _, label := range labels {
		if label < 0 || label >= numClasses {
			return fmt.Errorf("label %d outside [0,%d)", label, numClasses)
		}
	}
	return nil
}

func zeroGrads(layers []dense) []dense {
	grads := make([]dense, len(layers))
	for l, layer := range layers {
		grads[l] = dense{In: layer.In, Out: layer.Out, W: make([]float64, len(layer.W)), B: make([]float64, len(layer.B))}
	}
	return grads
}

func cloneLayers(layers []dense) []dense {
	out := make([]dense, len(layers))
	for l, layer := range layers {
		out[l] = dense{
			In:  layer.In,
			Out: layer.Out,
			W:   append([]float64(nil), layer.W...),
			B:   append([]float64(nil), layer.B...),
		}
	}
	return out
}

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  []dense
}

func newAdam(layers []dense, lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
		m:     zeroGrads(layers),
		v:     zeroGrads(layers),
	}
}

func (a *adam) step(layers, grads []dense, batch float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	update := func(params, grad, m, v []float64) {
		for i := range params {
			g := grad[i] / batch
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			params[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
	for l := range layers {
		update(layers[l].W, grads[l].W, a.m[l].W, a.v[l].W)
		update(layers[l].B, grads[l].B, a.m[l].B, a.v[l].B)
	}
}
