package classifier

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/sevseg/internal/models"
)

// DenseLayer is one fully connected layer. Weights are stored input-major:
// Weights[i][j] connects input i to output j.
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// DenseModel is the on-disk form of the pure-Go digit network.
type DenseModel struct {
	InputWidth  int          `json:"input_width"`
	InputHeight int          `json:"input_height"`
	Layers      []DenseLayer `json:"layers"`
}

type denseLayer struct {
	w   *mat.Dense
	b   []float64
	act string
}

// DenseClassifier evaluates a multilayer perceptron with gonum. It needs no
// native runtime and serves as the fallback backend.
type DenseClassifier struct {
	cfg       Config
	modelPath string

	mu     sync.Mutex
	layers []denseLayer
	width  int
	height int
}

// NewDense creates an unloaded dense classifier.
func NewDense(cfg Config) *DenseClassifier {
	return &DenseClassifier{cfg: cfg, modelPath: cfg.modelPath(models.BackendDense)}
}

func (c *DenseClassifier) Name() string { return models.BackendDense }

// Load reads the JSON weights.
func (c *DenseClassifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layers != nil {
		return nil
	}
	data, err := os.ReadFile(c.modelPath)
	if os.IsNotExist(err) {
		return notFound(c.modelPath)
	}
	if err != nil {
		return fmt.Errorf("read dense model: %w", err)
	}
	var m DenseModel
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode dense model %s: %w", c.modelPath, err)
	}
	return c.setModel(m)
}

// LoadModel installs an in-memory model.
func (c *DenseClassifier) LoadModel(m DenseModel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setModel(m)
}

func (c *DenseClassifier) setModel(m DenseModel) error {
	if m.InputWidth <= 0 || m.InputHeight <= 0 {
		return fmt.Errorf("dense model input size %dx%d invalid", m.InputWidth, m.InputHeight)
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("dense model has no layers")
	}

	in := m.InputWidth * m.InputHeight
	layers := make([]denseLayer, len(m.Layers))
	for i, l := range m.Layers {
		if len(l.Weights) != in {
			return fmt.Errorf("layer %d: %d weight rows, want %d", i, len(l.Weights), in)
		}
		out := len(l.Bias)
		if out == 0 {
			return fmt.Errorf("layer %d: empty bias", i)
		}
		w := mat.NewDense(in, out, nil)
		for r, row := range l.Weights {
			if len(row) != out {
				return fmt.Errorf("layer %d row %d: %d weights, want %d", i, r, len(row), out)
			}
			w.SetRow(r, row)
		}
		switch l.Activation {
		case "", "linear", "relu", "sigmoid", "softmax":
		default:
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		layers[i] = denseLayer{w: w, b: l.Bias, act: l.Activation}
		in = out
	}
	if in < NumClasses {
		slog.Warn("dense model has fewer outputs than classes", "outputs", in, "classes", NumClasses)
	}

	c.layers = layers
	c.width, c.height = m.InputWidth, m.InputHeight
	slog.Info("digit classifier loaded", "backend", c.Name(), "layers", len(layers),
		"input", []int{c.height, c.width})
	return nil
}

// Classify runs the batch through the network.
func (c *DenseClassifier) Classify(strip image.Image) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layers == nil {
		return nil, ErrNotLoaded
	}

	tensor, err := Preprocess(strip, c.cfg.DigitCount, c.width, c.height, 1)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	defer Release(tensor)
	n := int(tensor.Shape[0])
	features := c.width * c.height
	x := mat.NewDense(n, features, nil)
	for i := range n {
		row := make([]float64, features)
		for j, v := range tensor.Data[i*features : (i+1)*features] {
			row[j] = float64(v)
		}
		x.SetRow(i, row)
	}

	for _, l := range c.layers {
		var y mat.Dense
		y.Mul(x, l.w)
		y.Apply(func(_, j int, v float64) float64 { return v + l.b[j] }, &y)
		activate(&y, l.act)
		x = &y
	}

	out := make([]int, n)
	for i := range n {
		out[i] = argMax(mat.Row(nil, i, x))
	}
	return out, nil
}

func activate(m *mat.Dense, act string) {
	switch act {
	case "relu":
		m.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, m)
	case "sigmoid":
		m.Apply(func(_, _ int, v float64) float64 { return 1 / (1 + math.Exp(-v)) }, m)
	case "softmax":
		r, _ := m.Dims()
		for i := range r {
			row := m.RawRowView(i)
			peak := row[argMax(row)]
			var sum float64
			for j, v := range row {
				row[j] = math.Exp(v - peak)
				sum += row[j]
			}
			for j := range row {
				row[j] /= sum
			}
		}
	}
}

func argMax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Close drops the weights.
func (c *DenseClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers = nil
	return nil
}
