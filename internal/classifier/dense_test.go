package classifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onOffModel scores a lit cell as 1 and a dark cell as 0 on a 2x2 input.
func onOffModel() DenseModel {
	weights := make([][]float64, 4)
	for i := range weights {
		weights[i] = make([]float64, NumClasses)
		weights[i][1] = 0.25
	}
	bias := make([]float64, NumClasses)
	bias[0] = 0.5
	return DenseModel{
		InputWidth:  2,
		InputHeight: 2,
		Layers:      []DenseLayer{{Weights: weights, Bias: bias, Activation: "softmax"}},
	}
}

func writeModel(t *testing.T, m DenseModel) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "digits.json")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestDenseClassifier_Classify(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = writeModel(t, onOffModel())
	c := NewDense(cfg)
	require.NoError(t, c.Load())
	defer func() { _ = c.Close() }()

	got, err := c.Classify(strip(true, false, true, true))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, 1}, got)
	assert.Equal(t, "dense", c.Name())
}

func TestDenseClassifier_HiddenLayer(t *testing.T) {
	// 4 -> 2 (relu) -> 11 (sigmoid): hidden unit 0 fires for lit cells and
	// drives class 7; dark cells fall back to the blank bias.
	hidden := [][]float64{{1, 0}, {1, 0}, {1, 0}, {1, 0}}
	out := [][]float64{make([]float64, NumClasses), make([]float64, NumClasses)}
	out[0][7] = 1
	bias := make([]float64, NumClasses)
	bias[Blank] = 0.5
	m := DenseModel{
		InputWidth: 2, InputHeight: 2,
		Layers: []DenseLayer{
			{Weights: hidden, Bias: []float64{0, 0}, Activation: "relu"},
			{Weights: out, Bias: bias, Activation: "sigmoid"},
		},
	}

	c := NewDense(DefaultConfig())
	require.NoError(t, c.LoadModel(m))
	got, err := c.Classify(strip(true, false, true, true))
	require.NoError(t, err)
	assert.Equal(t, []int{7, Blank, 7, 7}, got)
}

func TestDenseClassifier_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.json")
	err := NewDense(cfg).Load()
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestDenseClassifier_NotLoaded(t *testing.T) {
	_, err := NewDense(DefaultConfig()).Classify(strip(true, true, true, true))
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestDenseClassifier_InvalidModels(t *testing.T) {
	good := onOffModel()

	noLayers := good
	noLayers.Layers = nil

	badAct := onOffModel()
	badAct.Layers[0].Activation = "tanh"

	badRows := onOffModel()
	badRows.Layers[0].Weights = badRows.Layers[0].Weights[:3]

	badSize := onOffModel()
	badSize.InputWidth = 0

	for name, m := range map[string]DenseModel{
		"no layers": noLayers, "activation": badAct, "rows": badRows, "size": badSize,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, NewDense(DefaultConfig()).LoadModel(m))
		})
	}
}

func TestDenseClassifier_CorruptFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte("{"), 0o600))
	cfg := DefaultConfig()
	cfg.ModelPath = p
	err := NewDense(cfg).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrModelNotFound)
}
