package classifier

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sevseg/internal/models"
)

func withRuntime(t *testing.T, available bool) {
	t.Helper()
	orig := runtimeAvailable
	runtimeAvailable = func(bool) bool { return available }
	t.Cleanup(func() { runtimeAvailable = orig })
}

func TestResolveBackend(t *testing.T) {
	cfg := DefaultConfig()

	withRuntime(t, true)
	assert.Equal(t, models.BackendONNX, ResolveBackend(cfg))

	withRuntime(t, false)
	assert.Equal(t, models.BackendDense, ResolveBackend(cfg))

	cfg.Backend = models.BackendONNX
	assert.Equal(t, models.BackendONNX, ResolveBackend(cfg), "explicit choice is kept")
}

func TestNew(t *testing.T) {
	withRuntime(t, false)

	c, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, models.BackendDense, c.Name())

	cfg := DefaultConfig()
	cfg.Backend = models.BackendONNX
	c, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.BackendONNX, c.Name())

	cfg.Backend = "keras"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.DigitCount = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.InputHeight = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.GPU.UseGPU = true
	cfg.GPU.DeviceID = -2
	assert.Error(t, cfg.Validate())
}

func TestONNXClassifier_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = t.TempDir()
	c := NewONNX(cfg)

	err := c.Load()
	require.ErrorIs(t, err, ErrModelNotFound)
	assert.Contains(t, err.Error(), filepath.Join("digits", models.DigitsONNX))

	_, err = c.Classify(strip(true))
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.NoError(t, c.Close())
}

func TestONNXClassifier_AdoptInputShape(t *testing.T) {
	c := NewONNX(DefaultConfig())
	c.adoptInputShape([]int64{-1, 3, 32, -1})
	assert.Equal(t, 3, c.channels)
	assert.Equal(t, 32, c.height)
	assert.Equal(t, 28, c.width, "dynamic width keeps configured value")
}
