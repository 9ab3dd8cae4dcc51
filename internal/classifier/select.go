package classifier

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/sevseg/internal/models"
	"github.com/MeKo-Tech/sevseg/internal/onnx"
)

// runtimeAvailable is swapped in tests.
var runtimeAvailable = onnx.RuntimeAvailable

// ResolveBackend maps "auto" to a concrete backend: ONNX when its runtime
// library is installed, the dense network otherwise.
func ResolveBackend(cfg Config) string {
	if cfg.Backend != "" && cfg.Backend != BackendAuto {
		return cfg.Backend
	}
	if runtimeAvailable(cfg.GPU.UseGPU) {
		return models.BackendONNX
	}
	return models.BackendDense
}

// New creates the configured backend without loading it.
func New(cfg Config) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend := ResolveBackend(cfg)
	slog.Debug("classifier backend selected", "requested", cfg.Backend, "backend", backend)

	switch backend {
	case models.BackendONNX:
		return NewONNX(cfg), nil
	case models.BackendDense:
		return NewDense(cfg), nil
	case models.BackendTesseract:
		return newTesseract(cfg)
	}
	return nil, fmt.Errorf("unknown classifier backend %q", backend)
}
