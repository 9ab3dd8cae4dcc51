// Package classifier turns a binarized display strip into one class index
// per digit position. Backends share preprocessing and differ only in the
// model that scores the digit batch.
package classifier

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/sevseg/internal/models"
	"github.com/MeKo-Tech/sevseg/internal/onnx"
)

// Class indices 0..9 are the digits themselves.
const (
	Blank      = 10
	NumClasses = 11
	MaxDigit   = 9
)

var (
	// ErrModelNotFound reports a missing model artifact.
	ErrModelNotFound = errors.New("model not found")
	// ErrBackendUnavailable reports a backend that was not compiled in.
	ErrBackendUnavailable = errors.New("classifier backend not available in this build")
	// ErrNotLoaded is returned by Classify before a successful Load.
	ErrNotLoaded = errors.New("classifier not loaded")
)

// Classifier scores a binarized multi-digit strip.
type Classifier interface {
	// Load prepares the model. A missing artifact yields ErrModelNotFound.
	Load() error
	// Classify returns DigitCount class indices, left to right.
	Classify(strip image.Image) ([]int, error)
	// Name identifies the backend.
	Name() string
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend     string         `mapstructure:"backend" yaml:"backend" json:"backend"`
	ModelsDir   string         `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	ModelPath   string         `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DigitCount  int            `mapstructure:"digit_count" yaml:"digit_count" json:"digit_count"`
	InputWidth  int            `mapstructure:"input_width" yaml:"input_width" json:"input_width"`
	InputHeight int            `mapstructure:"input_height" yaml:"input_height" json:"input_height"`
	NumThreads  int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU         onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// BackendAuto picks a backend from the available runtimes.
const BackendAuto = "auto"

// DefaultConfig returns a 4-digit auto-selected configuration.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendAuto,
		DigitCount:  4,
		InputWidth:  28,
		InputHeight: 28,
		GPU:         onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendAuto, models.BackendONNX, models.BackendDense, models.BackendTesseract:
	default:
		return fmt.Errorf("unknown classifier backend %q", c.Backend)
	}
	if c.DigitCount <= 0 {
		return fmt.Errorf("digit count must be positive, got %d", c.DigitCount)
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("model input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	return c.GPU.Validate()
}

// modelPath returns the explicit model path or the backend's fixed location.
func (c Config) modelPath(backend string) string {
	if c.ModelPath != "" {
		return c.ModelPath
	}
	return models.BackendPath(c.ModelsDir, backend)
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrModelNotFound, path)
}

// ToLabels renders class indices as digit text, dropping blanks.
func ToLabels(indices []int) string {
	var b strings.Builder
	for _, idx := range indices {
		if idx >= 0 && idx <= MaxDigit {
			b.WriteByte(byte('0' + idx))
		}
	}
	return b.String()
}

// ParseValue concatenates the digit labels and parses them as a number.
// It returns nil when no digit was read, so a blank display stays distinct
// from a literal zero.
func ParseValue(indices []int) *int {
	s := ToLabels(indices)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
