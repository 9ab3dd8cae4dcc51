package classifier

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/sevseg/internal/models"
	"github.com/MeKo-Tech/sevseg/internal/onnx"
)

// ONNXClassifier runs a digit model exported to ONNX. The model takes
// [N, C, H, W] digit crops and returns [N, classes] scores.
type ONNXClassifier struct {
	cfg       Config
	modelPath string

	mu         sync.Mutex
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
	width      int
	height     int
	channels   int
}

// NewONNX creates an unloaded ONNX classifier.
func NewONNX(cfg Config) *ONNXClassifier {
	return &ONNXClassifier{
		cfg:       cfg,
		modelPath: cfg.modelPath(models.BackendONNX),
		width:     cfg.InputWidth,
		height:    cfg.InputHeight,
		channels:  1,
	}
}

func (c *ONNXClassifier) Name() string { return models.BackendONNX }

// Load opens the ONNX session.
func (c *ONNXClassifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}
	if _, err := os.Stat(c.modelPath); os.IsNotExist(err) {
		return notFound(c.modelPath)
	}

	slog.Debug("loading onnx digit model", "path", c.modelPath, "gpu", c.cfg.GPU.UseGPU)
	if err := onnx.Setup(c.cfg.GPU.UseGPU); err != nil {
		return fmt.Errorf("failed to set up ONNX Runtime: %w", err)
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(c.modelPath)
	if err != nil {
		return fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return fmt.Errorf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs))
	}
	c.inputInfo, c.outputInfo = inputs[0], outputs[0]
	c.adoptInputShape(c.inputInfo.Dimensions)

	session, err := c.createSession()
	if err != nil {
		return err
	}
	c.session = session
	slog.Info("digit classifier loaded", "backend", c.Name(),
		"input", []int{c.channels, c.height, c.width}, "output", c.outputInfo.Dimensions)
	return nil
}

// adoptInputShape takes fixed C/H/W from the model, keeping configured
// values for dynamic dimensions.
func (c *ONNXClassifier) adoptInputShape(dims onnxrt.Shape) {
	if len(dims) != 4 {
		return
	}
	if dims[1] > 0 {
		c.channels = int(dims[1])
	}
	if dims[2] > 0 {
		c.height = int(dims[2])
	}
	if dims[3] > 0 {
		c.width = int(dims[3])
	}
}

func (c *ONNXClassifier) createSession() (*onnxrt.DynamicAdvancedSession, error) {
	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(opts, c.cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if c.cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(c.cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxrt.NewDynamicAdvancedSession(c.modelPath,
		[]string{c.inputInfo.Name}, []string{c.outputInfo.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// Classify scores every digit of the strip in one batch.
func (c *ONNXClassifier) Classify(strip image.Image) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotLoaded
	}

	tensor, err := Preprocess(strip, c.cfg.DigitCount, c.width, c.height, c.channels)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	defer Release(tensor)
	input, err := onnxrt.NewTensor(onnxrt.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := c.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	scores, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected output tensor type")
	}
	data := scores.GetData()
	rows := c.cfg.DigitCount
	if len(data)%rows != 0 {
		return nil, fmt.Errorf("output length %d not divisible by %d digits (shape %v)",
			len(data), rows, scores.GetShape())
	}
	return onnx.ArgMaxRows(data, rows, len(data)/rows)
}

// Close releases the session.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}
