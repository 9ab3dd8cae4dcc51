// Command model-test reports which digit classifier artifacts are present
// and whether the ONNX digit model matches the [N, C, H, W] -> [N, classes]
// contract the classifier expects.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/sevseg/internal/models"
	"github.com/MeKo-Tech/sevseg/internal/onnx"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	modelsDir := flag.String("models", "", "Directory containing digit models (default: auto-detect)")
	useGPU := flag.Bool("gpu", false, "Look for the GPU build of ONNX Runtime")
	flag.Parse()

	dir := models.GetModelsDir(*modelsDir)
	fmt.Printf("Checking digit models in %s\n", dir)
	fmt.Println("=====================================")

	for _, backend := range []string{models.BackendONNX, models.BackendDense, models.BackendTesseract} {
		path := models.BackendPath(dir, backend)
		if models.Exists(path) {
			fmt.Printf("✅ %-9s %s\n", backend, path)
		} else {
			fmt.Printf("❌ %-9s %s: not found\n", backend, path)
		}
	}
	fmt.Println()

	path := models.BackendPath(dir, models.BackendONNX)
	if !models.Exists(path) {
		return
	}
	if err := onnx.Setup(*useGPU); err != nil {
		slog.Error("Failed to initialize ONNX Runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := onnxrt.DestroyEnvironment(); err != nil {
			slog.Error("Failed to destroy ONNX Runtime environment", "error", err)
		}
	}()

	inputs, outputs, err := onnxrt.GetInputOutputInfo(path)
	if err != nil {
		fmt.Printf("❌ %s: failed to get model info - %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Inputs: %d\n", len(inputs))
	for i, in := range inputs {
		fmt.Printf("  [%d] %s: %v (type: %s)\n", i, in.Name, in.Dimensions, in.DataType)
	}
	fmt.Printf("Outputs: %d\n", len(outputs))
	for i, out := range outputs {
		fmt.Printf("  [%d] %s: %v (type: %s)\n", i, out.Name, out.Dimensions, out.DataType)
	}

	if problems := checkContract(inputs, outputs); len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("❌ %s\n", p)
		}
		os.Exit(1)
	}

	if metadata, err := onnxrt.GetModelMetadata(path); err == nil {
		if producer, err := metadata.GetProducerName(); err == nil && producer != "" {
			fmt.Printf("Producer: %s\n", producer)
		}
		if version, err := metadata.GetVersion(); err == nil {
			fmt.Printf("Version: %d\n", version)
		}
		if err := metadata.Destroy(); err != nil {
			slog.Error("Failed to destroy model metadata", "error", err)
		}
	}
	fmt.Println("✅ digit model is compatible")
}

// checkContract validates the model's I/O against the classifier's
// expectations. Dynamic dimensions (<= 0) are replaced by 1 for the check.
func checkContract(inputs, outputs []onnxrt.InputOutputInfo) []string {
	var problems []string
	if len(inputs) != 1 {
		problems = append(problems, fmt.Sprintf("expected 1 input, got %d", len(inputs)))
	} else {
		shape := make([]int64, len(inputs[0].Dimensions))
		for i, d := range inputs[0].Dimensions {
			shape[i] = max(d, 1)
		}
		if err := onnx.ValidateNCHW(shape); err != nil {
			problems = append(problems, fmt.Sprintf("input %s: %v", inputs[0].Name, err))
		}
		if inputs[0].DataType != onnxrt.TensorElementDataTypeFloat {
			problems = append(problems, fmt.Sprintf("input %s: want float32, got %s", inputs[0].Name, inputs[0].DataType))
		}
	}
	if len(outputs) < 1 {
		problems = append(problems, "model has no outputs")
	} else if n := len(outputs[0].Dimensions); n != 2 {
		problems = append(problems, fmt.Sprintf("output %s: want rank 2 scores, got rank %d", outputs[0].Name, n))
	}
	return problems
}
