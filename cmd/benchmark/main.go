// Command benchmark times the per-frame detection stages on a synthetic
// display, using a real classifier backend when its model is available.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/MeKo-Tech/sevseg/internal/benchmark"
	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/models"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/testutil"
	"github.com/MeKo-Tech/sevseg/internal/threshold"
)

func main() {
	var (
		modelsDir  = flag.String("models", "", "Directory containing digit models (default: auto-detect)")
		backend    = flag.String("backend", classifier.BackendAuto, "Classifier backend: auto, onnx, dense, tesseract")
		digits     = flag.String("digits", "1234", "Digits shown on the synthetic display")
		iterations = flag.Int("iterations", 50, "Iterations per stage")
		outputFile = flag.String("output", "", "Also write results to this file")
		useGPU     = flag.Bool("gpu", false, "Enable GPU acceleration for the onnx backend")
	)
	flag.Parse()

	fmt.Println("sevseg stage benchmark")
	fmt.Println("======================")

	display := testutil.DefaultDisplayConfig()
	n := len([]rune(*digits))
	frame, corners := testutil.Frame(*digits, display.DigitWidth*n+80, display.DigitHeight+80, image.Pt(40, 40), display)
	pts := make([]region.Point, len(corners))
	for i, c := range corners {
		pts[i] = region.Point{X: c.X, Y: c.Y}
	}

	clf := loadClassifier(*modelsDir, *backend, n, *useGPU, display)
	defer func() { _ = clf.Close() }()

	suite := benchmark.NewSuite()
	err := benchmark.AddStages(suite, benchmark.Stages{
		Frame:      frame,
		Points:     pts,
		Extractor:  region.Extractor{DigitCount: n, CropWidth: display.DigitWidth, CropHeight: display.DigitHeight},
		Estimator:  threshold.DefaultEstimator(),
		Classifier: clf,
	})
	if err != nil {
		log.Fatalf("Benchmark setup failed: %v", err)
	}

	fmt.Printf("Running %d iterations per stage...\n\n", *iterations)
	suite.RunAll(*iterations)
	suite.Fprint(os.Stdout)

	if *outputFile != "" {
		if err := saveResults(*outputFile, suite); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

// loadClassifier falls back to the geometric segment decoder when the
// requested backend has no model to load.
func loadClassifier(modelsDir, backend string, digitCount int, useGPU bool, display testutil.DisplayConfig) classifier.Classifier {
	cfg := classifier.DefaultConfig()
	cfg.ModelsDir = models.GetModelsDir(modelsDir)
	cfg.Backend = backend
	cfg.DigitCount = digitCount
	cfg.GPU.UseGPU = useGPU

	clf, err := classifier.New(cfg)
	if err == nil {
		if err = clf.Load(); err == nil {
			return clf
		}
		_ = clf.Close()
	}
	if !errors.Is(err, classifier.ErrModelNotFound) {
		log.Printf("Classifier %q unavailable: %v", backend, err)
	} else {
		log.Printf("No model for backend %q, using the segment decoder", classifier.ResolveBackend(cfg))
	}
	seg := testutil.NewSegmentClassifier(digitCount, display)
	_ = seg.Load()
	return seg
}

func saveResults(path string, suite *benchmark.Suite) error {
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the operator
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	suite.Fprint(f)
	_, _ = fmt.Fprintln(f)
	_, _ = fmt.Fprintln(f, "stage,iterations,avg_us,alloc_bytes,error")
	for _, r := range suite.Results() {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		_, _ = fmt.Fprintf(f, "%s,%d,%.1f,%d,%q\n",
			r.Name, r.Iterations, float64(r.PerOp().Nanoseconds())/1e3, r.AllocBytes, errText)
	}
	return nil
}
