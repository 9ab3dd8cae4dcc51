package support

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/sevseg/internal/threshold"
	"github.com/cucumber/godog"
)

func (w *World) aStripOfIntensities(list string) error {
	fields := strings.Fields(list)
	img := image.NewGray(image.Rect(0, 0, len(fields), 1))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 || v > 255 {
			return fmt.Errorf("invalid intensity %q", f)
		}
		img.Pix[i] = uint8(v)
	}
	w.Strip = img
	return nil
}

func (w *World) iEstimateTheThreshold() error {
	w.Threshold, w.LastError = threshold.DefaultEstimator().Estimate(w.Strip)
	return nil
}

func (w *World) theThresholdIs(want int) error {
	if w.LastError != nil {
		return fmt.Errorf("estimation failed: %w", w.LastError)
	}
	if w.Threshold != want {
		return fmt.Errorf("threshold %d, want %d", w.Threshold, want)
	}
	return nil
}

func (w *World) estimationFails() error {
	if w.LastError == nil {
		return fmt.Errorf("expected estimation to fail, got %d", w.Threshold)
	}
	return nil
}

func (w *World) iBinarizeWithThreshold(t int) error {
	w.Binary = threshold.Binarize(w.Strip, t)
	return nil
}

func (w *World) theBinaryPixelsAre(list string) error {
	want := strings.Fields(list)
	if len(want) != len(w.Binary.Pix) {
		return fmt.Errorf("got %d pixels, want %d", len(w.Binary.Pix), len(want))
	}
	for i, p := range w.Binary.Pix {
		got := "off"
		if p == threshold.On {
			got = "on"
		}
		if got != want[i] {
			return fmt.Errorf("pixel %d is %s, want %s", i, got, want[i])
		}
	}
	return nil
}

// RegisterThresholdSteps registers the binarization steps.
func (w *World) RegisterThresholdSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a strip of intensities "([^"]*)"$`, w.aStripOfIntensities)
	sc.Step(`^I estimate the threshold$`, w.iEstimateTheThreshold)
	sc.Step(`^the threshold is (\d+)$`, w.theThresholdIs)
	sc.Step(`^the estimation fails$`, w.estimationFails)
	sc.Step(`^I binarize with threshold (\d+)$`, w.iBinarizeWithThreshold)
	sc.Step(`^the binary pixels are "([^"]*)"$`, w.theBinaryPixelsAre)
}
