package export

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
)

// ChartWidth and ChartHeight size the PNG chart.
const (
	ChartWidth  = 10 * vg.Inch
	ChartHeight = 4 * vg.Inch
)

// ErrNoValues is returned when no result carries a value to plot.
var ErrNoValues = errors.New("no readings to plot")

// WriteChart plots the read values over the result index as PNG. Results
// without a value leave a gap; they are marked on the x axis.
func WriteChart(w io.Writer, title string, results []aggregate.DetectionResult) error {
	values := make(plotter.XYs, 0, len(results))
	misses := make(plotter.XYs, 0)
	for i, r := range results {
		if r.Value == nil {
			misses = append(misses, plotter.XY{X: float64(i), Y: 0})
			continue
		}
		values = append(values, plotter.XY{X: float64(i), Y: float64(*r.Value)})
	}
	if len(values) == 0 {
		return ErrNoValues
	}

	p := plot.New()
	p.Title.Text = "Display readings"
	if title != "" {
		p.Title.Text = fmt.Sprintf("Display readings (%s)", title)
	}
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Value"

	line, err := plotter.NewLine(values)
	if err != nil {
		return fmt.Errorf("build value line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("value", line)

	if len(misses) > 0 {
		scatter, err := plotter.NewScatter(misses)
		if err != nil {
			return fmt.Errorf("build miss markers: %w", err)
		}
		scatter.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		scatter.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add("no reading", scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(ChartWidth, ChartHeight, "png")
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
