package support

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/cucumber/godog"
)

func (w *World) thePoints(s string) error {
	pts, err := region.ParsePoints(s)
	if err != nil {
		return err
	}
	w.Points = pts
	return nil
}

func (w *World) noPoints() error {
	w.Points = nil
	return nil
}

func (w *World) iOrderThePoints() error {
	w.Ordered, w.OrderOK = region.OrderPoints(w.Points)
	return nil
}

func (w *World) theOrderedPointsAre(want string) error {
	if !w.OrderOK {
		return errors.New("points could not be ordered")
	}
	if got := w.Ordered.String(); got != want {
		return fmt.Errorf("ordered points %q, want %q", got, want)
	}
	return nil
}

func (w *World) orderingIsRejected() error {
	if w.OrderOK {
		return fmt.Errorf("expected rejection, got %s", w.Ordered)
	}
	return nil
}

func (w *World) iClickAt(x, y int) error {
	w.Points = region.AddPoint(w.Points, region.Point{X: x, Y: y})
	return nil
}

func (w *World) theRegionIs(want string) error {
	if got := region.FormatPoints(w.Points); got != want {
		return fmt.Errorf("region %q, want %q", got, want)
	}
	return nil
}

// RegisterRegionSteps registers the region selection steps.
func (w *World) RegisterRegionSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the points "([^"]*)"$`, w.thePoints)
	sc.Step(`^no points$`, w.noPoints)
	sc.Step(`^I order the points$`, w.iOrderThePoints)
	sc.Step(`^the ordered points are "([^"]*)"$`, w.theOrderedPointsAre)
	sc.Step(`^the ordering is rejected$`, w.orderingIsRejected)
	sc.Step(`^I click at (\d+),(\d+)$`, w.iClickAt)
	sc.Step(`^the region is "([^"]*)"$`, w.theRegionIs)
}
