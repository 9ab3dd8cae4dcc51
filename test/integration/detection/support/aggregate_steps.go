package support

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/cucumber/godog"
)

// parseReading turns "12_4" into class indices; "_" is a blank position.
func parseReading(s string) (aggregate.Reading, error) {
	r := make(aggregate.Reading, 0, len(s))
	for _, c := range s {
		switch {
		case c == '_':
			r = append(r, classifier.Blank)
		case c >= '0' && c <= '9':
			r = append(r, int(c-'0'))
		default:
			return nil, fmt.Errorf("invalid digit %q in reading %q", c, s)
		}
	}
	return r, nil
}

func (w *World) theReadings(table *godog.Table) error {
	w.Readings = nil
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		r, err := parseReading(row.Cells[0].Value)
		if err != nil {
			return err
		}
		w.Readings = append(w.Readings, r)
	}
	return nil
}

func (w *World) noReadings() error {
	w.Readings = nil
	return nil
}

func (w *World) iAggregateThemAt(ts string) error {
	w.Result = aggregate.Reduce(w.Readings, ts)
	return nil
}

func (w *World) theValueIs(want int) error {
	if w.Result.Value == nil {
		return errors.New("value is empty")
	}
	if *w.Result.Value != want {
		return fmt.Errorf("value %d, want %d", *w.Result.Value, want)
	}
	return nil
}

func (w *World) theValueIsEmpty() error {
	if w.Result.Value != nil {
		return fmt.Errorf("value %d, want empty", *w.Result.Value)
	}
	return nil
}

func (w *World) theFailedRateIs(want float64) error {
	if math.Abs(w.Result.FailedRate-want) > 1e-9 {
		return fmt.Errorf("failed rate %g, want %g", w.Result.FailedRate, want)
	}
	return nil
}

func (w *World) theTimestampIs(want string) error {
	if w.Result.Timestamp != want {
		return fmt.Errorf("timestamp %q, want %q", w.Result.Timestamp, want)
	}
	return nil
}

// RegisterAggregateSteps registers the consensus steps.
func (w *World) RegisterAggregateSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the readings:$`, w.theReadings)
	sc.Step(`^no readings$`, w.noReadings)
	sc.Step(`^I aggregate them at "([^"]*)"$`, w.iAggregateThemAt)
	sc.Step(`^the value is (\d+)$`, w.theValueIs)
	sc.Step(`^the value is empty$`, w.theValueIsEmpty)
	sc.Step(`^the failed rate is ([0-9.]+)$`, w.theFailedRateIs)
	sc.Step(`^the timestamp is "([^"]*)"$`, w.theTimestampIs)
}
