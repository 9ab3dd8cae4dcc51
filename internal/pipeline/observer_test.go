package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/stretchr/testify/assert"
)

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewConsoleObserver(&buf)
	v := 42
	o.OnStart(ModeReplay)
	o.OnResult(0, aggregate.DetectionResult{Value: &v, FailedRate: 0.25, Timestamp: "00:00:00.000"})
	o.OnResult(1, aggregate.Failed("00:00:01.000"))
	o.OnError(errors.New("boom"))
	o.OnComplete(StateErrored)

	out := buf.String()
	assert.Contains(t, out, "replay detection started")
	assert.Contains(t, out, "[   0] 00:00:00.000  value=42       failed= 25.0%")
	assert.Contains(t, out, "value=-")
	assert.Contains(t, out, "error: boom")
	assert.Contains(t, out, "errored after 2 results")
}

func TestMultiObserverAndCollector(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	var logs bytes.Buffer
	m := MultiObserver{a, b, NewLogObserver(slog.New(slog.NewTextHandler(&logs, nil)), slog.LevelInfo)}

	m.OnStart(ModeLive)
	m.OnResult(0, aggregate.Failed("t0"))
	m.OnError(errors.New("capture failed"))
	m.OnComplete(StateErrored)

	for _, c := range []*Collector{a, b} {
		assert.Len(t, c.Results(), 1)
		assert.Equal(t, StateErrored, c.State())
		assert.EqualError(t, c.Err(), "capture failed")
	}
	assert.Contains(t, logs.String(), "detection result")
	assert.Contains(t, logs.String(), "capture failed")
}
