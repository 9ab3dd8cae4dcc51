package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/region"
)

func TestGenerate(t *testing.T) {
	out := t.TempDir()
	fixture, err := generate(options{
		out: out, name: "rec", start: 9998, step: 1, digits: 4,
		fps: 2, interval: time.Second, samples: 3, noise: 5, seed: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, fixture.Frames)
	assert.Equal(t, []int{9998, 9999, 0}, fixture.Expected, "values wrap at the display width")

	frames, err := filepath.Glob(filepath.Join(out, "rec", "frames", "*.png"))
	require.NoError(t, err)
	assert.Len(t, frames, 6)

	pts, err := region.ParsePoints(fixture.Points)
	require.NoError(t, err)
	assert.Len(t, pts, 4)

	raw, err := os.ReadFile(filepath.Join(out, "rec", "fixture.json"))
	require.NoError(t, err)
	var decoded Fixture
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *fixture, decoded)

	cfg, err := config.NewLoaderWithViper(viper.New()).Load(filepath.Join(out, "rec", "sevseg.yaml"))
	require.NoError(t, err)
	assert.Equal(t, fixture.Points, cfg.Display.Points)
	assert.InDelta(t, 2.0, cfg.Replay.FPS, 1e-9)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	_, err := generate(options{out: t.TempDir(), name: "x", digits: 4, fps: 0, interval: time.Second, samples: 1})
	require.Error(t, err)
}
