// Package support holds the step definitions of the detection feature
// suite.
package support

import (
	"fmt"
	"image"
	"net/http/httptest"
	"os"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/server"
	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/MeKo-Tech/sevseg/internal/testutil"
)

// World is the state shared by the steps of one scenario.
type World struct {
	TempDir string

	// region
	Points  []region.Point
	Ordered region.Quad
	OrderOK bool

	// threshold
	Strip     image.Image
	Threshold int
	Binary    *image.Gray
	LastError error

	// aggregation
	Readings []aggregate.Reading
	Result   aggregate.DetectionResult

	// pipeline
	Display    testutil.DisplayConfig
	Recording  string
	Frames     []image.Image
	Corners    [4]image.Point
	Params     pipeline.Params
	Collector  *pipeline.Collector
	Controller *pipeline.Controller
	Store      *store.Store
	Recorder   *store.Recorder

	// server
	Hub          *server.Hub
	HTTPServer   *httptest.Server
	LastStatus   int
	LastResponse []byte
	cancelServer func()
}

// NewWorld creates a scenario context with its own temp directory.
func NewWorld() (*World, error) {
	dir, err := os.MkdirTemp("", "sevseg-features-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &World{TempDir: dir, Display: testutil.DefaultDisplayConfig()}, nil
}

// Cleanup stops servers and runs, then removes the temp directory.
func (w *World) Cleanup() error {
	if w.HTTPServer != nil {
		w.HTTPServer.Close()
	}
	if w.cancelServer != nil {
		w.cancelServer()
	}
	if w.Controller != nil {
		w.Controller.Cancel()
		_ = w.Controller.Wait()
	}
	if w.Store != nil {
		_ = w.Store.Close()
	}
	return os.RemoveAll(w.TempDir)
}
