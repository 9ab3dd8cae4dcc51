package support

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/server"
	"github.com/cucumber/godog"
)

func (w *World) theControlServerServesTheRecording(frames int, every string) error {
	w.Hub = server.NewHub()
	if err := w.sampling(frames, every); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancelServer = cancel

	cfg := server.DefaultConfig()
	cfg.Version = "test"
	srv := server.NewServer(ctx, cfg, w.Controller, w.Hub, w.Store)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	w.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (w *World) do(method, path, body string) error {
	req, err := http.NewRequest(method, w.HTTPServer.URL+path, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := w.HTTPServer.Client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	w.LastStatus = resp.StatusCode
	w.LastResponse, err = io.ReadAll(resp.Body)
	return err
}

func (w *World) iPOSTTo(body, path string) error {
	return w.do(http.MethodPost, path, body)
}

func (w *World) iGET(path string) error {
	return w.do(http.MethodGet, path, "")
}

func (w *World) theResponseStatusIs(want int) error {
	if w.LastStatus != want {
		return fmt.Errorf("status %d, want %d: %s", w.LastStatus, want, w.LastResponse)
	}
	return nil
}

func (w *World) theResponseContains(want string) error {
	if !strings.Contains(string(w.LastResponse), want) {
		return fmt.Errorf("response %s does not contain %q", w.LastResponse, want)
	}
	return nil
}

func (w *World) theRunEventuallyEndsAs(want string) error {
	deadline := time.Now().Add(runTimeout)
	for time.Now().Before(deadline) {
		if st := w.Controller.State(); st.Terminal() {
			if st.String() != want {
				return fmt.Errorf("run ended %s, want %s", st, want)
			}
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("run did not end within %s", runTimeout)
}

// RegisterServerSteps registers the HTTP control steps.
func (w *World) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the control server serves the recording sampling (\d+) frames? every "([^"]*)"$`,
		w.theControlServerServesTheRecording)
	sc.Step(`^I POST '([^']*)' to "([^"]*)"$`, w.iPOSTTo)
	sc.Step(`^I GET "([^"]*)"$`, w.iGET)
	sc.Step(`^the response status is (\d+)$`, w.theResponseStatusIs)
	sc.Step(`^the response contains '([^']*)'$`, w.theResponseContains)
	sc.Step(`^the run eventually ends as "([^"]*)"$`, w.theRunEventuallyEndsAs)
}
