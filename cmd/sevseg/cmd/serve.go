package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/server"
	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/MeKo-Tech/sevseg/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Start an HTTP server that drives the detection pipeline.

The server provides the following endpoints:
  GET  /health               - Health check
  GET  /status               - Pipeline state and the last reading
  POST /run/start            - Start a live or replay run
  POST /run/cancel           - Cancel the active run
  GET  /threshold            - Current threshold
  POST /threshold            - Change the threshold of a live run
  GET  /runs                 - Recorded runs
  GET  /runs/{id}/results    - Readings of a run (?format=csv|json|text|png)
  GET  /ws                   - WebSocket feed of readings and state changes
  GET  /metrics              - Prometheus metrics

Editing threshold.value in the config file while the server runs applies
the new threshold to the live run.

Examples:
  sevseg serve
  sevseg serve --port 8080 --start live
  sevseg serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		autostart, _ := cmd.Flags().GetString("start")
		if autostart != "" && autostart != string(pipeline.ModeLive) && autostart != string(pipeline.ModeReplay) {
			return fmt.Errorf("invalid --start mode %q (valid: live, replay)", autostart)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, pipeline.Mode(autostart), func(addr string) {
			slog.Info("Starting detection server", "addr", addr)
		})
	},
}

// serve runs the server until ctx ends. ready is called with the bound
// address once the listener is open.
func serve(ctx context.Context, cfg *config.Config, autostart pipeline.Mode, ready func(addr string)) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	hub := server.NewHub()
	observers := pipeline.MultiObserver{hub, pipeline.NewLogObserver(slog.Default(), slog.LevelInfo)}
	if st != nil {
		observers = append(observers, store.NewRecorder(st, cfg.Capture.Source, cfg.Display.DigitCount))
	}
	ctrl, err := newController(cfg, observers)
	if err != nil {
		return err
	}

	srvCfg := cfg.Server
	srvCfg.Version = version.Get().Version
	srv := server.NewServer(ctx, srvCfg, ctrl, hub, st)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	addr := net.JoinHostPort(srvCfg.Host, strconv.Itoa(srvCfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	watchThreshold(ctrl)

	if autostart != "" {
		if err := ctrl.Start(ctx, autostart); err != nil {
			_ = ln.Close()
			return fmt.Errorf("start %s run: %w", autostart, err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown requested")
	case err, ok := <-serveErr:
		if ok {
			slog.Error("Server error", "error", err)
			runErr = err
		}
	}

	timeout := cfg.ShutdownTimeout()
	slog.Info("Starting graceful shutdown", "timeout", timeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	ctrl.Cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			slog.Warn("detection run ended with error", "error", err)
		}
	case <-shutdownCtx.Done():
		slog.Warn("detection run did not stop in time")
	}

	slog.Info("Graceful shutdown completed")
	return runErr
}

// watchThreshold forwards threshold.value edits in the config file to the
// controller.
func watchThreshold(ctrl *pipeline.Controller) {
	GetConfigLoader().Watch(func(cfg *config.Config) {
		t, err := config.ParseThreshold(cfg.Threshold.Value)
		if err != nil {
			return
		}
		if err := ctrl.SetThreshold(t); err != nil {
			slog.Warn("config threshold not applied", "error", err)
		}
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addDisplayFlags(serveCmd)
	addDetectionFlags(serveCmd)

	d := config.DefaultConfig()
	fs := serveCmd.Flags()
	fs.StringP("host", "H", d.Server.Host, "server host")
	fs.IntP("port", "p", d.Server.Port, "server port")
	fs.String("cors-origin", d.Server.CORSOrigin, "CORS allowed origins")
	fs.Duration("shutdown-timeout", d.Server.ShutdownTimeout, "graceful shutdown timeout")
	fs.Bool("rate-limit-enabled", d.Server.RateLimit.Enabled, "enable rate limiting of control endpoints")
	fs.Int("requests-per-minute", d.Server.RateLimit.RequestsPerMinute, "maximum control requests per minute per client")
	fs.Int("requests-per-hour", d.Server.RateLimit.RequestsPerHour, "maximum control requests per hour per client")
	fs.StringP("source", "s", d.Capture.Source, "camera index, video file, frame directory or watch:<dir>")
	fs.String("start", "", "start a run immediately (live or replay)")
	bindFlag(fs, "host", "server.host")
	bindFlag(fs, "port", "server.port")
	bindFlag(fs, "cors-origin", "server.cors_origin")
	bindFlag(fs, "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(fs, "rate-limit-enabled", "server.rate_limit.enabled")
	bindFlag(fs, "requests-per-minute", "server.rate_limit.requests_per_minute")
	bindFlag(fs, "requests-per-hour", "server.rate_limit.requests_per_hour")
	bindFlag(fs, "source", "capture.source")
}
