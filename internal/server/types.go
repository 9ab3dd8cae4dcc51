// Package server exposes a detection controller over HTTP: status and
// control endpoints, Prometheus metrics, and a WebSocket result feed.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the part of pipeline.Controller the server drives.
type Controller interface {
	Start(ctx context.Context, mode pipeline.Mode) error
	Cancel()
	State() pipeline.State
	SetThreshold(t *int) error
	Threshold() *int
	Params() pipeline.Params
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	ctrl        Controller
	hub         *Hub
	store       *store.Store
	baseCtx     context.Context
	corsOrigin  string
	rateLimiter *RateLimiter
	version     string
}

// RateLimitConfig throttles the control endpoints per client.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour"`
}

// Config holds server configuration.
type Config struct {
	Host            string          `mapstructure:"host" yaml:"host"`
	Port            int             `mapstructure:"port" yaml:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Version         string          `mapstructure:"-" yaml:"-"`
}

// DefaultConfig listens on localhost:8080.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		ShutdownTimeout: 10 * time.Second,
		RateLimit:       RateLimitConfig{RequestsPerMinute: 60, RequestsPerHour: 1000},
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// StatusResponse is returned by /status.
type StatusResponse struct {
	State       pipeline.State             `json:"state"`
	Mode        pipeline.Mode              `json:"mode,omitempty"`
	Threshold   *int                       `json:"threshold"`
	DigitCount  int                        `json:"digit_count"`
	Interval    string                     `json:"interval"`
	Results     int                        `json:"results"`
	Last        *aggregate.DetectionResult `json:"last,omitempty"`
	Subscribers int                        `json:"subscribers"`
}

// StartRequest is the body of POST /run/start.
type StartRequest struct {
	Mode pipeline.Mode `json:"mode"`
}

// ThresholdRequest is the body of POST /threshold; a null threshold
// switches back to estimation.
type ThresholdRequest struct {
	Threshold *int `json:"threshold"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer wires a controller to its HTTP surface. hub must also be
// registered as an observer of ctrl. st may be nil.
func NewServer(ctx context.Context, cfg Config, ctrl Controller, hub *Hub, st *store.Store) *Server {
	s := &Server{
		ctrl:       ctrl,
		hub:        hub,
		store:      st,
		baseCtx:    ctx,
		corsOrigin: cfg.CORSOrigin,
		version:    cfg.Version,
	}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RequestsPerHour)
	}
	return s
}

// SetupRoutes configures the HTTP routes. Control endpoints are rate
// limited when a limiter is configured.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	route := func(pattern string, h http.HandlerFunc, limited bool) {
		if limited {
			h = s.rateLimitMiddleware(h)
		}
		mux.HandleFunc(pattern, instrument(s.corsMiddleware(h)))
	}
	route("/health", s.healthHandler, false)
	route("/status", s.statusHandler, false)
	route("/run/start", s.startHandler, true)
	route("/run/cancel", s.cancelHandler, true)
	route("/threshold", s.thresholdHandler, true)
	route("/runs", s.runsHandler, false)
	route("/runs/{id}/results", s.resultsHandler, false)
	mux.HandleFunc("/ws", s.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
