package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		shouldCallNext bool
	}{
		{name: "GET request with CORS headers", corsOrigin: "*", method: http.MethodGet, shouldCallNext: true},
		{name: "POST request with specific origin", corsOrigin: "https://example.com", method: http.MethodPost, shouldCallNext: true},
		{name: "OPTIONS request (preflight)", corsOrigin: "*", method: http.MethodOptions, shouldCallNext: false},
		{name: "empty CORS origin", corsOrigin: "", method: http.MethodGet, shouldCallNext: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{corsOrigin: tt.corsOrigin}
			called := false
			h := s.corsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(tt.method, "/status", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.shouldCallNext, called)
		})
	}
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	s := &Server{rateLimiter: NewRateLimiter(2, 0)}
	h := s.rateLimitMiddleware(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/run/start", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Reads are never throttled.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/threshold", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_Windows(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.CheckRateLimit("a"))
	require.Error(t, rl.CheckRateLimit("a"))
	require.NoError(t, rl.CheckRateLimit("b"), "clients are tracked separately")

	now = now.Add(time.Minute)
	require.NoError(t, rl.CheckRateLimit("a"))

	now = now.Add(time.Minute)
	err := rl.CheckRateLimit("a")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)

	now = now.Add(time.Hour)
	assert.NoError(t, rl.CheckRateLimit("a"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestInstrument_CountsByStatus(t *testing.T) {
	h := instrument(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/instrumented", "418")
	before := promtestutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/instrumented", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.InDelta(t, before+1, promtestutil.ToFloat64(counter), 1e-9)
}
