package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/export"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/store"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// statusHandler reports the controller state and the latest result.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p := s.ctrl.Params()
	resp := StatusResponse{
		State:      s.ctrl.State(),
		Threshold:  s.ctrl.Threshold(),
		DigitCount: p.DigitCount,
		Interval:   p.Interval.String(),
	}
	if s.hub != nil {
		snap := s.hub.Snapshot()
		resp.Mode = snap.Mode
		resp.Results = snap.Results
		resp.Last = snap.Last
		resp.Subscribers = snap.Subscribers
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// startHandler starts a run in the background.
func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := StartRequest{Mode: pipeline.ModeLive}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	}
	if req.Mode == "" {
		req.Mode = pipeline.ModeLive
	}
	if req.Mode != pipeline.ModeLive && req.Mode != pipeline.ModeReplay {
		s.writeErrorResponse(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
		return
	}

	if err := s.ctrl.Start(s.baseCtx, req.Mode); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrBusy) {
			status = http.StatusConflict
		}
		s.writeErrorResponse(w, err.Error(), status)
		return
	}
	slog.Info("run started via API", "mode", req.Mode, "remote_addr", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "mode": req.Mode})
}

// cancelHandler asks the active run to stop.
func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Cancel()
	s.writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "state": s.ctrl.State()})
}

// thresholdHandler reads or replaces the binarization threshold.
func (s *Server) thresholdHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, ThresholdRequest{Threshold: s.ctrl.Threshold()})
	case http.MethodPost:
		var req ThresholdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if err := s.ctrl.SetThreshold(req.Threshold); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, pipeline.ErrThresholdFixed) {
				status = http.StatusConflict
			}
			s.writeErrorResponse(w, err.Error(), status)
			return
		}
		s.writeJSON(w, http.StatusOK, ThresholdRequest{Threshold: s.ctrl.Threshold()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// runsHandler lists stored runs, newest first.
func (s *Server) runsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeErrorResponse(w, "result store disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeErrorResponse(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.store.Runs(limit)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// resultsHandler exports the results of one run; format defaults to json.
func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeErrorResponse(w, "result store disabled", http.StatusNotFound)
		return
	}
	id := r.PathValue("id")
	format := export.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}

	results, err := s.store.Results(id)
	if errors.Is(err, store.ErrRunNotFound) {
		s.writeErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	if err := export.Write(w, format, id, results); err != nil {
		slog.Error("Failed to export results", "run_id", id, "format", format, "error", err)
	}
}

func contentType(f export.Format) string {
	switch f {
	case export.FormatCSV:
		return "text/csv"
	case export.FormatText:
		return "text/plain; charset=utf-8"
	case export.FormatPNG:
		return "image/png"
	}
	return "application/json"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
