package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	clientSendSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Event is a message pushed to WebSocket subscribers.
type Event struct {
	Type    string `json:"type"` // state, result, error
	Payload any    `json:"payload,omitempty"`
}

// ResultPayload carries one detection result.
type ResultPayload struct {
	Index int `json:"index"`
	aggregate.DetectionResult
}

// StatePayload carries a controller state change.
type StatePayload struct {
	State pipeline.State `json:"state"`
	Mode  pipeline.Mode  `json:"mode,omitempty"`
}

// Snapshot is the hub's view of the current run.
type Snapshot struct {
	Mode        pipeline.Mode
	Results     int
	Last        *aggregate.DetectionResult
	Subscribers int
}

// Hub is a pipeline observer that fans results out to WebSocket clients.
// A client that cannot keep up loses messages instead of stalling the run.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	mode    pipeline.Mode
	results int
	last    *aggregate.DetectionResult
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a client queue. The returned func unregisters it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, clientSendSize)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	websocketConnections.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			websocketConnections.Dec()
		})
	}
}

// Snapshot returns the current run summary.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{Mode: h.mode, Results: h.results, Subscribers: len(h.clients)}
	if h.last != nil {
		last := *h.last
		s.Last = &last
	}
	return s
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode WebSocket event", "type", ev.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		default:
			websocketMessagesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

func (h *Hub) OnStart(mode pipeline.Mode) {
	h.mu.Lock()
	h.mode, h.results, h.last = mode, 0, nil
	h.mu.Unlock()
	h.broadcast(Event{Type: "state", Payload: StatePayload{State: pipeline.StateRunning, Mode: mode}})
}

func (h *Hub) OnResult(index int, r aggregate.DetectionResult) {
	h.mu.Lock()
	h.results++
	h.last = &r
	h.mu.Unlock()
	h.broadcast(Event{Type: "result", Payload: ResultPayload{Index: index, DetectionResult: r}})
}

func (h *Hub) OnError(err error) {
	h.broadcast(Event{Type: "error", Payload: map[string]string{"error": err.Error()}})
}

func (h *Hub) OnComplete(state pipeline.State) {
	h.mu.Lock()
	mode := h.mode
	h.mu.Unlock()
	h.broadcast(Event{Type: "state", Payload: StatePayload{State: state, Mode: mode}})
}

// wsHandler streams hub events to one client until it disconnects.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "result feed disabled", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	// The reader only handles control frames and notices the disconnect.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("WebSocket read error", "error", err)
				}
				return
			}
		}
	}()

	status, _ := json.Marshal(Event{Type: "state", Payload: StatePayload{State: s.ctrl.State(), Mode: s.hub.Snapshot().Mode}})
	if err := s.write(conn, websocket.TextMessage, status); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case data := <-events:
			if err := s.write(conn, websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(messageType, data); err != nil {
		slog.Debug("WebSocket write failed", "error", err)
		return err
	}
	return nil
}
