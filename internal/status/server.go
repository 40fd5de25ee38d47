// Package status exposes a read-only view of the kiosk over HTTP: a
// live dashboard, JSON state, scan history, Prometheus metrics, and an
// SSE stream. It only observes; nothing here can change playback.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtavella/tagplay/internal/history"
	"github.com/mtavella/tagplay/internal/kiosk"
)

// HistorySource serves recent rows for the JSON endpoints. May be nil
// when the kiosk runs without a database.
type HistorySource interface {
	RecentScans(limit int) ([]history.Scan, error)
	RecentSegments(limit int) ([]history.Segment, error)
}

// Server is the observability surface. It satisfies kiosk.Notifier so
// the playback loop can report into it directly.
type Server struct {
	hub     *Hub
	history HistorySource

	stateMu sync.RWMutex
	state   []byte // last playback snapshot as JSON

	srv *http.Server
}

// NewServer wires the routes. history may be nil.
func NewServer(addr string, hist HistorySource) *Server {
	s := &Server{
		hub:     NewHub(),
		history: hist,
		state:   []byte(`{"phase":"starting"}`),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/scans", s.handleScans)
	mux.HandleFunc("GET /api/segments", s.handleSegments)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("GET /", s.handleIndex)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs unlimited write time
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start serves in a background goroutine until Shutdown. Listen errors
// are logged, not fatal: the kiosk keeps playing without its status
// page.
func (s *Server) Start() {
	go func() {
		slog.Info("status: http server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status: http server error", "error", err)
		}
	}()
}

// Shutdown stops the server and disconnects SSE clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

// ── kiosk.Notifier ──────────────────────────────────────

// PlaybackChanged caches and broadcasts the new snapshot.
func (s *Server) PlaybackChanged(snap kiosk.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.stateMu.Lock()
	s.state = data
	s.stateMu.Unlock()

	target := "content"
	if snap.IsIdle {
		target = "idle"
	}
	playbackSwitches.WithLabelValues(target).Inc()
	s.hub.Broadcast("playback", data)
}

// TagSeen counts one RFID event and pushes it to SSE clients.
func (s *Server) TagSeen(tagID uint64, kind string, mapped bool) {
	tagScans.WithLabelValues(kind, strconv.FormatBool(mapped)).Inc()
	payload, _ := json.Marshal(struct {
		Tag    string `json:"tag"`
		Kind   string `json:"kind"`
		Mapped bool   `json:"mapped"`
	}{Tag: fmt.Sprintf("0x%X", tagID), Kind: kind, Mapped: mapped})
	s.hub.Broadcast("tag", payload)
}

// FramePresented counts one displayed frame.
func (s *Server) FramePresented() {
	framesPresented.Inc()
}

// LoadFailed counts one video that would not open.
func (s *Server) LoadFailed(path string) {
	loadFailures.Inc()
}

// ── handlers ────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.stateMu.RLock()
	data := s.state
	s.stateMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, `{"error":"history disabled"}`, http.StatusNotFound)
		return
	}
	scans, err := s.history.RecentScans(queryLimit(r))
	if err != nil {
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, scans)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, `{"error":"history disabled"}`, http.StatusNotFound)
		return
	}
	segments, err := s.history.RecentSegments(queryLimit(r))
	if err != nil {
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, segments)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page := dashboard(func() []byte {
		s.stateMu.RLock()
		defer s.stateMu.RUnlock()
		return s.state
	})
	templ.Handler(page).ServeHTTP(w, r)
}

// handleSSE streams playback events to browser clients.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(events)

	fmt.Fprintf(w, ": connected\n\n")

	// Replay the current snapshot so new clients sync immediately.
	s.stateMu.RLock()
	fmt.Fprintf(w, "event: playback\ndata: %s\n\n", s.state)
	s.stateMu.RUnlock()
	flusher.Flush()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			w.Write(msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func queryLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("status: response encode failed", "error", err)
	}
}
