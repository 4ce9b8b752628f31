// Package gateway exposes the HTTP/WebSocket transport boundary.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yoonhw/jibsa/internal/events"
	"github.com/yoonhw/jibsa/internal/gateway/ws"
	"github.com/yoonhw/jibsa/internal/history"
)

// Server is the jibsa gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	history    *history.Store
}

// NewServer creates a new gateway server.
func NewServer(bus *events.Bus, handler ws.ChatHandler, hist *history.Store, host string, port int) *Server {
	hub := ws.NewHub(bus, handler, hist)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:     hub,
		bus:     bus,
		history: hist,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)
	r.Post("/api/history/reset", s.handleReset)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("jibsa gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReset clears the context store, the external reset trigger for the
// process-wide history.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.history.Reset()
	if s.bus != nil {
		s.bus.Publish(events.NewEvent(events.EventHistoryReset, events.SourceGateway, nil))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}
	recent := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		SessionID string             `json:"session_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}
	result := make([]eventJSON, len(recent))
	for i, e := range recent {
		result[i] = eventJSON{
			ID:        e.ID,
			SessionID: e.SessionID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
