package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/yoonhw/jibsa/internal/events"
	"github.com/yoonhw/jibsa/internal/orchestrate"
)

// ChatHandler processes one utterance into one aggregated response.
type ChatHandler interface {
	Handle(ctx context.Context, query, actorID, sessionID string) orchestrate.Response
}

// Resetter clears the context store.
type Resetter interface {
	Reset()
}

// Client represents a connected WebSocket client.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	sessionID string
}

// Hub manages WebSocket clients, dispatches chat requests to the
// orchestrator, and bridges bus events to connected clients.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	handler     ChatHandler
	resetter    Resetter
	unsubscribe func()
}

// NewHub creates a hub. bus may be nil to disable event bridging.
func NewHub(bus *events.Bus, handler ChatHandler, resetter Resetter) *Hub {
	h := &Hub{
		clients:  make(map[*Client]struct{}),
		bus:      bus,
		handler:  handler,
		resetter: resetter,
	}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(func(e events.Event) {
			frame, err := NewEventFrame(string(e.Type), e.SessionID, e)
			if err != nil {
				slog.Error("marshal event frame", "error", err)
				return
			}
			data, err := MarshalFrame(frame)
			if err != nil {
				slog.Error("marshal frame", "error", err)
				return
			}
			h.broadcast(data)
		})
	}
	return h
}

// Close unsubscribes from the bus and disconnects every client.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "session_id", c.sessionID, "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "session_id", c.sessionID, "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for dev
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       h,
		sessionID: "sess_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
	}
	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}
		if frame.Type != FrameTypeRequest {
			slog.Debug("ws unexpected frame type", "type", frame.Type)
			continue
		}
		c.handleRequest(ctx, frame)
	}
}

// handleRequest dispatches one request frame. Chat requests run on their
// own goroutine so one slow orchestration does not block the read loop.
func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	switch frame.Method {
	case MethodChat:
		var params ChatParams
		if err := json.Unmarshal(frame.Params, &params); err != nil || params.Text == "" {
			c.sendError(ctx, frame.ID, "invalid params: text is required")
			return
		}
		go func() {
			resp := c.hub.handler.Handle(ctx, params.Text, params.ActorID, c.sessionID)
			c.sendOK(ctx, frame.ID, resp)
		}()

	case MethodReset:
		c.hub.resetter.Reset()
		if c.hub.bus != nil {
			e := events.NewEvent(events.EventHistoryReset, events.SourceGateway, nil)
			e.SessionID = c.sessionID
			c.hub.bus.Publish(e)
		}
		c.sendOK(ctx, frame.ID, map[string]string{"status": "reset"})

	default:
		c.sendError(ctx, frame.ID, "unknown method: "+frame.Method)
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) sendOK(ctx context.Context, id string, payload any) {
	f, err := NewResponseFrame(id, true, payload, "")
	if err != nil {
		return
	}
	c.enqueue(f)
}

func (c *Client) sendError(ctx context.Context, id, msg string) {
	f, err := NewResponseFrame(id, false, nil, msg)
	if err != nil {
		return
	}
	c.enqueue(f)
}

func (c *Client) enqueue(f Frame) {
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
