package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gridworld-editor/backend/internal/logging"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope of every WebSocket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type sessionEvent struct {
	event   string
	session models.EditSession
}

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *wsClient) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

// closeWith sends a close frame; the read loop of the client then ends.
func (c *wsClient) closeWith(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}

// WebSocketHub pushes session change events to the clients watching a session
type WebSocketHub struct {
	sessions SessionManager
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}

	events chan sessionEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWebSocketHub creates a hub and starts its broadcaster goroutine
func NewWebSocketHub(sessions SessionManager, maxMessageKB int, log *logging.Logger) *WebSocketHub {
	if log == nil {
		log = logging.Discard()
	}
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	hub := &WebSocketHub{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: maxMessageKB * 1024,
		},
		log:     log.With("WebSocket"),
		clients: make(map[string]map[*wsClient]struct{}),
		events:  make(chan sessionEvent, 256),
		done:    make(chan struct{}),
	}

	hub.wg.Add(1)
	go hub.run()
	return hub
}

// Notify queues a session event; it never blocks. Events are dropped when
// the queue is full or the hub is closed.
func (h *WebSocketHub) Notify(event string, s models.EditSession) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- sessionEvent{event: event, session: s}:
	default:
		h.log.Warnf("Event queue full, dropping %s for %s", event, s.ID)
	}
}

// ClientCount returns the number of clients watching a session
func (h *WebSocketHub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *WebSocketHub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *WebSocketHub) broadcast(ev sessionEvent) {
	msg := WSMessage{
		Type:      ev.event,
		ID:        ev.session.ID,
		Payload:   mustJSON(ev.session),
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients[ev.session.ID]))
	for c := range h.clients[ev.session.ID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Debugf("Dropping client of %s: %v", c.sessionID, err)
			h.unregister(c)
			continue
		}
		if ev.event == session.EventClosed {
			c.closeWith(websocket.CloseNormalClosure, "session closed")
			h.unregister(c)
		}
	}
}

func (h *WebSocketHub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *WebSocketHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		c.conn.Close()
	}
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
}

// HandleWebSocket upgrades the connection and subscribes it to one session
func (h *WebSocketHub) HandleWebSocket(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{conn: ws, sessionID: id}
	h.register(client)
	defer h.unregister(client)

	h.log.Debugf("Client connected to %s", id)
	err = client.send(WSMessage{
		Type:      MsgTypeConnected,
		ID:        id,
		Payload:   mustJSON(sess),
		Timestamp: time.Now().UnixMilli(),
	})

	for err == nil {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugf("Connection error on %s: %v", id, err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			if !h.sessions.TouchSession(id) {
				client.closeWith(websocket.CloseNormalClosure, "session closed")
				return nil
			}
			err = client.send(WSMessage{Type: MsgTypePong, ID: id, Timestamp: time.Now().UnixMilli()})
		default:
			err = client.send(WSMessage{
				Type:      MsgTypeError,
				Timestamp: time.Now().UnixMilli(),
				Payload: mustJSON(WSErrorResponse{
					Message: "Unknown message type: " + msg.Type,
					Code:    "INVALID_TYPE",
				}),
			})
		}
	}

	if err != nil {
		h.log.Debugf("Write to client of %s failed: %v", id, err)
	}
	h.log.Debugf("Client disconnected from %s", id)
	return nil
}

// Close disconnects every client and stops the broadcaster
func (h *WebSocketHub) Close() error {
	h.once.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for id, set := range h.clients {
			for c := range set {
				c.conn.Close()
			}
			delete(h.clients, id)
		}
		h.mu.Unlock()
	})
	return nil
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
