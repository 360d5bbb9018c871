package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chaos-ai/internal/contextutil"
	"chaos-ai/internal/service"
)

// Socket event names.
const (
	EventMessage  = "message"
	EventResponse = "ai-response"
	EventError    = "error"
)

// Messages carried by outbound error events. Relay failure detail is never sent.
const (
	ProcessingFailedMessage = "Failed to process message"
	InvalidPayloadMessage   = "Invalid message payload"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the data of an inbound message event.
type MessagePayload struct {
	Message *string `json:"message"`
}

// ResponsePayload is the data of an outbound ai-response event.
type ResponsePayload struct {
	Response string `json:"response"`
}

// ErrorPayload is the data of an outbound error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectionObserver is notified as sockets open and close.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

// SocketConfig configures a SocketHandler.
type SocketConfig struct {
	// AllowedOrigins gates the handshake. Empty or containing "*" allows any origin.
	AllowedOrigins []string
	// MaxMessageBytes bounds a single inbound frame. <= 0 means no limit.
	MaxMessageBytes int64
	// Observer may be nil.
	Observer ConnectionObserver
}

// SocketHandler upgrades requests to WebSocket connections and relays each
// inbound message event. Events on one connection are handled in order.
type SocketHandler struct {
	relay     service.RelayService
	upgrader  websocket.Upgrader
	readLimit int64
	observer  ConnectionObserver

	pongWait     time.Duration
	pingInterval time.Duration

	mu       sync.Mutex
	conns    map[*socketConn]struct{}
	shutdown bool
}

// NewSocketHandler creates a new SocketHandler.
func NewSocketHandler(relay service.RelayService, cfg SocketConfig) *SocketHandler {
	return &SocketHandler{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		readLimit:    cfg.MaxMessageBytes,
		observer:     cfg.Observer,
		pongWait:     pongWait,
		pingInterval: pingInterval,
		conns:        make(map[*socketConn]struct{}),
	}
}

// ServeHTTP performs the handshake and runs the connection until the client leaves.
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		contextutil.LoggerFromContext(r.Context()).WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.New().String()
	logger := contextutil.LoggerFromContext(r.Context()).With("conn_id", connID)
	ctx, cancel := context.WithCancel(contextutil.WithLogger(context.Background(), logger))
	defer cancel()

	if h.observer != nil {
		h.observer.ConnectionOpened()
		defer h.observer.ConnectionClosed()
	}

	c := &socketConn{
		ws:           ws,
		relay:        h.relay,
		logger:       logger,
		cancel:       cancel,
		pongWait:     h.pongWait,
		pingInterval: h.pingInterval,
	}
	if !h.track(c) {
		c.close(websocket.CloseGoingAway, shutdownReason)
		return
	}
	defer h.untrack(c)
	logger.InfoContext(ctx, "socket connected", "origin", r.Header.Get("Origin"))

	done := make(chan struct{})
	go c.pingLoop(done)

	c.readLoop(ctx, h.readLimit)
	close(done)
	_ = ws.Close()
	logger.InfoContext(ctx, "socket disconnected")
}

const shutdownReason = "server shutting down"

// Shutdown sends a going-away close frame to every open connection and
// cancels in-flight relays. Connections accepted afterwards are refused.
// It matches the signature of http.Server.RegisterOnShutdown.
func (h *SocketHandler) Shutdown() {
	h.mu.Lock()
	h.shutdown = true
	conns := make([]*socketConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close(websocket.CloseGoingAway, shutdownReason)
	}
}

func (h *SocketHandler) track(c *socketConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *SocketHandler) untrack(c *socketConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// socketConn is one open connection. Only readLoop writes data frames.
type socketConn struct {
	ws     *websocket.Conn
	relay  service.RelayService
	logger *slog.Logger
	cancel context.CancelFunc

	pongWait     time.Duration
	pingInterval time.Duration
}

func (c *socketConn) readLoop(ctx context.Context, readLimit int64) {
	if readLimit > 0 {
		c.ws.SetReadLimit(readLimit)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.WarnContext(ctx, "socket read failed", "error", err)
			}
			return
		}
		// Pongs are not read while a relay runs, so the deadline is
		// suspended for the duration of the frame and restarted after.
		_ = c.ws.SetReadDeadline(time.Time{})
		c.handleFrame(ctx, data)
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

// close sends a close frame, cancels the connection context and closes the
// socket, which ends readLoop.
func (c *socketConn) close(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.cancel()
	_ = c.ws.Close()
}

func (c *socketConn) handleFrame(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.WarnContext(ctx, "malformed socket frame", "error", err)
		c.emit(ctx, EventError, ErrorPayload{Message: InvalidPayloadMessage})
		return
	}

	switch env.Event {
	case EventMessage:
		c.handleMessage(ctx, env.Data)
	default:
		c.logger.DebugContext(ctx, "ignoring unknown socket event", "event", env.Event)
	}
}

func (c *socketConn) handleMessage(ctx context.Context, data json.RawMessage) {
	var payload MessagePayload
	if len(data) == 0 || json.Unmarshal(data, &payload) != nil || payload.Message == nil {
		c.logger.WarnContext(ctx, "invalid message payload")
		c.emit(ctx, EventError, ErrorPayload{Message: InvalidPayloadMessage})
		return
	}

	resp, err := c.relay.Relay(ctx, service.RelayRequest{Message: *payload.Message})
	if err != nil {
		c.logger.WarnContext(ctx, "relay failed for socket message", "error", err)
		c.emit(ctx, EventError, ErrorPayload{Message: ProcessingFailedMessage})
		return
	}

	c.emit(ctx, EventResponse, ResponsePayload{Response: resp.Response})
}

// emit writes one event frame. A failed write is logged; the read loop
// notices a dead connection on its next read.
func (c *socketConn) emit(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to encode socket payload", "event", event, "error", err)
		return
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		c.logger.WarnContext(ctx, "failed to write socket event", "event", event, "error", err)
	}
}

// pingLoop keeps the connection alive. WriteControl may run concurrently with readLoop's writes.
func (c *socketConn) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// originChecker builds the handshake origin policy. Requests without an
// Origin header come from non-browser clients and are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
