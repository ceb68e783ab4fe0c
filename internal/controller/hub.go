// Package controller is a development endpoint for agents. It accepts agent
// connections, logs what they report and broadcasts operator commands.
package controller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/config"
	"github.com/xkilldash9x/uilink/internal/protocol"
)

// ErrStopped is returned by Broadcast once Run has returned.
var ErrStopped = errors.New("controller: hub stopped")

// Observer receives every inbound message that passed rate limiting and decoding.
type Observer func(clientID string, env protocol.Envelope)

// Option configures a Hub.
type Option func(*Hub)

// WithObserver registers fn to see inbound messages. It is called from the
// client's read goroutine.
func WithObserver(fn Observer) Option {
	return func(h *Hub) { h.observer = fn }
}

// Client is one connected agent.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	limiter *rate.Limiter
	// Buffered channel of outbound messages. Closed by the hub only.
	send chan []byte
}

// Hub tracks connected agents.
type Hub struct {
	cfg      config.ControllerConfig
	tcfg     config.TransportConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	observer Observer

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	// stopped is closed when Run returns.
	stopped chan struct{}
	mu      sync.RWMutex
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(cfg config.ControllerConfig, tcfg config.TransportConfig, logger *zap.Logger, opts ...Option) *Hub {
	if tcfg.WriteWait <= 0 {
		tcfg.WriteWait = 10 * time.Second
	}
	if tcfg.PongWait <= 0 {
		tcfg.PongWait = 60 * time.Second
	}
	if tcfg.SendBuffer <= 0 {
		tcfg.SendBuffer = 64
	}
	h := &Hub{
		cfg:    cfg,
		tcfg:   tcfg,
		logger: logger.Named("controller"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Agents connect from whatever origin the host page has.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves register, unregister and broadcast requests until ctx is done.
// On return every client's send queue is closed, which closes its connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Controller hub started.")
	defer h.logger.Info("Controller hub stopped.")
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Agent connected.", zap.String("client_id", client.id))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("Agent disconnected.", zap.String("client_id", client.id))
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("Agent send queue full; dropping client.", zap.String("client_id", client.id))
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected agents.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes msg and queues it for every connected agent.
func (h *Hub) Broadcast(msg interface{}) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- b:
		return nil
	case <-h.stopped:
		return ErrStopped
	}
}

// Ping asks every agent for a pong.
func (h *Hub) Ping() error {
	return h.Broadcast(schemas.Ping{Type: schemas.MsgPing, Timestamp: time.Now().UnixMilli()})
}

// RequestUIMap asks every agent for a fresh scan.
func (h *Hub) RequestUIMap() error {
	return h.Broadcast(schemas.GetUIMap{Type: schemas.MsgGetUIMap})
}

// RequestScreenshot asks every agent to capture screen.
func (h *Hub) RequestScreenshot(screen string) error {
	return h.Broadcast(schemas.GetScreenshot{Type: schemas.MsgGetScreenshot, Screen: screen})
}

// ApplyTheme sends patch to every agent.
func (h *Hub) ApplyTheme(patch schemas.ThemePatch) error {
	return h.Broadcast(schemas.ApplyTheme{Type: schemas.MsgApplyTheme, ThemePatch: patch})
}

// ServeHTTP upgrades the request and attaches the agent to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}
	burst := h.cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	client := &Client{
		id:      uuid.New().String(),
		hub:     h,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(h.cfg.RateLimit), burst),
		send:    make(chan []byte, h.tcfg.SendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.stopped:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump decodes frames from the agent until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()
	if c.hub.tcfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.tcfg.MaxMessageSize)
	}
	pongWait := c.hub.tcfg.PongWait
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	logger := c.hub.logger.With(zap.String("client_id", c.id))
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Agent read error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			logger.Warn("Rate limit exceeded; dropping message.", zap.Int("bytes", len(message)))
			continue
		}
		env, err := protocol.Decode(message)
		if err != nil {
			logger.Warn("Ignoring undecodable message.", zap.Error(err))
			continue
		}
		logInbound(logger, env)
		if c.hub.observer != nil {
			c.hub.observer(c.id, env)
		}
	}
}

// writePump writes one frame per queued message and pings the agent.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.tcfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	writeWait := c.hub.tcfg.WriteWait
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// logInbound writes a one-line summary of an agent message.
func logInbound(logger *zap.Logger, env protocol.Envelope) {
	switch env.Type {
	case schemas.MsgHello:
		var m schemas.Hello
		if err := env.Into(&m); err != nil {
			logger.Warn("Malformed hello.", zap.Error(err))
			return
		}
		source := m.Source
		if source == "" {
			source = m.WalletType
		}
		logger.Info("Agent hello.", zap.String("source", source), zap.String("session_id", m.SessionID))
	case schemas.MsgPong:
		var m schemas.Pong
		if err := env.Into(&m); err != nil {
			logger.Warn("Malformed pong.", zap.Error(err))
			return
		}
		logger.Info("Pong.", zap.Int64("timestamp", m.Timestamp))
	case schemas.MsgUIMap:
		var m schemas.UIMapReply
		if err := env.Into(&m); err != nil {
			logger.Warn("Malformed uiMap.", zap.Error(err))
			return
		}
		logger.Info("UI map received.",
			zap.String("url", m.Data.Meta.URL),
			zap.Int("elements", len(m.Data.Elements)),
			zap.Int("viewport_width", m.Data.Meta.Viewport.Width),
			zap.Int("viewport_height", m.Data.Meta.Viewport.Height))
	case schemas.MsgScreenshot:
		var m schemas.ScreenshotReply
		if err := env.Into(&m); err != nil {
			logger.Warn("Malformed screenshot.", zap.Error(err))
			return
		}
		logger.Info("Screenshot received.", zap.String("screen", m.Screen), zap.Int("bytes", len(m.Data)))
	case schemas.MsgApplyAck:
		var m schemas.ApplyAck
		if err := env.Into(&m); err != nil {
			logger.Warn("Malformed applyAck.", zap.Error(err))
			return
		}
		if m.Success {
			logger.Info("Theme applied.")
		} else {
			logger.Warn("Theme failed.", zap.String("error", m.Error))
		}
	default:
		logger.Debug("Unhandled message type.", zap.Stringer("type", env.Type))
	}
}
