package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/internal/config"
)

// WebSocketDialer dials controllers with gorilla/websocket.
type WebSocketDialer struct {
	cfg    config.TransportConfig
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewWebSocketDialer creates a dialer from the transport configuration.
func NewWebSocketDialer(cfg config.TransportConfig, logger *zap.Logger) *WebSocketDialer {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &WebSocketDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: logger.Named("transport"),
	}
}

// Dial validates rawURL and starts connecting in the background.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string, h Handlers) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid URL %q: %w", rawURL, err)
	}
	if s := strings.ToLower(u.Scheme); s != "ws" && s != "wss" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	dialCtx, cancel := context.WithCancel(ctx)
	c := &wsConn{
		url:        u.String(),
		cfg:        d.cfg,
		handlers:   h,
		logger:     d.logger.With(zap.String("url", u.Redacted())),
		send:       make(chan []byte, d.cfg.SendBuffer),
		quit:       make(chan struct{}),
		cancelDial: cancel,
	}
	c.state.Store(int32(Connecting))

	go c.run(dialCtx, d.dialer)
	return c, nil
}

// wsConn is one WebSocket channel. run owns the connection lifecycle;
// readPump and writePump follow the hub client pattern.
type wsConn struct {
	url      string
	cfg      config.TransportConfig
	handlers Handlers
	logger   *zap.Logger

	state atomic.Int32
	send  chan []byte
	// quit is closed by Close to stop the write pump.
	quit       chan struct{}
	closeOnce  sync.Once
	cancelDial context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) ReadyState() ReadyState {
	return ReadyState(c.state.Load())
}

func (c *wsConn) Send(payload []byte) error {
	if c.ReadyState() != Open {
		return ErrNotOpen
	}
	select {
	case <-c.quit:
		return ErrNotOpen
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.ReadyState() != Closed {
			c.state.Store(int32(Closing))
		}
		c.mu.Unlock()
		c.cancelDial()
		close(c.quit)
	})
	return nil
}

func (c *wsConn) closing() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer) {
	defer c.cancelDial()

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.state.Store(int32(Closed))
		if !c.closing() {
			c.logger.Debug("Dial failed.", zap.Error(err))
			c.handlers.error(fmt.Errorf("transport: dial: %w", err))
		}
		c.handlers.close()
		return
	}

	c.mu.Lock()
	if c.closing() {
		c.mu.Unlock()
		conn.Close()
		c.state.Store(int32(Closed))
		c.handlers.close()
		return
	}
	c.conn = conn
	c.state.Store(int32(Open))
	c.mu.Unlock()

	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(conn, readDone)
	}()

	c.handlers.open()
	err = c.readPump(conn)

	close(readDone)
	conn.Close()
	<-writeDone
	c.state.Store(int32(Closed))

	if err != nil && !c.closing() &&
		websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.handlers.error(err)
	}
	c.handlers.close()
}

// readPump delivers frames to OnMessage until the connection fails.
func (c *wsConn) readPump(conn *websocket.Conn) error {
	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		// Any traffic proves liveness, not only pongs.
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.handlers.message(message)
	}
}

// writePump writes queued frames one per message and keeps the connection
// alive with pings. It is the only writer on conn.
func (c *wsConn) writePump(conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Write failed; closing.", zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-c.quit:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			conn.Close()
			return
		case <-readDone:
			return
		}
	}
}
