package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/protocol"
	"github.com/xkilldash9x/uilink/internal/transport"
)

// State is the Connection Manager's view of the channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// HandlerFunc handles one inbound message type. A non-nil reply is sent
// back over the channel.
type HandlerFunc func(ctx context.Context, env protocol.Envelope) (reply interface{}, err error)

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	URL         string
	MaxAttempts int
	BaseDelay   time.Duration
	Dialer      transport.Dialer
	// Scheduler defaults to WallClock.
	Scheduler Scheduler
	// Greeting builds the message sent right after every open.
	Greeting func() interface{}
	Logger   *zap.Logger
}

// Manager owns the channel: it connects, sends, dispatches inbound
// messages and reconnects with bounded exponential backoff. All state
// transitions happen on the goroutine running Run; other goroutines only
// read snapshots and call Send.
type Manager struct {
	cfg      ManagerConfig
	logger   *zap.Logger
	handlers map[schemas.MessageType]HandlerFunc

	events chan func()
	done   chan struct{}

	// Loop-only state.
	ctx        context.Context
	generation uint64
	timer      Timer
	stopping   bool

	// mu guards the fields read from other goroutines.
	mu       sync.Mutex
	state    State
	attempts int
	tr       transport.Transport
}

// NewManager creates a Manager. It does nothing until Run is called.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Scheduler == nil {
		cfg.Scheduler = WallClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger.Named("connection"),
		handlers: make(map[schemas.MessageType]HandlerFunc),
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
		state:    Disconnected,
	}
}

// Handle registers h for inbound messages of type t. Call before Run.
func (m *Manager) Handle(t schemas.MessageType, h HandlerFunc) {
	m.handlers[t] = h
}

// Run connects and processes channel events until ctx is cancelled. On
// return the channel has been closed deliberately and no reconnect is
// pending.
func (m *Manager) Run(ctx context.Context) {
	m.ctx = ctx
	defer close(m.done)

	m.connect()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case fn := <-m.events:
			fn()
		}
	}
}

// post queues fn for the event loop. It drops fn once the loop has exited.
func (m *Manager) post(fn func()) {
	select {
	case m.events <- fn:
	case <-m.done:
	}
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Snapshot is a consistent read of the connection state.
type Snapshot struct {
	State        State
	Attempts     int
	ChannelState string
}

// Snapshot returns the current state, counter and raw channel state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{State: m.state, Attempts: m.attempts, ChannelState: "NONE"}
	if m.tr != nil {
		s.ChannelState = m.tr.ReadyState().String()
	}
	return s
}

// Send encodes msg and writes it iff the channel is open. It reports whether
// the write was attempted and accepted. Safe for concurrent use.
func (m *Manager) Send(msg interface{}) bool {
	m.mu.Lock()
	tr, state := m.tr, m.state
	m.mu.Unlock()

	if state != Open || tr == nil {
		m.logger.Debug("Dropping message; channel not open.", zap.Stringer("state", state))
		return false
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Error("Failed to encode outbound message.", zap.Error(err))
		return false
	}
	if err := tr.Send(payload); err != nil {
		m.logger.Warn("Send failed.", zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// connect opens a channel unless one is open or pending.
func (m *Manager) connect() {
	if m.stopping {
		return
	}
	m.mu.Lock()
	if m.tr != nil {
		m.mu.Unlock()
		return
	}
	m.state = Connecting
	m.mu.Unlock()

	m.generation++
	gen := m.generation
	m.logger.Info("Connecting to controller.", zap.String("url", m.cfg.URL), zap.Uint64("generation", gen))

	tr, err := m.cfg.Dialer.Dial(m.ctx, m.cfg.URL, m.handlersFor(gen))
	if err != nil {
		m.logger.Warn("Could not start connection.", zap.Error(err))
		m.setState(Disconnected)
		m.scheduleReconnect()
		return
	}
	m.mu.Lock()
	m.tr = tr
	m.mu.Unlock()
}

// handlersFor binds transport events to the loop. Events from a transport
// that has since been replaced are ignored.
func (m *Manager) handlersFor(gen uint64) transport.Handlers {
	guard := func(fn func()) {
		m.post(func() {
			if gen == m.generation {
				fn()
			}
		})
	}
	return transport.Handlers{
		OnOpen:    func() { guard(m.onOpen) },
		OnMessage: func(p []byte) { guard(func() { m.onMessage(p) }) },
		OnError:   func(err error) { guard(func() { m.onError(err) }) },
		OnClose:   func() { guard(m.onClose) },
	}
}

func (m *Manager) onOpen() {
	m.mu.Lock()
	m.attempts = 0
	m.state = Open
	m.mu.Unlock()

	m.logger.Info("Channel open.")
	if m.cfg.Greeting != nil {
		m.Send(m.cfg.Greeting())
	}
}

func (m *Manager) onMessage(raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		m.logger.Warn("Discarding inbound message.", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	h, ok := m.handlers[env.Type]
	if !ok {
		m.logger.Info("Ignoring message of unknown type.", zap.Stringer("type", env.Type))
		return
	}

	reply, err := m.dispatch(h, env)
	if err != nil {
		m.logger.Warn("Handler failed.", zap.Stringer("type", env.Type), zap.Error(err))
	}
	if reply != nil {
		m.Send(reply)
	}
}

var errHandlerPanic = errors.New("handler panicked")

func (m *Manager) dispatch(h HandlerFunc, env protocol.Envelope) (reply interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()
	return h(m.ctx, env)
}

// onError only logs. OnClose always follows and drives the reconnect.
func (m *Manager) onError(err error) {
	m.logger.Warn("Channel error.", zap.Error(err))
}

func (m *Manager) onClose() {
	m.mu.Lock()
	m.tr = nil
	m.state = Disconnected
	m.mu.Unlock()

	if m.stopping {
		return
	}
	m.logger.Info("Channel closed.")
	m.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer unless the attempt
// budget is spent.
func (m *Manager) scheduleReconnect() {
	if m.stopping || m.timer != nil {
		return
	}

	m.mu.Lock()
	if m.attempts >= m.cfg.MaxAttempts {
		m.state = Disconnected
		attempts := m.attempts
		m.mu.Unlock()
		m.logger.Error("Reconnect attempts exhausted; giving up.", zap.Int("attempts", attempts))
		return
	}
	m.attempts++
	attempt := m.attempts
	m.state = Reconnecting
	m.mu.Unlock()

	delay := BackoffDelay(m.cfg.BaseDelay, attempt)
	m.logger.Info("Reconnect scheduled.",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", m.cfg.MaxAttempts),
		zap.Duration("delay", delay))

	m.timer = m.cfg.Scheduler.AfterFunc(delay, func() {
		m.post(func() {
			m.timer = nil
			m.connect()
		})
	})
}

// shutdown closes the channel deliberately. No reconnect follows.
func (m *Manager) shutdown() {
	m.stopping = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	m.mu.Lock()
	tr := m.tr
	m.tr = nil
	m.state = Disconnected
	m.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	m.logger.Info("Connection manager stopped.")
}
