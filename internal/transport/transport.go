// Package transport provides the channel between the agent and its
// controller. The Connection Manager sees only the Transport interface and
// the four Handlers, so tests can substitute a fake.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrNotOpen is returned by Send when the channel is not open.
	ErrNotOpen = errors.New("transport: channel not open")
	// ErrUnsupportedScheme is returned by Dial for non-WebSocket URLs.
	ErrUnsupportedScheme = errors.New("transport: unsupported URL scheme")
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// ReadyState mirrors the lifecycle of a WebSocket.
type ReadyState int32

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Handlers are the four event callbacks registered at dial time. They are
// called from transport goroutines. For a Transport returned by Dial,
// OnClose is called exactly once, and OnError, if called, always precedes it.
type Handlers struct {
	OnOpen    func()
	OnMessage func(payload []byte)
	OnError   func(err error)
	OnClose   func()
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) message(p []byte) {
	if h.OnMessage != nil {
		h.OnMessage(p)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handlers) close() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

// Transport is one channel instance.
type Transport interface {
	// Send queues one message frame. It fails with ErrNotOpen unless the
	// channel is open.
	Send(payload []byte) error
	// Close starts a deliberate shutdown. OnClose still fires.
	Close() error
	ReadyState() ReadyState
}

// Dialer opens channels. Dial returns immediately with a Transport in the
// Connecting state, or an error if the connection cannot even be attempted.
type Dialer interface {
	Dial(ctx context.Context, rawURL string, h Handlers) (Transport, error)
}
