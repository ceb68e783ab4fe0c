package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xkilldash9x/uilink/internal/transport"
)

const waitFor = 2 * time.Second

// fakeTransport records sends and lets the test fire handler events.
type fakeTransport struct {
	h transport.Handlers

	mu     sync.Mutex
	state  transport.ReadyState
	sent   chan []byte
	closed bool
}

func (f *fakeTransport) Send(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.Open {
		return transport.ErrNotOpen
	}
	f.sent <- p
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.state = transport.Closed
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) ReadyState() transport.ReadyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) open() {
	f.mu.Lock()
	f.state = transport.Open
	f.mu.Unlock()
	f.h.OnOpen()
}

func (f *fakeTransport) fail() {
	f.mu.Lock()
	f.state = transport.Closed
	f.mu.Unlock()
	f.h.OnError(context.DeadlineExceeded)
	f.h.OnClose()
}

func (f *fakeTransport) receive(raw string) {
	f.h.OnMessage([]byte(raw))
}

// fakeDialer hands out fakeTransports, or fails when err is set.
type fakeDialer struct {
	dials chan *fakeTransport
	mu    sync.Mutex
	err   error
	calls int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dials: make(chan *fakeTransport, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string, h transport.Handlers) (transport.Transport, error) {
	d.mu.Lock()
	d.calls++
	err := d.err
	d.mu.Unlock()
	if err != nil {
		d.dials <- nil
		return nil, err
	}
	ft := &fakeTransport{h: h, state: transport.Connecting, sent: make(chan []byte, 16)}
	d.dials <- ft
	return ft, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case ft := <-d.dials:
		return ft
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func (d *fakeDialer) expectNoDial(t *testing.T) {
	t.Helper()
	select {
	case <-d.dials:
		t.Fatal("unexpected dial")
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeScheduler captures scheduled calls instead of waiting.
type fakeScheduler struct {
	scheduled chan scheduledCall
}

type scheduledCall struct {
	delay time.Duration
	timer *fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(chan scheduledCall, 16)}
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	ft := &fakeTimer{f: f}
	s.scheduled <- scheduledCall{delay: d, timer: ft}
	return ft
}

func (s *fakeScheduler) next(t *testing.T) scheduledCall {
	t.Helper()
	select {
	case c := <-s.scheduled:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a scheduled reconnect")
		return scheduledCall{}
	}
}

func (s *fakeScheduler) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-s.scheduled:
		t.Fatalf("unexpected reconnect scheduled after %v", c.delay)
	case <-time.After(50 * time.Millisecond):
	}
}

func nextSent(t *testing.T, ft *fakeTransport) []byte {
	t.Helper()
	select {
	case p := <-ft.sent:
		return p
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for an outbound message")
		return nil
	}
}

func expectNothingSent(t *testing.T, ft *fakeTransport) {
	t.Helper()
	select {
	case p := <-ft.sent:
		t.Fatalf("unexpected outbound message %s", p)
	case <-time.After(50 * time.Millisecond):
	}
}
