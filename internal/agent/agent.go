// Package agent ties the page-side services to the controller channel.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/capture"
	"github.com/xkilldash9x/uilink/internal/classifier"
	"github.com/xkilldash9x/uilink/internal/config"
	"github.com/xkilldash9x/uilink/internal/protocol"
	"github.com/xkilldash9x/uilink/internal/scanner"
	"github.com/xkilldash9x/uilink/internal/theme"
	"github.com/xkilldash9x/uilink/internal/transport"
)

// Agent is the handle returned to whoever embeds the agent. It exposes the
// debug surface (Ping, Scan, Status) and nothing that mutates the channel.
type Agent struct {
	sessionID string
	cfg       config.AgentConfig
	doc       schemas.Document
	manager   *Manager
	scanner   *scanner.Scanner
	theme     *theme.Applicator
	capture   *capture.Capturer
	now       func() time.Time
	logger    *zap.Logger
}

// Deps are the collaborators an Agent is built from. Renderer may be nil.
// Classifier replaces the default role rules when set.
type Deps struct {
	Document   schemas.Document
	Renderer   schemas.Renderer
	Classifier *classifier.Classifier
	Dialer     transport.Dialer
	Scheduler  Scheduler
	Now        func() time.Time
	Logger     *zap.Logger
}

// New wires an Agent. Call Run to start the channel.
func New(cfg config.AgentConfig, deps Deps) (*Agent, error) {
	if deps.Document == nil {
		return nil, errors.New("agent: a document is required")
	}
	if deps.Dialer == nil {
		return nil, errors.New("agent: a dialer is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	sessionID := uuid.New().String()
	logger := deps.Logger.Named("agent").With(zap.String("session_id", sessionID))

	scanOpts := []scanner.Option{scanner.WithTextLimit(cfg.TextLimit)}
	if deps.Classifier != nil {
		scanOpts = append(scanOpts, scanner.WithClassifier(deps.Classifier))
	}

	a := &Agent{
		sessionID: sessionID,
		cfg:       cfg,
		doc:       deps.Document,
		scanner:   scanner.New(deps.Document, logger, scanOpts...),
		theme:     theme.New(deps.Document, logger),
		capture:   capture.New(deps.Renderer, logger),
		now:       deps.Now,
		logger:    logger,
	}
	a.manager = NewManager(ManagerConfig{
		URL:         cfg.ControllerURL,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Dialer:      deps.Dialer,
		Scheduler:   deps.Scheduler,
		Greeting:    a.greeting,
		Logger:      logger,
	})
	a.manager.Handle(schemas.MsgPing, a.handlePing)
	a.manager.Handle(schemas.MsgGetUIMap, a.handleGetUIMap)
	a.manager.Handle(schemas.MsgGetScreenshot, a.handleGetScreenshot)
	a.manager.Handle(schemas.MsgApplyTheme, a.handleApplyTheme)
	return a, nil
}

// Bootstrap builds an Agent and starts it in the background. Construction
// errors and panics are logged as non-critical and yield nil; the host
// carries on without an agent.
func Bootstrap(ctx context.Context, cfg config.AgentConfig, deps Deps) (a *Agent) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Agent initialization failed (non-critical).", zap.Any("panic", r))
			a = nil
		}
	}()

	a, err := New(cfg, deps)
	if err != nil {
		logger.Warn("Agent initialization failed (non-critical).", zap.Error(err))
		return nil
	}
	go a.Run(ctx)
	return a
}

// Done is closed once Run has returned.
func (a *Agent) Done() <-chan struct{} {
	return a.manager.Done()
}

// Run drives the channel until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	a.logger.Info("Agent starting.",
		zap.String("controller", a.cfg.ControllerURL),
		zap.Bool("screenshots", a.capture.Available()))
	a.manager.Run(ctx)
}

// SessionID identifies this agent instance in greetings and logs.
func (a *Agent) SessionID() string {
	return a.sessionID
}

// Status is the debug view of the connection.
type Status struct {
	Connected    bool   `json:"connected"`
	Attempts     int    `json:"attempts"`
	State        string `json:"state"`
	ChannelState string `json:"channelState"`
	Screenshots  bool   `json:"screenshots"`
}

// Status reports the connection flag, reconnect attempts and raw channel state.
func (a *Agent) Status() Status {
	s := a.manager.Snapshot()
	return Status{
		Connected:    s.State == Open,
		Attempts:     s.Attempts,
		State:        s.State.String(),
		ChannelState: s.ChannelState,
		Screenshots:  a.capture.Available(),
	}
}

// Ping sends a ping to the controller and reports whether it was sent.
func (a *Agent) Ping() bool {
	return a.manager.Send(schemas.Ping{Type: schemas.MsgPing, Timestamp: a.timestamp()})
}

// Scan runs a scan locally without sending anything.
func (a *Agent) Scan(ctx context.Context) ([]schemas.ElementRecord, error) {
	return a.scanner.Scan(ctx)
}

func (a *Agent) timestamp() int64 {
	return a.now().UnixMilli()
}

func (a *Agent) greeting() interface{} {
	h := schemas.Hello{
		Type:      schemas.MsgHello,
		Source:    a.cfg.Source,
		SessionID: a.sessionID,
		Timestamp: a.timestamp(),
	}
	if a.cfg.LegacyGreeting {
		h.WalletType = a.cfg.Source
	}
	return h
}

func (a *Agent) handlePing(context.Context, protocol.Envelope) (interface{}, error) {
	return schemas.Pong{Type: schemas.MsgPong, Timestamp: a.timestamp()}, nil
}

// handleGetUIMap always answers; a failed scan yields an empty element list.
func (a *Agent) handleGetUIMap(ctx context.Context, _ protocol.Envelope) (interface{}, error) {
	m, err := a.scanner.Map(ctx, a.timestamp())
	if err != nil {
		m = schemas.UIMap{
			Elements: []schemas.ElementRecord{},
			Meta: schemas.UIMapMeta{
				URL:       a.doc.URL(),
				Timestamp: a.timestamp(),
				Viewport:  a.doc.Viewport(),
			},
		}
		err = fmt.Errorf("scan: %w", err)
	}
	return schemas.UIMapReply{Type: schemas.MsgUIMap, Data: m}, err
}

func (a *Agent) handleGetScreenshot(ctx context.Context, env protocol.Envelope) (interface{}, error) {
	var req schemas.GetScreenshot
	if err := env.Into(&req); err != nil {
		a.logger.Warn("Malformed screenshot request; using the default screen.", zap.Error(err))
		req.Screen = schemas.DefaultScreen
	}
	return a.capture.Capture(ctx, req.Screen), nil
}

func (a *Agent) handleApplyTheme(ctx context.Context, env protocol.Envelope) (interface{}, error) {
	var req schemas.ApplyTheme
	if err := env.Into(&req); err != nil {
		return schemas.ApplyAck{
			Type:        schemas.MsgApplyAck,
			ApplyResult: schemas.ApplyResult{Success: false, Error: err.Error()},
		}, nil
	}
	return schemas.ApplyAck{Type: schemas.MsgApplyAck, ApplyResult: a.theme.Apply(ctx, req.Patch())}, nil
}
