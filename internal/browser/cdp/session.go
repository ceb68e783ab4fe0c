// Package cdp backs the agent with a real Chrome tab driven over the
// DevTools protocol.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/config"
)

// shutdownTimeout bounds how long Close waits for Chrome to exit.
const shutdownTimeout = 10 * time.Second

// Session owns one browser process and one tab.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         config.BrowserConfig
	viewport    schemas.Viewport
	logger      *zap.Logger
}

// flag is one Chrome command-line switch.
type flag struct {
	name  string
	value interface{}
}

// parseArgs turns "name" and "name=value" entries into switches. Leading
// dashes are optional.
func parseArgs(args []string) []flag {
	flags := make([]flag, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found {
			flags = append(flags, flag{name: key, value: value})
		} else {
			flags = append(flags, flag{name: arg, value: true})
		}
	}
	return flags
}

// ExecOptions builds the allocator options for cfg.
func ExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	w, h := cfg.ViewportSize()
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(w, h),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	for _, f := range parseArgs(cfg.Args) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}

// Launch starts Chrome and opens a tab sized to the configured viewport.
func Launch(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	logger = logger.Named("cdp")
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, ExecOptions(cfg)...)

	sugar := logger.Sugar()
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf))

	w, h := cfg.ViewportSize()
	if err := chromedp.Run(ctx, chromedp.EmulateViewport(int64(w), int64(h))); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	logger.Info("Browser started.", zap.Bool("headless", cfg.Headless), zap.Int("width", w), zap.Int("height", h))
	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg,
		viewport:    schemas.Viewport{Width: w, Height: h},
		logger:      logger,
	}, nil
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	start := time.Now()
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	s.logger.Info("Navigated.", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// run executes actions on the tab, bounded by both ctx and the session.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

// Document returns the tab as a schemas.Document.
func (s *Session) Document() *Document {
	return &Document{s: s}
}

// Renderer returns a screenshot source for the tab.
func (s *Session) Renderer() *Renderer {
	return &Renderer{s: s, quality: s.cfg.ScreenshotQuality}
}

// Close shuts the tab and the browser down.
func (s *Session) Close() error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	var err error
	select {
	case err = <-done:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-time.After(shutdownTimeout):
		s.logger.Warn("Browser shutdown timed out.", zap.Duration("timeout", shutdownTimeout))
	}
	s.cancel()
	s.allocCancel()
	s.logger.Debug("Browser closed.")
	return err
}
