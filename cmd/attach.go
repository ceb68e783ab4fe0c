package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/agent"
	"github.com/xkilldash9x/uilink/internal/browser/cdp"
	"github.com/xkilldash9x/uilink/internal/config"
	"github.com/xkilldash9x/uilink/internal/observability"
	"github.com/xkilldash9x/uilink/internal/transport"
)

// newAttachCmd creates the `attach` command.
func newAttachCmd() *cobra.Command {
	attachCmd := &cobra.Command{
		Use:   "attach <url>",
		Short: "Open a page in Chrome and run the agent against it",
		Long: `Attach launches Chrome, navigates to the given URL and runs the agent
against the live page until interrupted. The agent connects to the configured
controller, answers its requests and applies its themes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := observability.GetLogger()

			session, err := cdp.Launch(ctx, cfg.Browser, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
				}
			}()
			if err := session.Navigate(ctx, args[0]); err != nil {
				return err
			}

			// A nil interface, not a nil *cdp.Renderer, marks the renderer as absent.
			var renderer schemas.Renderer
			if !cfg.Browser.DisableScreenshot {
				renderer = session.Renderer()
			}
			deps := agent.Deps{
				Document: session.Document(),
				Renderer: renderer,
				Dialer:   transport.NewWebSocketDialer(cfg.Transport, logger),
				Logger:   logger,
			}

			var in io.Reader
			if console, _ := cmd.Flags().GetBool("console"); console {
				in = cmd.InOrStdin()
			}
			return runAgent(ctx, cfg, deps, in, cmd.OutOrStdout())
		},
	}

	attachCmd.Flags().String("controller", "", "controller WebSocket URL (overrides agent.controller_url)")
	bindFlag(attachCmd.Flags(), "controller", "agent.controller_url")
	attachCmd.Flags().Bool("headless", true, "run Chrome without a window")
	bindFlag(attachCmd.Flags(), "headless", "browser.headless")
	attachCmd.Flags().Bool("no-screenshot", false, "answer screenshot requests with a placeholder")
	bindFlag(attachCmd.Flags(), "no-screenshot", "browser.disable_screenshot")
	attachCmd.Flags().Bool("console", true, "read debug commands from stdin")
	return attachCmd
}

// runAgent starts the agent and, when in is non-nil, a debug console over it.
// It returns when ctx is done or the operator exits the console.
func runAgent(ctx context.Context, cfg *config.Config, deps agent.Deps, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := agent.Bootstrap(ctx, cfg.Agent, deps)
	if a == nil {
		return errors.New("agent failed to start")
	}
	fmt.Fprintf(out, "agent %s attached; controller %s\n", a.SessionID(), cfg.Agent.ControllerURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-a.Done()
		return nil
	})
	if in != nil {
		g.Go(func() error {
			return runConsole(gctx, in, out, "uilink> ", agentConsole(a, out))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		cancel()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}
