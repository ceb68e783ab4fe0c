package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uilink/internal/config"
	"github.com/xkilldash9x/uilink/internal/controller"
	"github.com/xkilldash9x/uilink/internal/observability"
	"github.com/xkilldash9x/uilink/internal/protocol"
)

const serverShutdownTimeout = 5 * time.Second

// newControllerCmd creates the `controller` command.
func newControllerCmd() *cobra.Command {
	controllerCmd := &cobra.Command{
		Use:   "controller",
		Short: "Run a development controller that agents can connect to",
		Long: `Controller listens for agent connections, logs everything they send and
reads operator commands from stdin. Type help at the prompt for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Controller.ListenAddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Controller.ListenAddr, err)
			}

			var in io.Reader
			if console, _ := cmd.Flags().GetBool("console"); console {
				in = cmd.InOrStdin()
			}
			dump, _ := cmd.Flags().GetBool("dump")
			return runController(cmd.Context(), cfg, ln, in, cmd.OutOrStdout(), dump)
		},
	}

	controllerCmd.Flags().String("listen", "", "listen address (overrides controller.listen_addr)")
	bindFlag(controllerCmd.Flags(), "listen", "controller.listen_addr")
	controllerCmd.Flags().Bool("console", true, "read operator commands from stdin")
	controllerCmd.Flags().Bool("dump", false, "print every inbound message as JSON")
	return controllerCmd
}

// syncWriter serializes writes from the console and the client goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runController serves the hub on ln until ctx is done or the operator exits.
func runController(ctx context.Context, cfg *config.Config, ln net.Listener, in io.Reader, out io.Writer, dump bool) error {
	logger := observability.GetLogger()
	out = &syncWriter{w: out}

	var opts []controller.Option
	if dump {
		opts = append(opts, controller.WithObserver(func(clientID string, env protocol.Envelope) {
			fmt.Fprintf(out, "%s %s\n", clientID, env.Raw)
		}))
	}
	hub := controller.NewHub(cfg.Controller, cfg.Transport, logger, opts...)

	mux := http.NewServeMux()
	mux.Handle(cfg.Controller.Path, hub)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("Controller listening.", zap.String("addr", ln.Addr().String()), zap.String("path", cfg.Controller.Path))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("controller server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if in != nil {
		g.Go(func() error {
			fmt.Fprintln(out, controller.Usage)
			return runConsole(gctx, in, out, "controller> ", func(_ context.Context, line string) error {
				msg, err := hub.Execute(line)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, msg)
				return nil
			})
		})
	}

	err := g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}
