package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/browser/htmldoc"
	"github.com/xkilldash9x/uilink/internal/config"
	"github.com/xkilldash9x/uilink/internal/observability"
	"github.com/xkilldash9x/uilink/internal/scanner"
	"github.com/xkilldash9x/uilink/internal/theme"
)

// scanOptions are the flags of the scan command.
type scanOptions struct {
	themeFile  string
	renderFile string
	output     string
	pretty     bool
}

// newScanCmd creates the `scan` command.
func newScanCmd() *cobra.Command {
	var opts scanOptions
	scanCmd := &cobra.Command{
		Use:   "scan <file|url>",
		Short: "Print the UI map of a static HTML page as JSON",
		Long: `Scan parses an HTML file or fetches a URL without a browser, estimates
element geometry from the page's stylesheets and prints the resulting UI map.
With --theme the patch is applied first, and --render writes the themed HTML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, args[0], opts, cmd.OutOrStdout())
		},
	}

	scanCmd.Flags().StringVar(&opts.themeFile, "theme", "", "JSON theme patch to apply before scanning")
	scanCmd.Flags().StringVar(&opts.renderFile, "render", "", "write the (themed) document to this file")
	scanCmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the UI map here instead of stdout")
	scanCmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	return scanCmd
}

func runScan(ctx context.Context, cfg *config.Config, source string, opts scanOptions, stdout io.Writer) error {
	logger := observability.GetLogger().Named("scan")

	doc, err := htmldoc.NewLoader(cfg.Browser, logger).Load(ctx, source)
	if err != nil {
		return err
	}

	if opts.themeFile != "" {
		patch, err := readThemePatch(opts.themeFile)
		if err != nil {
			return err
		}
		if res := theme.New(doc, logger).Apply(ctx, patch); !res.Success {
			return fmt.Errorf("applying theme: %s", res.Error)
		}
	}

	uiMap, err := scanner.New(doc, logger, scanner.WithTextLimit(cfg.Agent.TextLimit)).Map(ctx, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	logger.Info("Scan complete.",
		zap.String("url", uiMap.Meta.URL),
		zap.String("title", doc.Title()),
		zap.Int("elements", len(uiMap.Elements)))

	if opts.renderFile != "" {
		if err := writeFile(opts.renderFile, doc.Render); err != nil {
			return fmt.Errorf("rendering document: %w", err)
		}
	}

	if opts.output == "" {
		return printJSON(stdout, uiMap, opts.pretty)
	}
	return writeFile(opts.output, func(w io.Writer) error { return printJSON(w, uiMap, opts.pretty) })
}

// readThemePatch loads a patch file. Both a bare patch and a complete
// applyTheme message are accepted.
func readThemePatch(path string) (schemas.ThemePatch, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return schemas.ThemePatch{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return schemas.ThemePatch{}, fmt.Errorf("reading theme: %w", err)
	}
	var msg schemas.ApplyTheme
	if err := json.Unmarshal(raw, &msg); err != nil {
		return schemas.ThemePatch{}, fmt.Errorf("parsing theme %s: %w", path, err)
	}
	patch := msg.Patch()
	if patch.IsEmpty() {
		return schemas.ThemePatch{}, errors.New("theme patch is empty")
	}
	return patch, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	path, err = homedir.Expand(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
