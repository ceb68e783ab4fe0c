package htmldoc

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/config"
)

// maxDocumentBytes caps how much of a page is read.
const maxDocumentBytes = 16 << 20

// Loader builds Documents from files or http(s) URLs.
type Loader struct {
	client   *http.Client
	viewport schemas.Viewport
	logger   *zap.Logger
}

// NewLoader creates a Loader using the browser viewport and navigation timeout.
func NewLoader(cfg config.BrowserConfig, logger *zap.Logger) *Loader {
	w, h := cfg.ViewportSize()
	return &Loader{
		client: &http.Client{
			Transport: &decodingTransport{next: http.DefaultTransport},
			Timeout:   cfg.NavigationTimeout,
		},
		viewport: schemas.Viewport{Width: w, Height: h},
		logger:   logger.Named("loader"),
	}
}

// Load reads source, which is an http(s) URL, a file:// URL or a path.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.fetch(ctx, u.String())
	}

	path := source
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	if path, err = homedir.Expand(path); err != nil {
		return nil, fmt.Errorf("expanding %q: %w", source, err)
	}
	if path, err = filepath.Abs(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	l.logger.Debug("Loading document from file.", zap.String("path", path))
	return Parse(io.LimitReader(f, maxDocumentBytes),
		WithURL("file://"+filepath.ToSlash(path)),
		WithViewport(l.viewport),
		WithLogger(l.logger))
}

func (l *Loader) fetch(ctx context.Context, target string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", target, resp.Status)
	}
	l.logger.Debug("Fetched document.",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return Parse(io.LimitReader(resp.Body, maxDocumentBytes),
		WithURL(resp.Request.URL.String()),
		WithViewport(l.viewport),
		WithLogger(l.logger))
}

// decodingTransport negotiates compression and decodes br and gzip bodies.
type decodingTransport struct {
	next http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

var errUnsupportedEncoding = errors.New("unsupported content encoding")

// decodeBody replaces resp.Body with a decoded stream. Layered encodings are
// undone last-applied first.
func decodeBody(resp *http.Response) error {
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}
	for i := len(encodings) - 1; i >= 0; i-- {
		var dec io.Reader
		switch enc := strings.ToLower(strings.TrimSpace(encodings[i])); enc {
		case "", "identity":
			continue
		case "br":
			dec = brotli.NewReader(resp.Body)
		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip body: %w", err)
			}
			dec = zr
		default:
			return fmt.Errorf("%w: %s", errUnsupportedEncoding, enc)
		}
		resp.Body = &decodedBody{Reader: dec, raw: resp.Body}
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decodedBody closes the wrapped body when the decoder is done.
type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *decodedBody) Close() error {
	if c, ok := b.Reader.(io.Closer); ok {
		return errors.Join(c.Close(), b.raw.Close())
	}
	return b.raw.Close()
}
