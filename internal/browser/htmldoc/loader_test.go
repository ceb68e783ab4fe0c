package htmldoc

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/config"
)

const tinyPage = `<html><head><title>Tiny</title></head><body><button id="go">Go</button></body></html>`

func encode(t *testing.T, encoding string, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "br":
		w := brotli.NewWriter(&buf)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.WriteString(body)
	}
	return buf.Bytes()
}

func newTestLoader(t *testing.T) *Loader {
	cfg := config.NewDefaultConfig().Browser
	cfg.Viewport = map[string]int{"width": 1024, "height": 768}
	cfg.NavigationTimeout = 5 * time.Second
	return NewLoader(cfg, zaptest.NewLogger(t))
}

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/br", "/gzip":
			enc := r.URL.Path[1:]
			assert.Contains(t, r.Header.Get("Accept-Encoding"), enc)
			w.Header().Set("Content-Encoding", enc)
			w.Write(encode(t, enc, tinyPage))
		case "/plain":
			w.Write([]byte(tinyPage))
		case "/zstd":
			w.Header().Set("Content-Encoding", "zstd")
			w.Write([]byte("????"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loader := newTestLoader(t)
	ctx := context.Background()

	for _, path := range []string{"/br", "/gzip", "/plain"} {
		t.Run(path, func(t *testing.T) {
			doc, err := loader.Load(ctx, srv.URL+path)
			require.NoError(t, err)
			assert.Equal(t, "Tiny", doc.Title())
			assert.Equal(t, srv.URL+path, doc.URL())
			assert.Equal(t, schemas.Viewport{Width: 1024, Height: 768}, doc.Viewport())

			els, err := doc.Candidates(ctx)
			require.NoError(t, err)
			require.Len(t, els, 1)
			assert.Equal(t, "Go", els[0].Text())
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := loader.Load(ctx, srv.URL+"/missing")
		assert.ErrorContains(t, err, "404")
	})

	t.Run("unsupported encoding", func(t *testing.T) {
		_, err := loader.Load(ctx, srv.URL+"/zstd")
		assert.ErrorIs(t, err, errUnsupportedEncoding)
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte(tinyPage), 0o600))

	loader := newTestLoader(t)
	ctx := context.Background()

	doc, err := loader.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(path), doc.URL())

	doc, err = loader.Load(ctx, "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	assert.Equal(t, "Tiny", doc.Title())

	_, err = loader.Load(ctx, filepath.Join(dir, "absent.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
