package cdp

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/scanner"
)

// infoTimeout bounds the metadata lookups that take no context.
const infoTimeout = 5 * time.Second

// Document is a schemas.Document over the session's tab.
type Document struct {
	s *Session
}

// URL returns location.href, or "" when the tab cannot be reached.
func (d *Document) URL() string {
	info, err := d.pageInfo()
	if err != nil {
		d.s.logger.Debug("Could not read page URL.", zap.Error(err))
		return ""
	}
	return info.URL
}

// Viewport returns the window's inner size, falling back to the configured size.
func (d *Document) Viewport() schemas.Viewport {
	info, err := d.pageInfo()
	if err != nil || info.Width == 0 || info.Height == 0 {
		return d.s.viewport
	}
	return schemas.Viewport{Width: info.Width, Height: info.Height}
}

type pageInfo struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (d *Document) pageInfo() (pageInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), infoTimeout)
	defer cancel()
	var info pageInfo
	err := d.evaluate(ctx, pageInfoScript, &info)
	return info, err
}

// Candidates snapshots every candidate element in one round trip.
func (d *Document) Candidates(ctx context.Context) ([]schemas.Element, error) {
	var snaps []snapshot
	if err := d.evaluate(ctx, snapshotScript(scanner.CandidateQuery, styleProperties()), &snaps); err != nil {
		return nil, fmt.Errorf("snapshotting candidates: %w", err)
	}
	out := make([]schemas.Element, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
}

// SetRootProperty calls setProperty on the root element's style.
func (d *Document) SetRootProperty(ctx context.Context, name, value string) error {
	return d.evaluate(ctx, setRootPropertyScript(name, value), nil)
}

// MergeInlineStyle assigns style onto the first element matching selector.
func (d *Document) MergeInlineStyle(ctx context.Context, selector string, style map[string]string) (bool, error) {
	var res struct {
		Matched bool   `json:"matched"`
		Error   string `json:"error"`
	}
	if err := d.evaluate(ctx, mergeStyleScript(selector, style), &res); err != nil {
		return false, err
	}
	if res.Error != "" {
		return false, fmt.Errorf("invalid selector %q: %s", selector, res.Error)
	}
	return res.Matched, nil
}

// evaluate runs script and decodes its JSON result into out, if non-nil.
func (d *Document) evaluate(ctx context.Context, script string, out interface{}) error {
	var raw []byte
	err := d.s.run(ctx, chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding script result: %w", err)
	}
	return nil
}

func styleProperties() []string {
	props := make([]string, len(scanner.StyleProperties))
	for i, p := range scanner.StyleProperties {
		props[i] = p.Property
	}
	return props
}

// snapshot is one element as captured in the page.
type snapshot struct {
	Tag    string            `json:"tag"`
	Body   string            `json:"text"`
	Attrs  map[string]string `json:"attrs"`
	Index  int               `json:"index"`
	Rect   schemas.Rect      `json:"rect"`
	Styles map[string]string `json:"styles"`
}

func (s *snapshot) TagName() string { return strings.ToLower(s.Tag) }
func (s *snapshot) Text() string    { return s.Body }

func (s *snapshot) Attr(name string) (string, bool) {
	v, ok := s.Attrs[name]
	return v, ok
}

func (s *snapshot) ChildIndex() (int, bool)    { return s.Index, s.Index > 0 }
func (s *snapshot) BoundingRect() schemas.Rect { return s.Rect }

func (s *snapshot) ComputedStyle(property string) string {
	return s.Styles[property]
}

// Renderer captures the tab as an image.
type Renderer struct {
	s       *Session
	quality int
}

// RenderPage captures the full page. Quality 100 yields PNG, lower values JPEG.
func (r *Renderer) RenderPage(ctx context.Context) ([]byte, string, error) {
	var buf []byte
	quality := r.quality
	if quality <= 0 || quality > 100 {
		quality = 100
	}
	if err := r.s.run(ctx, chromedp.FullScreenshot(&buf, quality)); err != nil {
		return nil, "", fmt.Errorf("capturing screenshot: %w", err)
	}
	mime := "image/png"
	if quality < 100 {
		mime = "image/jpeg"
	}
	return buf, mime, nil
}

var (
	_ schemas.Document = (*Document)(nil)
	_ schemas.Renderer = (*Renderer)(nil)
	_ schemas.Element  = (*snapshot)(nil)
)
