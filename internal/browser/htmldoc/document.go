// Package htmldoc is a schemas.Document over a parsed HTML tree. It needs no
// browser: styles come from a small cascade over the page's <style> blocks
// and inline styles, and geometry is estimated.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/browser/css"
	"github.com/xkilldash9x/uilink/internal/scanner"
)

// BlankURL is reported for documents parsed without a source URL.
const BlankURL = "about:blank"

var candidateSelector = cascadia.MustCompile(scanner.CandidateQuery)

// computedDefaults stand in for properties no rule sets, using the values
// getComputedStyle reports for an unstyled element.
var computedDefaults = map[string]string{
	"background-color": "rgba(0, 0, 0, 0)",
	"color":            "rgb(0, 0, 0)",
	"border-radius":    "0px",
	"font-weight":      "400",
	"padding":          "0px",
	"margin":           "0px",
	"display":          "inline",
	"visibility":       "visible",
}

// Document is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	cascade  *css.Cascade
	url      string
	viewport schemas.Viewport
	logger   *zap.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithURL sets the URL reported in UI map metadata.
func WithURL(u string) Option {
	return func(d *Document) { d.url = u }
}

// WithViewport sets the viewport used for layout and metadata.
func WithViewport(vp schemas.Viewport) Option {
	return func(d *Document) { d.viewport = vp }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	d := &Document{
		root:     root,
		url:      BlankURL,
		viewport: schemas.Viewport{Width: 1280, Height: 800},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("htmldoc")

	var sheets []css.StyleSheet
	for _, n := range htmlquery.Find(root, "//style") {
		sheets = append(sheets, css.ParseStyleSheet(htmlquery.InnerText(n)))
	}
	d.cascade = css.NewCascade(sheets...)
	d.logger.Debug("Document parsed.", zap.String("url", d.url), zap.Int("stylesheets", len(sheets)))
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(src string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(src), opts...)
}

func (d *Document) URL() string { return d.url }

func (d *Document) Viewport() schemas.Viewport { return d.viewport }

// Title returns the trimmed text of the first <title>.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := htmlquery.FindOne(d.root, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

// Candidates lays the document out afresh and returns every element matching
// the candidate query, in document order.
func (d *Document) Candidates(ctx context.Context) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	boxes := newEstimator(d.cascade, d.viewport).run(d.root)
	nodes := candidateSelector.MatchAll(d.root)
	out := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		el := &element{node: n}
		if b := boxes[n]; b != nil {
			el.rect = b.rect
			el.styles = b.styles
		}
		out = append(out, el)
	}
	return out, nil
}

// SetRootProperty sets a property in the root element's inline style.
func (d *Document) SetRootProperty(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	root := d.rootElement()
	if root == nil {
		return fmt.Errorf("document has no root element")
	}
	style, _ := css.Attr(root, "style")
	css.SetAttr(root, "style", css.MergeInline(style, map[string]string{name: value}))
	return nil
}

// MergeInlineStyle merges style into the first element matching selector.
// A selector that does not parse is an error; one that matches nothing is not.
func (d *Document) MergeInlineStyle(ctx context.Context, selector string, style map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return false, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n := cascadia.Query(d.root, group)
	if n == nil {
		return false, nil
	}
	existing, _ := css.Attr(n, "style")
	css.SetAttr(n, "style", css.MergeInline(existing, style))
	return true, nil
}

// Render writes the current tree, including applied styles, as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) rootElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// element is a snapshot of one candidate taken during Candidates.
type element struct {
	node   *html.Node
	rect   schemas.Rect
	styles map[string]string
}

func (e *element) TagName() string { return strings.ToLower(e.node.Data) }

func (e *element) Text() string { return htmlquery.InnerText(e.node) }

func (e *element) Attr(name string) (string, bool) { return css.Attr(e.node, name) }

func (e *element) ChildIndex() (int, bool) { return css.ChildIndex(e.node) }

func (e *element) BoundingRect() schemas.Rect { return e.rect }

func (e *element) ComputedStyle(property string) string {
	v, ok := e.styles[property]
	if !ok {
		return computedDefaults[property]
	}
	v = css.ResolveVars(v, e.styles)
	if property == "font-weight" {
		switch v {
		case "normal":
			return "400"
		case "bold":
			return "700"
		}
	}
	return v
}
