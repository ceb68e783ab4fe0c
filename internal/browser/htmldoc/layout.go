package htmldoc

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/browser/css"
)

const (
	// lineHeightFactor is used for line-height: normal.
	lineHeightFactor = 1.2
	// glyphWidthFactor approximates the advance of an average glyph.
	glyphWidthFactor = 0.6
)

// layoutBox is the estimated geometry and resolved style of one element.
type layoutBox struct {
	rect   schemas.Rect
	styles map[string]string
}

// estimator produces approximate boxes. It stacks every element vertically
// inside its parent's content box, which is enough to tell visible elements
// from hidden ones and to keep document order top to bottom.
type estimator struct {
	cascade  *css.Cascade
	viewport schemas.Viewport
	boxes    map[*html.Node]*layoutBox
}

func newEstimator(cascade *css.Cascade, vp schemas.Viewport) *estimator {
	return &estimator{cascade: cascade, viewport: vp, boxes: make(map[*html.Node]*layoutBox)}
}

func (e *estimator) run(doc *html.Node) map[*html.Node]*layoutBox {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			e.layout(c, 0, 0, float64(e.viewport.Width), nil, false)
		}
	}
	return e.boxes
}

// layout places n at (x, y) within avail px of width and returns the
// vertical space it consumes including margins.
func (e *estimator) layout(n *html.Node, x, y, avail float64, parent map[string]string, hidden bool) float64 {
	styles := e.cascade.Compute(n, parent)
	hidden = hidden || styles["display"] == "none"
	if hidden {
		e.boxes[n] = &layoutBox{styles: styles}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				e.layout(c, 0, 0, 0, styles, true)
			}
		}
		return 0
	}

	fontSize, _ := css.Pixels(styles["font-size"])
	mt, mr, mb, ml := css.BoxEdges(styles, "margin", fontSize, avail)
	pt, pr, pb, pl := css.BoxEdges(styles, "padding", fontSize, avail)

	block := isBlock(styles["display"])
	explicitW, hasW := e.length(styles["width"], fontSize, avail)
	contentAvail := avail - ml - mr - pl - pr
	if hasW {
		contentAvail = explicitW
	}
	contentAvail = math.Max(contentAvail, 0)

	cx, cy := x+ml+pl, y+mt+pt
	childWidth := 0.0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		cy += e.layout(c, cx, cy, contentAvail, styles, false)
		if b := e.boxes[c]; b != nil {
			childWidth = math.Max(childWidth, b.rect.Width)
		}
	}
	childHeight := cy - (y + mt + pt)

	textWidth, hasText := ownTextWidth(n, fontSize)
	var width float64
	switch {
	case hasW:
		width = explicitW + pl + pr
	case block:
		width = math.Max(avail-ml-mr, 0)
	default:
		width = math.Min(math.Max(textWidth, childWidth), contentAvail) + pl + pr
	}

	contentHeight := childHeight
	if hasText || isReplaced(n) {
		contentHeight = math.Max(contentHeight, lineHeight(styles, fontSize))
	}
	if h, ok := e.length(styles["height"], fontSize, float64(e.viewport.Height)); ok {
		contentHeight = h
	}
	height := contentHeight + pt + pb

	e.boxes[n] = &layoutBox{
		rect:   schemas.Rect{X: x + ml, Y: y + mt, Width: width, Height: height},
		styles: styles,
	}
	return height + mt + mb
}

// length resolves an explicit width or height. auto and unset report false.
func (e *estimator) length(value string, fontSize, reference float64) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "auto" {
		return 0, false
	}
	return math.Max(css.Length(value, fontSize, reference), 0), true
}

func isBlock(display string) bool {
	switch display {
	case "block", "list-item", "flex", "grid", "table":
		return true
	}
	return false
}

// isReplaced reports elements that occupy a line even with no text.
func isReplaced(n *html.Node) bool {
	switch n.Data {
	case "input", "select", "textarea", "img":
		return true
	}
	return false
}

func lineHeight(styles map[string]string, fontSize float64) float64 {
	lh := strings.TrimSpace(styles["line-height"])
	switch {
	case lh == "" || lh == "normal":
		return fontSize * lineHeightFactor
	case strings.IndexFunc(lh, func(r rune) bool { return r < '0' && r != '.' || r > '9' }) < 0:
		// Unitless multiplier.
		return css.Length(lh, fontSize, fontSize) * fontSize
	default:
		return css.Length(lh, fontSize, fontSize)
	}
}

// ownTextWidth estimates the width of the text nodes directly under n.
func ownTextWidth(n *html.Node, fontSize float64) (float64, bool) {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			parts = append(parts, strings.Fields(c.Data)...)
		}
	}
	if v, ok := css.Attr(n, "value"); ok && (n.Data == "button" || n.Data == "input") {
		parts = append(parts, strings.Fields(v)...)
	}
	if len(parts) == 0 {
		return 0, false
	}
	text := strings.Join(parts, " ")
	return float64(utf8.RuneCountInString(text)) * fontSize * glyphWidthFactor, true
}
