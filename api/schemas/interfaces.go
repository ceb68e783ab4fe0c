package schemas

import (
	"context"
)

// -- Page Interfaces --

// Element is a read-only view of one DOM element as seen by the scanner,
// classifier and selector synthesizer. Implementations answer synchronously
// from state they already hold.
type Element interface {
	// TagName returns the lowercase tag name, e.g. "button".
	TagName() string
	// Text returns the element's text content, untrimmed.
	Text() string
	// Attr returns the named attribute and whether it is present.
	Attr(name string) (string, bool)
	// ChildIndex returns the 1-based position of the element among its
	// parent's element children, and false when it has no parent element.
	ChildIndex() (int, bool)
	// BoundingRect returns the element's layout box.
	BoundingRect() Rect
	// ComputedStyle returns the resolved value of a CSS property given in
	// its hyphenated form, e.g. "background-color".
	ComputedStyle(property string) string
}

// Document is the page the agent is embedded in.
type Document interface {
	URL() string
	Viewport() Viewport
	// Candidates returns every element matching the candidate query in
	// document order. Each call observes the current state of the page.
	Candidates(ctx context.Context) ([]Element, error)
	// SetRootProperty sets a property, usually a custom property such as
	// "--accent", on the root element's inline style.
	SetRootProperty(ctx context.Context, name, value string) error
	// MergeInlineStyle merges style into the inline style of the first
	// element matching selector. It reports false when nothing matched.
	MergeInlineStyle(ctx context.Context, selector string, style map[string]string) (bool, error)
}

// Renderer rasterizes the whole page. It is an optional capability; agents
// without one answer screenshot requests with ScreenshotPlaceholder.
type Renderer interface {
	// RenderPage returns the encoded image and its MIME type.
	RenderPage(ctx context.Context) (data []byte, mimeType string, err error)
}
