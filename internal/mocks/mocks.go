// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/uilink/api/schemas"
)

// -- Element Fake --

// Element is a plain in-memory schemas.Element. Tests build it field by field.
type Element struct {
	Tag    string
	Body   string
	Attrs  map[string]string
	Index  int // 1-based position among siblings; 0 means no parent.
	Box    schemas.Rect
	Styles map[string]string
}

// NewElement returns a 100x40 element with the given tag and attributes.
func NewElement(tag string, attrs map[string]string) *Element {
	return &Element{
		Tag:   tag,
		Attrs: attrs,
		Index: 1,
		Box:   schemas.Rect{Width: 100, Height: 40},
	}
}

// WithText sets the text content and returns e.
func (e *Element) WithText(text string) *Element {
	e.Body = text
	return e
}

func (e *Element) TagName() string { return strings.ToLower(e.Tag) }
func (e *Element) Text() string    { return e.Body }

func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

func (e *Element) ChildIndex() (int, bool) { return e.Index, e.Index > 0 }
func (e *Element) BoundingRect() schemas.Rect { return e.Box }

func (e *Element) ComputedStyle(property string) string {
	return e.Styles[property]
}

// -- Document Mock --

// MockDocument mocks schemas.Document.
type MockDocument struct {
	mock.Mock
}

func (m *MockDocument) URL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDocument) Viewport() schemas.Viewport {
	args := m.Called()
	return args.Get(0).(schemas.Viewport)
}

func (m *MockDocument) Candidates(ctx context.Context) ([]schemas.Element, error) {
	args := m.Called(ctx)
	if els, ok := args.Get(0).([]schemas.Element); ok {
		return els, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocument) SetRootProperty(ctx context.Context, name, value string) error {
	args := m.Called(ctx, name, value)
	return args.Error(0)
}

func (m *MockDocument) MergeInlineStyle(ctx context.Context, selector string, style map[string]string) (bool, error) {
	args := m.Called(ctx, selector, style)
	return args.Bool(0), args.Error(1)
}

// -- Renderer Mock --

// MockRenderer mocks schemas.Renderer.
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderPage(ctx context.Context) ([]byte, string, error) {
	args := m.Called(ctx)
	var data []byte
	if b, ok := args.Get(0).([]byte); ok {
		data = b
	}
	return data, args.String(1), args.Error(2)
}
