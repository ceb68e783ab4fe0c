package schemas

import (
	"encoding/json"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// -- UI Surface Schemas --

// Rect is an element's bounding box in CSS pixels relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the box has no visible area.
func (r Rect) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Viewport is the size of the page's visible area.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Role is the outcome of classifying one element. Name is either a dotted
// "category.kind" label such as "button.send" or RoleUnknown.
type Role struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// RoleUnknown is the sentinel role name for elements no rule matched.
const RoleUnknown = "unknown"

// ElementRecord describes one visible interactive element. A record is built
// fresh on every scan and never mutated afterwards.
type ElementRecord struct {
	Role       string            `json:"role"`
	Confidence float64           `json:"confidence"`
	Selector   string            `json:"selector"`
	Text       string            `json:"text"`
	Rect       Rect              `json:"rect"`
	Styles     map[string]string `json:"styles"`
	// Attributes maps each whitelisted attribute to its value, or nil when absent.
	Attributes map[string]*string `json:"attributes"`
}

// UIMapMeta describes the page a UI map was taken from.
type UIMapMeta struct {
	URL       string   `json:"url"`
	Timestamp int64    `json:"timestamp"`
	Viewport  Viewport `json:"viewport"`
}

// UIMap is the payload of a uiMap reply.
type UIMap struct {
	Elements []ElementRecord `json:"elements"`
	Meta     UIMapMeta       `json:"meta"`
}

// -- Theme Schemas --

// styleDecoder keeps numbers as written so 0.5 stays "0.5" and 600 stays "600".
var styleDecoder = jsoniter.Config{UseNumber: true}.Froze()

// StyleMap maps CSS property names to values. Controllers may send numbers
// and booleans as values; they are stored in their JSON text form, the way
// el.style coerces them. A null value clears the property.
type StyleMap map[string]string

// UnmarshalJSON accepts string, number, bool and null values.
func (m *StyleMap) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := styleDecoder.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(StyleMap, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			out[k] = v
		case json.Number:
			out[k] = v.String()
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		case nil:
			out[k] = ""
		default:
			return fmt.Errorf("style value for %q must be a string, number or bool, got %T", k, v)
		}
	}
	*m = out
	return nil
}

// ElementStyle is a per-selector inline style override.
type ElementStyle struct {
	Selector string   `json:"selector"`
	Style    StyleMap `json:"style"`
}

// ThemePatch is a remotely supplied style change. CSSVars are set as custom
// properties on the document root, Elements are merged into the inline style
// of the first element each selector matches.
type ThemePatch struct {
	CSSVars  StyleMap       `json:"cssVars,omitempty"`
	Elements []ElementStyle `json:"elements,omitempty"`
}

// IsEmpty reports whether applying the patch would change nothing.
func (p ThemePatch) IsEmpty() bool {
	return len(p.CSSVars) == 0 && len(p.Elements) == 0
}

// ApplyResult is the outcome of applying a ThemePatch.
type ApplyResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
