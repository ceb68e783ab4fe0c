// Package selector derives CSS locators that a controller can later use to
// find an element again. Locators are best-effort and are not checked for
// uniqueness against the live document.
package selector

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/uilink/api/schemas"
)

// TestIDAttr is the test-identifier attribute preferred over every other signal.
const TestIDAttr = "data-testid"

// maxClasses bounds the compound class selector.
const maxClasses = 3

// Synthesize returns a locator for el. The first applicable form wins:
// test id, id, up to three classes, tag:nth-child(n), then the bare tag.
// The result is never empty.
func Synthesize(el schemas.Element) string {
	if v, ok := el.Attr(TestIDAttr); ok && v != "" {
		return fmt.Sprintf(`[%s="%s"]`, TestIDAttr, quoteValue(v))
	}
	if id, ok := el.Attr("id"); ok && id != "" {
		return "#" + EscapeIdent(id)
	}
	if class, ok := el.Attr("class"); ok {
		if classes := strings.Fields(class); len(classes) > 0 {
			if len(classes) > maxClasses {
				classes = classes[:maxClasses]
			}
			var b strings.Builder
			for _, c := range classes {
				b.WriteByte('.')
				b.WriteString(EscapeIdent(c))
			}
			return b.String()
		}
	}

	tag := strings.ToLower(el.TagName())
	// Custom Document implementations may report no tag name.
	if tag == "" {
		tag = "*"
	}
	if n, ok := el.ChildIndex(); ok && n > 0 {
		return fmt.Sprintf("%s:nth-child(%d)", tag, n)
	}
	return tag
}

func quoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return r.Replace(v)
}

// EscapeIdent escapes s for use as a CSS identifier, following the rules of
// the CSS.escape() DOM API.
func EscapeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('�')
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f,
			i == 0 && r >= '0' && r <= '9',
			i == 1 && r >= '0' && r <= '9' && s[0] == '-':
			fmt.Fprintf(&b, `\%x `, r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
