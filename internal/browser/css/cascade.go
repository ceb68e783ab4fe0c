package css

import (
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// BaseFontSize is the root font size in px.
const BaseFontSize = 16.0

// UserAgentCSS supplies the defaults the estimator depends on: block
// display for flow content and intrinsic sizes for form controls.
const UserAgentCSS = `
html, body, div, p, h1, h2, h3, h4, h5, h6, ul, ol, li, form, header, footer,
section, article, nav, main, aside, fieldset, table, dialog { display: block; }
head, script, style, template, title, meta, link, noscript { display: none; }
body { margin: 8px; }
h1 { font-size: 2em; margin: 0.67em 0; font-weight: bold; }
h2 { font-size: 1.5em; margin: 0.83em 0; font-weight: bold; }
p { margin: 1em 0; }
ul, ol { padding-left: 40px; }
button, input, select, textarea, img { display: inline-block; }
button, input, select, textarea { font-size: 13.333px; margin: 0px; }
button, input[type="submit"], input[type="button"], input[type="reset"] {
  width: auto;
  padding: 1px 6px;
  border-radius: 0px;
  background-color: rgb(239, 239, 239);
}
input { width: 170px; padding: 1px 2px; }
input[type="checkbox"], input[type="radio"] { width: 13px; height: 13px; padding: 0px; margin: 3px; }
input[type="hidden"], [hidden] { display: none; }
a { color: rgb(0, 0, 238); }
b, strong { font-weight: bold; }
`

var userAgentSheet = ParseStyleSheet(UserAgentCSS)

// inherited lists the properties that pass from parent to child.
var inherited = map[string]bool{
	"color":       true,
	"font-family": true,
	"font-size":   true,
	"font-weight": true,
	"line-height": true,
	"text-align":  true,
	"visibility":  true,
	"cursor":      true,
}

type origin int

const (
	originUserAgent origin = iota
	originAuthor
	originInline
)

type candidate struct {
	decl        Declaration
	origin      origin
	specificity cascadia.Specificity
	order       int
}

// priority orders origins, with !important reversing them.
func (c candidate) priority() int {
	if c.decl.Important {
		return 4 + int(originInline-c.origin)
	}
	return int(c.origin)
}

// Cascade resolves declared styles for elements of one document.
type Cascade struct {
	sheets []StyleSheet
}

// NewCascade builds a cascade over the author stylesheets, in document order.
func NewCascade(author ...StyleSheet) *Cascade {
	return &Cascade{sheets: author}
}

// Compute returns the resolved declarations for n. parent is the result of
// Compute for n's parent element, or nil at the root. Custom properties
// are included; var() references are left unresolved.
func (c *Cascade) Compute(n *html.Node, parent map[string]string) map[string]string {
	var cands []candidate
	order := 0
	collect := func(sheet StyleSheet, o origin) {
		for _, rule := range sheet.Rules {
			spec, ok := rule.Match(n)
			if !ok {
				continue
			}
			for _, d := range rule.Declarations {
				cands = append(cands, candidate{decl: d, origin: o, specificity: spec, order: order})
				order++
			}
		}
	}

	collect(userAgentSheet, originUserAgent)
	for _, sheet := range c.sheets {
		collect(sheet, originAuthor)
	}
	if style, ok := Attr(n, "style"); ok {
		for _, d := range ParseInline(style) {
			cands = append(cands, candidate{decl: d, origin: originInline, specificity: cascadia.Specificity{1, 0, 0}, order: order})
			order++
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if pa, pb := a.priority(), b.priority(); pa != pb {
			return pa < pb
		}
		if a.specificity != b.specificity {
			return a.specificity.Less(b.specificity)
		}
		return a.order < b.order
	})

	styles := make(map[string]string, len(cands))
	for _, cand := range cands {
		applyDeclaration(styles, cand.decl)
	}

	for prop, val := range styles {
		if val == "inherit" {
			if pv, ok := parent[prop]; ok {
				styles[prop] = pv
			} else {
				delete(styles, prop)
			}
		}
	}
	for prop, val := range parent {
		if _, set := styles[prop]; !set && (inherited[prop] || strings.HasPrefix(prop, "--")) {
			styles[prop] = val
		}
	}

	parentSize := BaseFontSize
	if parent != nil {
		if px, ok := Pixels(parent["font-size"]); ok {
			parentSize = px
		}
	}
	if fs, ok := styles["font-size"]; ok {
		styles["font-size"] = FormatPx(Length(fs, parentSize, parentSize))
	} else {
		styles["font-size"] = FormatPx(parentSize)
	}
	return styles
}

// applyDeclaration sets d and keeps the 1-to-4 box shorthands and their
// longhands consistent with each other.
func applyDeclaration(styles map[string]string, d Declaration) {
	styles[d.Property] = d.Value
	for _, box := range []string{"margin", "padding"} {
		switch {
		case d.Property == box:
			for side, v := range expandBox(d.Value) {
				styles[box+"-"+side] = v
			}
		case strings.HasPrefix(d.Property, box+"-"):
			styles[box] = collapseBox(styles, box)
		}
	}
}

var sides = [4]string{"top", "right", "bottom", "left"}

func expandBox(value string) map[string]string {
	parts := strings.Fields(value)
	var v [4]string
	switch len(parts) {
	case 1:
		v = [4]string{parts[0], parts[0], parts[0], parts[0]}
	case 2:
		v = [4]string{parts[0], parts[1], parts[0], parts[1]}
	case 3:
		v = [4]string{parts[0], parts[1], parts[2], parts[1]}
	case 4:
		v = [4]string{parts[0], parts[1], parts[2], parts[3]}
	default:
		return nil
	}
	out := make(map[string]string, 4)
	for i, side := range sides {
		out[side] = v[i]
	}
	return out
}

// collapseBox rebuilds the shorthand from longhands in its shortest form.
func collapseBox(styles map[string]string, box string) string {
	var v [4]string
	for i, side := range sides {
		v[i] = styles[box+"-"+side]
		if v[i] == "" {
			v[i] = "0px"
		}
	}
	switch {
	case v[0] == v[1] && v[1] == v[2] && v[2] == v[3]:
		return v[0]
	case v[0] == v[2] && v[1] == v[3]:
		return v[0] + " " + v[1]
	case v[1] == v[3]:
		return v[0] + " " + v[1] + " " + v[2]
	default:
		return strings.Join(v[:], " ")
	}
}

// BoxEdges resolves the four sides of margin or padding to px.
func BoxEdges(styles map[string]string, box string, fontSize, reference float64) (top, right, bottom, left float64) {
	e := [4]float64{}
	for i, side := range sides {
		e[i] = Length(styles[box+"-"+side], fontSize, reference)
	}
	return e[0], e[1], e[2], e[3]
}

// Length resolves a CSS length to px. Percentages resolve against
// reference and em against fontSize. Unknown units and keywords such as
// auto resolve to 0.
func Length(value string, fontSize, reference float64) float64 {
	value = strings.TrimSpace(strings.ToLower(value))
	num := func(suffix string) (float64, bool) {
		if !strings.HasSuffix(value, suffix) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, suffix), 64)
		return f, err == nil
	}

	if v, ok := num("px"); ok {
		return v
	}
	if v, ok := num("%"); ok {
		return reference * v / 100
	}
	if v, ok := num("rem"); ok {
		return v * BaseFontSize
	}
	if v, ok := num("em"); ok {
		return v * fontSize
	}
	if v, ok := num("pt"); ok {
		return v * 4 / 3
	}
	switch value {
	case "small":
		return 13
	case "medium":
		return BaseFontSize
	case "large":
		return 18
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return 0
}

// Pixels parses a plain px value.
func Pixels(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasSuffix(value, "px") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(value, "px"), 64)
	return f, err == nil
}

// FormatPx renders a px length the way getComputedStyle does.
func FormatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// maxVarDepth bounds var() substitution so self-referencing properties
// terminate.
const maxVarDepth = 8

// ResolveVars substitutes var(--name[, fallback]) references using the
// custom properties in styles. Unknown names without a fallback resolve to
// the empty string.
func ResolveVars(value string, styles map[string]string) string {
	for depth := 0; depth < maxVarDepth; depth++ {
		start := strings.Index(value, "var(")
		if start < 0 {
			return value
		}
		end := matchingParen(value, start+len("var("))
		if end < 0 {
			return value
		}

		inner := value[start+len("var(") : end]
		name, fallback := inner, ""
		if comma := strings.IndexByte(inner, ','); comma >= 0 {
			name, fallback = inner[:comma], strings.TrimSpace(inner[comma+1:])
		}
		sub, ok := styles[strings.TrimSpace(name)]
		if !ok {
			sub = fallback
		}
		value = value[:start] + sub + value[end+1:]
	}
	return value
}

// matchingParen returns the index of the ')' closing the group opened just
// before from, or -1.
func matchingParen(s string, from int) int {
	depth := 1
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
