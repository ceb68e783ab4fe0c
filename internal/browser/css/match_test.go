package css

import (
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const fixture = `<html><body>
<nav id="top" class="bar">
  <a id="home" href="/">Home</a>
  <a id="docs" href="https://docs.example" class="link external">Docs</a>
</nav>
<ul id="list">
  <li id="one">1</li>
  <li id="two" lang="en-US">2</li>
  <li id="three" data-testid="buy-btn">3</li>
</ul>
</body></html>`

func parseFixture(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, root *html.Node, id string) *html.Node {
	t.Helper()
	n := first(root, "#"+id)
	require.NotNil(t, n, "no element #%s", id)
	return n
}

// first returns the first element under root matching sel.
func first(root *html.Node, sel string) *html.Node {
	return cascadia.Query(root, cascadia.MustCompile(sel))
}

func ruleFor(t *testing.T, selectors string) Rule {
	t.Helper()
	sels := ParseSelectorList(selectors)
	require.NotEmpty(t, sels, "no selector in %q parsed", selectors)
	return Rule{Selectors: sels}
}

func TestMatch(t *testing.T) {
	doc := parseFixture(t)

	tests := []struct {
		selector string
		id       string
		want     bool
	}{
		{"a", "home", true},
		{"nav a", "home", true},
		{"body > a", "home", false},
		{"nav > a.external", "docs", true},
		{"a[href^=https]", "docs", true},
		{"a[href^=https]", "home", false},
		{`[class~="link"]`, "docs", true},
		{`[lang|=en]`, "two", true},
		{`[href$=".example"]`, "docs", true},
		{"li:nth-child(2)", "two", true},
		{"li:nth-child(2)", "three", false},
		{"li:first-child", "one", true},
		{"li + li", "one", false},
		{"li + li", "two", true},
		{"#one ~ li", "three", true},
		{`[data-testid="buy-btn"]`, "three", true},
		{"ul, nav", "top", true},
		{":root a", "home", true},
		{":root", "home", false},
	}

	for _, tt := range tests {
		t.Run(tt.selector+"/"+tt.id, func(t *testing.T) {
			_, ok := ruleFor(t, tt.selector).Match(byID(t, doc, tt.id))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestMatchReportsBestSpecificity(t *testing.T) {
	doc := parseFixture(t)
	spec, ok := ruleFor(t, "a, #docs, .link").Match(byID(t, doc, "docs"))
	require.True(t, ok)
	assert.Equal(t, cascadia.Specificity{1, 0, 0}, spec)

	_, ok = ruleFor(t, "li, a:hover, .link").Match(byID(t, doc, "home"))
	assert.False(t, ok, "interaction pseudo-classes never match a static tree")
}

func TestChildIndex(t *testing.T) {
	doc := parseFixture(t)

	idx, ok := ChildIndex(byID(t, doc, "three"))
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	_, ok = ChildIndex(doc.FirstChild)
	assert.False(t, ok, "the root element has no element parent")
}

func TestSetAttr(t *testing.T) {
	doc := parseFixture(t)
	n := byID(t, doc, "home")

	SetAttr(n, "style", "color: red;")
	SetAttr(n, "style", "color: blue;")
	v, ok := Attr(n, "style")
	assert.True(t, ok)
	assert.Equal(t, "color: blue;", v)
}
