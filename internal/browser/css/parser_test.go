package css

import (
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectorList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "#buy", []string{"#buy"}},
		{"group", "nav a, ul > li", []string{"nav a", "ul > li"}},
		{"comma inside attribute value", `[title="a, b"], p`, []string{`[title="a, b"]`, "p"}},
		{"bad member is dropped", "[oops, .cta", []string{".cta"}},
		{"empty members are skipped", " , li ,", []string{"li"}},
		{"nothing parses", "a:::bad", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sels := ParseSelectorList(tt.input)
			require.Len(t, sels, len(tt.want))
			for i, want := range tt.want {
				sel, err := cascadia.Parse(want)
				require.NoError(t, err)
				assert.Equal(t, sel.String(), sels[i].String())
			}
		})
	}
}

func TestSelectorSpecificity(t *testing.T) {
	tests := []struct {
		input string
		want  cascadia.Specificity
	}{
		{"a", cascadia.Specificity{0, 0, 1}},
		{"#x", cascadia.Specificity{1, 0, 0}},
		{".a.b[href]", cascadia.Specificity{0, 3, 0}},
		{"ul li:nth-child(2)", cascadia.Specificity{0, 1, 2}},
	}
	for _, tt := range tests {
		sels := ParseSelectorList(tt.input)
		require.Len(t, sels, 1, tt.input)
		assert.Equal(t, tt.want, sels[0].Specificity(), tt.input)
	}
}

func TestParseStyleSheet(t *testing.T) {
	src := `
		@import url("x.css");
		/* brand */
		.btn { color: red; padding: 4px 8px !important; }
		@media (max-width: 600px) { .btn { color: blue; } }
		a:::bad { color: green; }
		#buy, .cta { --accent: #ff0; background-color: var(--accent) }
	`
	sheet := ParseStyleSheet(src)
	require.Len(t, sheet.Rules, 2)

	assert.Equal(t, []Declaration{
		{Property: "color", Value: "red"},
		{Property: "padding", Value: "4px 8px", Important: true},
	}, sheet.Rules[0].Declarations)

	assert.Len(t, sheet.Rules[1].Selectors, 2)
	assert.Equal(t, []Declaration{
		{Property: "--accent", Value: "#ff0"},
		{Property: "background-color", Value: "var(--accent)"},
	}, sheet.Rules[1].Declarations)
}

func TestParseInline(t *testing.T) {
	decls := ParseInline(`COLOR: Red; ; background: url("a;b.png"); bogus; --Brand: 1px;margin:0`)
	assert.Equal(t, []Declaration{
		{Property: "color", Value: "Red"},
		{Property: "background", Value: `url("a;b.png")`},
		{Property: "--Brand", Value: "1px"},
		{Property: "margin", Value: "0"},
	}, decls)
}

func TestSerializeInline(t *testing.T) {
	out := SerializeInline([]Declaration{
		{Property: "color", Value: "red"},
		{Property: "margin", Value: "0px", Important: true},
	})
	assert.Equal(t, "color: red; margin: 0px !important;", out)
	assert.Equal(t, "", SerializeInline(nil))
}

func TestMergeInline(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		updates  map[string]string
		want     string
	}{
		{"into empty", "", map[string]string{"backgroundColor": "#000", "color": "#fff"}, "background-color: #000; color: #fff;"},
		{"keeps position", "color: red; margin: 0px", map[string]string{"color": "blue"}, "color: blue; margin: 0px;"},
		{"hyphenated key", "border-radius: 2px", map[string]string{"border-radius": "8px"}, "border-radius: 8px;"},
		{"custom property", "", map[string]string{"--brand": "#0af"}, "--brand: #0af;"},
		{"empty removes", "color: red; margin: 0px", map[string]string{"color": ""}, "margin: 0px;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeInline(tt.existing, tt.updates))
		})
	}
}

func TestPropertyName(t *testing.T) {
	assert.Equal(t, "background-color", PropertyName("backgroundColor"))
	assert.Equal(t, "border-top-left-radius", PropertyName("borderTopLeftRadius"))
	assert.Equal(t, "color", PropertyName("color"))
	assert.Equal(t, "font-size", PropertyName("font-size"))
	assert.Equal(t, "--camelCase", PropertyName("--camelCase"))
}
