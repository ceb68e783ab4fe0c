package classifier

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/mocks"
)

const hexAddr = "0x52908400098527886e0f7030069857d2e4169ee7"

// TestDefaultRules exercises each rule of the chain on its own.
func TestDefaultRules(t *testing.T) {
	tests := []struct {
		name string
		f    Features
		want schemas.Role
	}{
		{"currency text", Features{Text: "$12.50", Tag: "span"}, schemas.Role{Name: "display.balance", Confidence: 0.90}},
		{"currency without symbol", Features{Text: "total 3.14", Tag: "div"}, schemas.Role{Name: "display.balance", Confidence: 0.90}},
		{"balance class", Features{Class: "wallet-balance", Tag: "div"}, schemas.Role{Name: "display.balance", Confidence: 0.90}},
		{"balance test id", Features{TestID: "balance-total", Tag: "div"}, schemas.Role{Name: "display.balance", Confidence: 0.90}},
		{"hex address text", Features{Text: hexAddr, Tag: "span"}, schemas.Role{Name: "display.address", Confidence: 0.95}},
		{"address class", Features{Class: "address-chip", Tag: "span"}, schemas.Role{Name: "display.address", Confidence: 0.95}},
		{"send text", Features{Text: "send", Tag: "a"}, schemas.Role{Name: "button.send", Confidence: 0.85}},
		{"send test id", Features{TestID: "send-btn", Tag: "div"}, schemas.Role{Name: "button.send", Confidence: 0.85}},
		{"receive text", Features{Text: "receive funds", Tag: "a"}, schemas.Role{Name: "button.receive", Confidence: 0.85}},
		{"deposit text", Features{Text: "deposit", Tag: "a"}, schemas.Role{Name: "button.receive", Confidence: 0.85}},
		{"receive class", Features{Class: "receive", Tag: "div"}, schemas.Role{Name: "button.receive", Confidence: 0.85}},
		{"deposit test id is not receive", Features{TestID: "deposit", Tag: "div"}, Fallback},
		{"buy class", Features{Class: "btn-buy", Tag: "div"}, schemas.Role{Name: "button.buy", Confidence: 0.85}},
		{"swap text", Features{Text: "swap tokens", Tag: "a"}, schemas.Role{Name: "button.swap", Confidence: 0.85}},
		{"account class", Features{Class: "account-menu", Tag: "div"}, schemas.Role{Name: "button.account", Confidence: 0.80}},
		{"account text on button", Features{Text: "my account", Tag: "button"}, schemas.Role{Name: "button.account", Confidence: 0.80}},
		{"account text on link is not account", Features{Text: "my account", Tag: "a"}, Fallback},
		{"plain button", Features{Text: "ok", Tag: "button"}, schemas.Role{Name: "button.generic", Confidence: 0.60}},
		{"aria button", Features{Text: "ok", Tag: "div", AriaRole: "button"}, schemas.Role{Name: "button.generic", Confidence: 0.60}},
		{"input defaults to text", Features{Tag: "input"}, schemas.Role{Name: "input.text", Confidence: 0.75}},
		{"input with type", Features{Tag: "input", InputType: "email"}, schemas.Role{Name: "input.email", Confidence: 0.75}},
		{"nothing matches", Features{Text: "home", Tag: "a"}, Fallback},
	}
	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.f))
		})
	}
}

// TestRulePriority checks that earlier rules shadow later ones.
func TestRulePriority(t *testing.T) {
	c := New(nil)

	assert.Equal(t, "display.balance", c.Classify(Features{Text: "send $10.00", Tag: "button"}).Name)
	assert.Equal(t, "display.balance", c.Classify(Features{Text: "send", Class: "balance", Tag: "button"}).Name)
	assert.Equal(t, "display.address", c.Classify(Features{Text: "send to " + hexAddr, Tag: "button"}).Name)
	assert.Equal(t, "button.send", c.Classify(Features{Text: "send or receive", Tag: "button"}).Name)
	assert.Equal(t, "button.buy", c.Classify(Features{Text: "buy", Class: "account", Tag: "button"}).Name)
	assert.Equal(t, "button.account", c.Classify(Features{Class: "account", Tag: "input"}).Name)
}

func TestFeaturesOf(t *testing.T) {
	el := mocks.NewElement("BUTTON", map[string]string{
		"class":       "Btn SEND",
		"data-testid": " Send-Btn ",
		"role":        "Button",
		"type":        "Submit",
	}).WithText("  Send Money \n")

	f := FeaturesOf(el)
	assert.Equal(t, Features{
		Text:      "send money",
		Class:     "btn send",
		TestID:    "send-btn",
		Tag:       "button",
		AriaRole:  "button",
		InputType: "submit",
	}, f)

	assert.Equal(t, "button.send", Classify(el).Name)
}

func TestCustomRules(t *testing.T) {
	c := New([]Rule{{
		Name:       "link.help",
		Confidence: 0.5,
		Match:      func(f Features) bool { return f.Tag == "a" && f.Text == "help" },
	}})
	assert.Equal(t, "link.help", c.Classify(Features{Tag: "a", Text: "help"}).Name)
	assert.Equal(t, Fallback, c.Classify(Features{Tag: "button"}))
}

// FuzzClassify checks that classification is total, pure and bounded.
func FuzzClassify(f *testing.F) {
	f.Add([]byte("send $10.00"))
	f.Add([]byte(hexAddr))
	f.Fuzz(func(t *testing.T, data []byte) {
		var feats Features
		if err := fuzz.NewConsumer(data).GenerateStruct(&feats); err != nil {
			return
		}
		c := New(nil)
		first := c.Classify(feats)
		second := c.Classify(feats)

		require.Equal(t, first, second)
		require.NotEmpty(t, first.Name)
		require.GreaterOrEqual(t, first.Confidence, 0.0)
		require.LessOrEqual(t, first.Confidence, 1.0)
	})
}
