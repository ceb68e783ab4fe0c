// Package classifier infers a semantic role for untagged interactive elements
// from lexical and structural signals. Rules are evaluated in priority order
// and the first match wins; there is no scoring between rules.
package classifier

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/selector"
)

// Features are the normalized signals rules look at. All string fields are
// lowercase.
type Features struct {
	Text      string
	Class     string
	TestID    string
	Tag       string
	AriaRole  string
	InputType string
}

// FeaturesOf extracts Features from an element.
func FeaturesOf(el schemas.Element) Features {
	attr := func(name string) string {
		v, _ := el.Attr(name)
		return strings.ToLower(strings.TrimSpace(v))
	}
	return Features{
		Text:      strings.ToLower(strings.TrimSpace(el.Text())),
		Class:     strings.ToLower(attrRaw(el, "class")),
		TestID:    attr(selector.TestIDAttr),
		Tag:       strings.ToLower(el.TagName()),
		AriaRole:  attr("role"),
		InputType: attr("type"),
	}
}

func attrRaw(el schemas.Element, name string) string {
	v, _ := el.Attr(name)
	return v
}

// Rule maps a predicate to a role. Label, when set, computes the role name
// from the features and takes precedence over Name.
type Rule struct {
	Name       string
	Confidence float64
	Match      func(Features) bool
	Label      func(Features) string
}

func (r Rule) role(f Features) schemas.Role {
	name := r.Name
	if r.Label != nil {
		name = r.Label(f)
	}
	return schemas.Role{Name: name, Confidence: r.Confidence}
}

// Fallback is returned when no rule matches.
var Fallback = schemas.Role{Name: schemas.RoleUnknown, Confidence: 0.30}

var (
	currencyPattern = regexp.MustCompile(`\$?\d+\.\d{2}`)
	addressPattern  = regexp.MustCompile(`0x[0-9a-f]{40}`)
)

// anyContains reports whether any of fields contains substr.
func anyContains(substr string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}

// DefaultRules is the built-in rule chain, highest priority first.
var DefaultRules = []Rule{
	{
		Name: "display.balance", Confidence: 0.90,
		Match: func(f Features) bool {
			return currencyPattern.MatchString(f.Text) || anyContains("balance", f.Class, f.TestID)
		},
	},
	{
		Name: "display.address", Confidence: 0.95,
		Match: func(f Features) bool {
			return addressPattern.MatchString(f.Text) || anyContains("address", f.Class, f.TestID)
		},
	},
	{
		Name: "button.send", Confidence: 0.85,
		Match: func(f Features) bool { return anyContains("send", f.Text, f.Class, f.TestID) },
	},
	{
		Name: "button.receive", Confidence: 0.85,
		Match: func(f Features) bool {
			return anyContains("receive", f.Text, f.Class) || strings.Contains(f.Text, "deposit")
		},
	},
	{
		Name: "button.buy", Confidence: 0.85,
		Match: func(f Features) bool { return anyContains("buy", f.Text, f.Class, f.TestID) },
	},
	{
		Name: "button.swap", Confidence: 0.85,
		Match: func(f Features) bool { return anyContains("swap", f.Text, f.Class, f.TestID) },
	},
	{
		Name: "button.account", Confidence: 0.80,
		Match: func(f Features) bool {
			return anyContains("account", f.Class, f.TestID) ||
				(f.Tag == "button" && strings.Contains(f.Text, "account"))
		},
	},
	{
		Name: "button.generic", Confidence: 0.60,
		Match: func(f Features) bool { return f.Tag == "button" || f.AriaRole == "button" },
	},
	{
		Name: "input.text", Confidence: 0.75,
		Match: func(f Features) bool { return f.Tag == "input" },
		Label: func(f Features) string {
			if f.InputType == "" {
				return "input.text"
			}
			return "input." + f.InputType
		},
	},
}

// Classifier evaluates an ordered rule chain.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier over rules. A nil slice selects DefaultRules.
func New(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the role of the first matching rule, or Fallback.
func (c *Classifier) Classify(f Features) schemas.Role {
	for _, r := range c.rules {
		if r.Match(f) {
			return r.role(f)
		}
	}
	return Fallback
}

// ClassifyElement is Classify(FeaturesOf(el)).
func (c *Classifier) ClassifyElement(el schemas.Element) schemas.Role {
	return c.Classify(FeaturesOf(el))
}

// Classify runs the default rule chain.
func Classify(el schemas.Element) schemas.Role {
	return defaultClassifier.ClassifyElement(el)
}

var defaultClassifier = New(nil)
