// Package css parses stylesheets and inline style attributes for the static
// document backend and runs a small cascade over x/net/html trees.
// Selectors are parsed and matched with cascadia.
package css

import (
	"sort"
	"strings"
	"unicode"

	"github.com/andybalholm/cascadia"
)

// Declaration is a single property/value pair.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Rule applies declarations to every element matching one of Selectors.
type Rule struct {
	Selectors    []cascadia.Sel
	Declarations []Declaration
}

// StyleSheet is an ordered list of rules.
type StyleSheet struct {
	Rules []Rule
}

// ParseSelectorList parses a comma-separated selector list one selector at a
// time. Selectors cascadia cannot parse, such as interaction pseudo-classes
// a static tree never satisfies, are dropped and the rest are kept.
func ParseSelectorList(src string) []cascadia.Sel {
	p := &parser{input: src}
	var sels []cascadia.Sel
	for !p.eof() {
		part := strings.TrimSpace(p.readUntil(','))
		if !p.eof() {
			p.pos++
		}
		if part == "" {
			continue
		}
		if sel, err := cascadia.Parse(part); err == nil {
			sels = append(sels, sel)
		}
	}
	return sels
}

// ParseStyleSheet parses a stylesheet leniently. At-rules are skipped, as
// are rules none of whose selectors parse.
func ParseStyleSheet(src string) StyleSheet {
	p := &parser{input: stripComments(src)}
	var sheet StyleSheet
	for {
		p.skipSpace()
		if p.eof() {
			return sheet
		}
		if p.peek() == '@' {
			p.skipAtRule()
			continue
		}

		prelude := p.readUntil('{')
		if p.eof() {
			return sheet
		}
		p.pos++ // '{'
		body := p.readBlockBody()

		sels := ParseSelectorList(prelude)
		if len(sels) == 0 {
			continue
		}
		sheet.Rules = append(sheet.Rules, Rule{Selectors: sels, Declarations: ParseInline(body)})
	}
}

// ParseInline parses a declaration list such as a style attribute.
// Malformed declarations are dropped.
func ParseInline(src string) []Declaration {
	p := &parser{input: stripComments(src)}
	var decls []Declaration
	for {
		p.skipSpace()
		for !p.eof() && p.peek() == ';' {
			p.pos++
			p.skipSpace()
		}
		if p.eof() {
			return decls
		}
		raw := p.readUntil(';')
		if !p.eof() {
			p.pos++
		}
		if d, ok := parseDeclaration(raw); ok {
			decls = append(decls, d)
		}
	}
}

func parseDeclaration(raw string) (Declaration, bool) {
	colon := strings.IndexByte(raw, ':')
	if colon <= 0 {
		return Declaration{}, false
	}
	prop := strings.TrimSpace(raw[:colon])
	value := strings.TrimSpace(raw[colon+1:])
	if prop == "" || value == "" {
		return Declaration{}, false
	}
	if !strings.HasPrefix(prop, "--") {
		prop = strings.ToLower(prop)
	}

	d := Declaration{Property: prop, Value: value}
	if i := strings.LastIndexByte(value, '!'); i >= 0 && strings.EqualFold(strings.TrimSpace(value[i+1:]), "important") {
		d.Important = true
		d.Value = strings.TrimSpace(value[:i])
	}
	return d, d.Value != ""
}

// SerializeInline renders declarations in the form browsers use for cssText.
func SerializeInline(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		v := d.Value
		if d.Important {
			v += " !important"
		}
		parts = append(parts, d.Property+": "+v+";")
	}
	return strings.Join(parts, " ")
}

// MergeInline applies updates to an existing style attribute. Existing
// properties keep their position; new ones are appended in key order.
// Keys may be camelCase (backgroundColor) or hyphenated.
func MergeInline(existing string, updates map[string]string) string {
	decls := ParseInline(existing)
	index := make(map[string]int, len(decls))
	for i, d := range decls {
		index[d.Property] = i
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		prop := PropertyName(k)
		value := strings.TrimSpace(updates[k])
		i, exists := index[prop]
		switch {
		case value == "" && exists:
			// An empty value removes the property, as with el.style.x = "".
			decls = append(decls[:i], decls[i+1:]...)
			for p, j := range index {
				if j > i {
					index[p] = j - 1
				}
			}
			delete(index, prop)
		case value == "":
		case exists:
			decls[i] = Declaration{Property: prop, Value: value}
		default:
			index[prop] = len(decls)
			decls = append(decls, Declaration{Property: prop, Value: value})
		}
	}
	return SerializeInline(decls)
}

// PropertyName converts a camelCase style key to its hyphenated CSS name.
// Hyphenated names and custom properties are returned unchanged.
func PropertyName(key string) string {
	if strings.HasPrefix(key, "--") || strings.ContainsRune(key, '-') {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool  { return p.pos >= len(p.input) }
func (p *parser) peek() byte { return p.input[p.pos] }

func (p *parser) skipSpace() bool {
	start := p.pos
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
	return p.pos > start
}

// readUntil returns the text up to the next stop byte outside quotes and
// brackets. The stop byte is not consumed.
func (p *parser) readUntil(stop byte) string {
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '"' || c == '\'':
			p.skipQuoted()
			continue
		case c == '\\':
			p.pos += 2
			continue
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == stop && depth == 0:
			return p.input[start:p.pos]
		}
		p.pos++
	}
	p.pos = len(p.input)
	return p.input[start:]
}

// readBlockBody consumes up to and including the '}' that closes the
// current block and returns its contents.
func (p *parser) readBlockBody() string {
	start := p.pos
	depth := 1
	for !p.eof() {
		switch c := p.peek(); c {
		case '"', '\'':
			p.skipQuoted()
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := p.input[start:p.pos]
				p.pos++
				return body
			}
		}
		p.pos++
	}
	return p.input[start:]
}

func (p *parser) skipQuoted() {
	quote := p.peek()
	p.pos++
	for !p.eof() {
		c := p.peek()
		p.pos++
		if c == '\\' {
			p.pos++
		} else if c == quote {
			return
		}
	}
	if p.pos > len(p.input) {
		p.pos = len(p.input)
	}
}

// skipAtRule skips a statement at-rule or an at-rule with a block.
func (p *parser) skipAtRule() {
	for !p.eof() {
		switch p.peek() {
		case ';':
			p.pos++
			return
		case '{':
			p.pos++
			p.readBlockBody()
			return
		case '"', '\'':
			p.skipQuoted()
			continue
		}
		p.pos++
	}
}

// stripComments removes /* */ comments outside of strings.
func stripComments(src string) string {
	if !strings.Contains(src, "/*") {
		return src
	}
	var b strings.Builder
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(src) {
				j++
			}
			if j > len(src) {
				j = len(src)
			}
			b.WriteString(src[i:j])
			i = j
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 4
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
