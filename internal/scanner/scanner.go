// Package scanner builds the UI map: one record per visible interactive
// element, in document order. Every call is a full rescan.
package scanner

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/classifier"
	"github.com/xkilldash9x/uilink/internal/selector"
)

// DefaultTextLimit is the number of characters of text kept per element.
const DefaultTextLimit = 50

// CandidateQuery is the selector list every Document backend evaluates to
// find candidates.
const CandidateQuery = `button, [role="button"], a[href], input, [class*="button"], [class*="btn"], [data-testid]`

// StyleProperties maps each captured style key to the CSS property it reads.
var StyleProperties = []struct{ Key, Property string }{
	{"backgroundColor", "background-color"},
	{"color", "color"},
	{"borderRadius", "border-radius"},
	{"fontSize", "font-size"},
	{"fontWeight", "font-weight"},
	{"padding", "padding"},
	{"margin", "margin"},
}

// Attributes is the whitelist of attributes copied into each record.
var Attributes = []string{"class", "id", "type", selector.TestIDAttr}

// Scanner enumerates and describes the interactive surface of a Document.
type Scanner struct {
	doc        schemas.Document
	classifier *classifier.Classifier
	textLimit  int
	logger     *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTextLimit overrides DefaultTextLimit.
func WithTextLimit(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.textLimit = n
		}
	}
}

// WithClassifier replaces the default rule chain.
func WithClassifier(c *classifier.Classifier) Option {
	return func(s *Scanner) { s.classifier = c }
}

// New creates a Scanner over doc.
func New(doc schemas.Document, logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		doc:        doc,
		classifier: classifier.New(nil),
		textLimit:  DefaultTextLimit,
		logger:     logger.Named("scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns a record for every candidate with a non-empty box.
func (s *Scanner) Scan(ctx context.Context) ([]schemas.ElementRecord, error) {
	candidates, err := s.doc.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}

	records := make([]schemas.ElementRecord, 0, len(candidates))
	skipped := 0
	for _, el := range candidates {
		rect := el.BoundingRect()
		if rect.Empty() {
			skipped++
			continue
		}
		records = append(records, s.describe(el, rect))
	}

	s.logger.Debug("Scan complete.",
		zap.Int("candidates", len(candidates)),
		zap.Int("records", len(records)),
		zap.Int("hidden", skipped))
	return records, nil
}

// Map scans and wraps the result with page metadata.
func (s *Scanner) Map(ctx context.Context, now int64) (schemas.UIMap, error) {
	elements, err := s.Scan(ctx)
	if err != nil {
		return schemas.UIMap{}, err
	}
	return schemas.UIMap{
		Elements: elements,
		Meta: schemas.UIMapMeta{
			URL:       s.doc.URL(),
			Timestamp: now,
			Viewport:  s.doc.Viewport(),
		},
	}, nil
}

func (s *Scanner) describe(el schemas.Element, rect schemas.Rect) schemas.ElementRecord {
	role := s.classifier.ClassifyElement(el)

	styles := make(map[string]string, len(StyleProperties))
	for _, p := range StyleProperties {
		styles[p.Key] = el.ComputedStyle(p.Property)
	}

	attrs := make(map[string]*string, len(Attributes))
	for _, name := range Attributes {
		if v, ok := el.Attr(name); ok {
			v := v
			attrs[name] = &v
		} else {
			attrs[name] = nil
		}
	}

	return schemas.ElementRecord{
		Role:       role.Name,
		Confidence: role.Confidence,
		Selector:   selector.Synthesize(el),
		Text:       Truncate(strings.TrimSpace(el.Text()), s.textLimit),
		Rect:       rect,
		Styles:     styles,
		Attributes: attrs,
	}
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
