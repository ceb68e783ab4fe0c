// Package theme applies remotely supplied style patches to a Document.
package theme

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
)

// Applicator applies ThemePatches to one document.
type Applicator struct {
	doc    schemas.Document
	logger *zap.Logger
}

// New returns an Applicator bound to doc.
func New(doc schemas.Document, logger *zap.Logger) *Applicator {
	return &Applicator{doc: doc, logger: logger.Named("theme")}
}

// Apply sets every custom property on the root, then merges each element
// style into the first element its selector matches. Unmatched selectors are
// skipped. Apply never panics; any failure is reported in the result.
func (a *Applicator) Apply(ctx context.Context, patch schemas.ThemePatch) (result schemas.ApplyResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered from panic while applying theme.", zap.Any("panic", r))
			result = schemas.ApplyResult{Success: false, Error: fmt.Sprintf("%v", r)}
		}
	}()

	if err := a.apply(ctx, patch); err != nil {
		a.logger.Warn("Theme patch failed.", zap.Error(err))
		return schemas.ApplyResult{Success: false, Error: err.Error()}
	}
	return schemas.ApplyResult{Success: true}
}

func (a *Applicator) apply(ctx context.Context, patch schemas.ThemePatch) error {
	names := make([]string, 0, len(patch.CSSVars))
	for name := range patch.CSSVars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := a.doc.SetRootProperty(ctx, name, patch.CSSVars[name]); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}

	applied := 0
	for _, es := range patch.Elements {
		if len(es.Style) == 0 {
			continue
		}
		matched, err := a.doc.MergeInlineStyle(ctx, es.Selector, es.Style)
		if err != nil {
			return fmt.Errorf("styling %q: %w", es.Selector, err)
		}
		if !matched {
			a.logger.Debug("Selector matched nothing; skipping.", zap.String("selector", es.Selector))
			continue
		}
		applied++
	}

	a.logger.Info("Theme applied.",
		zap.Int("css_vars", len(names)),
		zap.Int("elements", applied))
	return nil
}
