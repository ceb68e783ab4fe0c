package scanner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/mocks"
)

func strPtr(s string) *string { return &s }

func TestScan(t *testing.T) {
	ctx := context.Background()

	send := mocks.NewElement("button", map[string]string{"id": "send", "class": "btn primary"}).WithText("  Send  ")
	send.Box = schemas.Rect{X: 10, Y: 20, Width: 120, Height: 44}
	send.Styles = map[string]string{
		"background-color": "rgb(0, 0, 255)",
		"color":            "rgb(255, 255, 255)",
		"border-radius":    "8px",
		"font-size":        "16px",
		"font-weight":      "700",
		"padding":          "8px 16px",
		"margin":           "0px",
		"display":          "block",
	}
	hidden := mocks.NewElement("button", map[string]string{"class": "btn"}).WithText("Hidden")
	hidden.Box = schemas.Rect{X: 0, Y: 0, Width: 0, Height: 30}
	collapsed := mocks.NewElement("a", map[string]string{"href": "#"}).WithText("Collapsed")
	collapsed.Box = schemas.Rect{Width: 30, Height: 0}
	email := mocks.NewElement("input", map[string]string{"type": "email", "data-testid": "email"})

	doc := &mocks.MockDocument{}
	doc.On("Candidates", mock.Anything).Return([]schemas.Element{send, hidden, collapsed, email}, nil)

	records, err := New(doc, zaptest.NewLogger(t)).Scan(ctx)
	require.NoError(t, err)

	want := []schemas.ElementRecord{
		{
			Role:       "button.send",
			Confidence: 0.85,
			Selector:   "#send",
			Text:       "Send",
			Rect:       schemas.Rect{X: 10, Y: 20, Width: 120, Height: 44},
			Styles: map[string]string{
				"backgroundColor": "rgb(0, 0, 255)",
				"color":           "rgb(255, 255, 255)",
				"borderRadius":    "8px",
				"fontSize":        "16px",
				"fontWeight":      "700",
				"padding":         "8px 16px",
				"margin":          "0px",
			},
			Attributes: map[string]*string{
				"class":       strPtr("btn primary"),
				"id":          strPtr("send"),
				"type":        nil,
				"data-testid": nil,
			},
		},
		{
			Role:       "input.email",
			Confidence: 0.75,
			Selector:   `[data-testid="email"]`,
			Text:       "",
			Rect:       schemas.Rect{Width: 100, Height: 40},
			Styles: map[string]string{
				"backgroundColor": "", "color": "", "borderRadius": "",
				"fontSize": "", "fontWeight": "", "padding": "", "margin": "",
			},
			Attributes: map[string]*string{
				"class":       nil,
				"id":          nil,
				"type":        strPtr("email"),
				"data-testid": strPtr("email"),
			},
		},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
	doc.AssertExpectations(t)
}

func TestScanNeverIncludesEmptyBoxes(t *testing.T) {
	var els []schemas.Element
	for i := 0; i < 20; i++ {
		el := mocks.NewElement("button", nil)
		el.Box = schemas.Rect{Width: float64(i % 3), Height: float64(i % 4)}
		els = append(els, el)
	}
	doc := &mocks.MockDocument{}
	doc.On("Candidates", mock.Anything).Return(els, nil)

	records, err := New(doc, zaptest.NewLogger(t)).Scan(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, r := range records {
		assert.False(t, r.Rect.Empty())
	}
}

func TestScanTruncatesText(t *testing.T) {
	long := strings.Repeat("é", 80)
	doc := &mocks.MockDocument{}
	doc.On("Candidates", mock.Anything).Return([]schemas.Element{
		mocks.NewElement("button", nil).WithText(long),
	}, nil)

	t.Run("default limit", func(t *testing.T) {
		records, err := New(doc, zaptest.NewLogger(t)).Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, strings.Repeat("é", DefaultTextLimit), records[0].Text)
	})

	t.Run("configured limit", func(t *testing.T) {
		records, err := New(doc, zaptest.NewLogger(t), WithTextLimit(5)).Scan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("é", 5), records[0].Text)
	})
}

func TestScanPropagatesQueryError(t *testing.T) {
	doc := &mocks.MockDocument{}
	doc.On("Candidates", mock.Anything).Return(nil, errors.New("target closed"))

	_, err := New(doc, zaptest.NewLogger(t)).Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed")
}

func TestMap(t *testing.T) {
	doc := &mocks.MockDocument{}
	doc.On("Candidates", mock.Anything).Return([]schemas.Element{}, nil)
	doc.On("URL").Return("https://wallet.example/")
	doc.On("Viewport").Return(schemas.Viewport{Width: 390, Height: 844})

	m, err := New(doc, zaptest.NewLogger(t)).Map(context.Background(), 1700000000000)
	require.NoError(t, err)
	assert.Empty(t, m.Elements)
	assert.NotNil(t, m.Elements)
	assert.Equal(t, schemas.UIMapMeta{
		URL:       "https://wallet.example/",
		Timestamp: 1700000000000,
		Viewport:  schemas.Viewport{Width: 390, Height: 844},
	}, m.Meta)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("", 2))
}
