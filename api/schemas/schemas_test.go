package schemas_test

import (
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uilink/api/schemas"
)

func TestRectEmpty(t *testing.T) {
	assert.True(t, schemas.Rect{}.Empty())
	assert.True(t, schemas.Rect{X: 5, Y: 5, Width: 10}.Empty())
	assert.True(t, schemas.Rect{Height: 10}.Empty())
	assert.False(t, schemas.Rect{Width: 1, Height: 1}.Empty())
}

func TestApplyThemePatch(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    schemas.ThemePatch
	}{
		{
			name:    "top level",
			payload: `{"type":"applyTheme","cssVars":{"--accent":"#0af"}}`,
			want:    schemas.ThemePatch{CSSVars: map[string]string{"--accent": "#0af"}},
		},
		{
			name:    "nested alias",
			payload: `{"type":"applyTheme","theme":{"elements":[{"selector":"#a","style":{"color":"red"}}]}}`,
			want: schemas.ThemePatch{Elements: []schemas.ElementStyle{
				{Selector: "#a", Style: map[string]string{"color": "red"}},
			}},
		},
		{
			name:    "top level wins over alias",
			payload: `{"type":"applyTheme","cssVars":{"--a":"1"},"theme":{"cssVars":{"--b":"2"}}}`,
			want:    schemas.ThemePatch{CSSVars: map[string]string{"--a": "1"}},
		},
		{
			name:    "empty",
			payload: `{"type":"applyTheme"}`,
			want:    schemas.ThemePatch{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg schemas.ApplyTheme
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &msg))
			got := msg.Patch()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.IsEmpty(), got.IsEmpty())
		})
	}
}

func TestStyleMapCoercesScalars(t *testing.T) {
	payload := `{"type":"applyTheme","cssVars":{"--gap":8},
		"elements":[{"selector":"#a","style":{"opacity":0.5,"fontWeight":600,"color":"red","hidden":true,"margin":null}}]}`
	var msg schemas.ApplyTheme
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))

	patch := msg.Patch()
	assert.Equal(t, schemas.StyleMap{"--gap": "8"}, patch.CSSVars)
	require.Len(t, patch.Elements, 1)
	assert.Equal(t, schemas.StyleMap{
		"opacity":    "0.5",
		"fontWeight": "600",
		"color":      "red",
		"hidden":     "true",
		"margin":     "",
	}, patch.Elements[0].Style)
}

func TestStyleMapRejectsNestedValues(t *testing.T) {
	var msg schemas.ApplyTheme
	err := json.Unmarshal([]byte(`{"elements":[{"selector":"#a","style":{"color":{"r":1}}}]}`), &msg)
	assert.ErrorContains(t, err, `"color"`)

	var m schemas.StyleMap
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Nil(t, m)
}

func TestWireFieldNames(t *testing.T) {
	hello, err := json.Marshal(schemas.Hello{Type: schemas.MsgHello, Source: "wallet", Timestamp: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hello","source":"wallet","timestamp":7}`, string(hello), "walletType omitted unless set")

	ack, err := json.Marshal(schemas.ApplyAck{Type: schemas.MsgApplyAck, ApplyResult: schemas.ApplyResult{Success: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"applyAck","success":true}`, string(ack))

	absent := (*string)(nil)
	id := "send"
	rec, err := json.Marshal(schemas.ElementRecord{
		Role:       "button.send",
		Attributes: map[string]*string{"id": &id, "type": absent},
	})
	require.NoError(t, err)
	assert.Contains(t, string(rec), `"attributes":{`)
	assert.Contains(t, string(rec), `"type":null`)
	assert.Contains(t, string(rec), `"id":"send"`)
}
