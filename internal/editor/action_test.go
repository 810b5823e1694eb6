package editor

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	action, err := DecodeAction([]byte(`{"type":"ADD_ELEMENT","payload":{
		"containerId":"__body",
		"index":2,
		"elementDetails":{"id":"t1","name":"Text","type":"text","styles":{},"content":{"innerText":"hi"}}
	}}`))
	require.NoError(t, err)
	add, ok := action.(AddElement)
	require.True(t, ok)
	assert.Equal(t, "__body", add.ContainerID)
	require.NotNil(t, add.Index)
	assert.Equal(t, 2, *add.Index)
	assert.Equal(t, "hi", add.Element.Content.InnerText)

	action, err = DecodeAction([]byte(`{"type":"UNDO"}`))
	require.NoError(t, err)
	assert.Equal(t, Undo{}, action)

	action, err = DecodeAction([]byte(`{"type":"TOGGLE_LIVE_MODE","payload":{"value":true}}`))
	require.NoError(t, err)
	live := action.(ToggleLiveMode)
	require.NotNil(t, live.Value)
	assert.True(t, *live.Value)
}

func TestDecodeActionRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"not json":          `nope`,
		"unknown type":      `{"type":"EXPLODE","payload":{}}`,
		"missing type":      `{"payload":{}}`,
		"unknown field":     `{"type":"DELETE_ELEMENT","payload":{"elementId":"a","force":true}}`,
		"missing element":   `{"type":"DELETE_ELEMENT","payload":{}}`,
		"bad device":        `{"type":"CHANGE_DEVICE","payload":{"device":"Watch"}}`,
		"root insert":       `{"type":"ADD_ELEMENT","payload":{"containerId":"__body","elementDetails":{"id":"b","type":"__body","content":[]}}}`,
		"move without dest": `{"type":"MOVE_ELEMENT","payload":{"elementId":"a","index":0}}`,
		"wrong field type":  `{"type":"MOVE_ELEMENT","payload":{"elementId":"a","containerId":"b","index":"first"}}`,
		"load without tree": `{"type":"LOAD_DATA","payload":{"withLive":true}}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAction([]byte(input))
			require.ErrorIs(t, err, ErrMalformedAction)
		})
	}
}

func TestEncodeActionRoundTrip(t *testing.T) {
	label := "Heading"
	original := UpdateElement{ElementID: "t1", Label: &label, Styles: map[string]any{"color": "red"}}

	payload, err := EncodeAction(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"UPDATE_ELEMENT","payload":{"elementId":"t1","name":"Heading","styles":{"color":"red"}}}`, string(payload))

	decoded, err := DecodeAction(payload)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestActionClassification(t *testing.T) {
	assert.True(t, IsTreeMutation(ActionMoveElement))
	assert.False(t, IsTreeMutation(ActionChangeDevice))
	assert.True(t, IsViewChange(ActionTogglePreview))
	assert.False(t, IsViewChange(ActionLoadData))
	assert.False(t, IsViewChange(ActionUndo))
}

func nestedContainers(depth int) string {
	var b strings.Builder
	for i := 0; i < depth; i++ {
		b.WriteString(`{"id":"c`)
		b.WriteString(strconv.Itoa(i))
		b.WriteString(`","type":"container","content":[`)
	}
	b.WriteString(`{"id":"leaf","type":"text","content":{"innerText":"deep"}}`)
	for i := 0; i < depth; i++ {
		b.WriteString(`]}`)
	}
	return b.String()
}

func TestDecodeActionRejectsExcessiveNesting(t *testing.T) {
	payload := `{"type":"ADD_ELEMENT","payload":{"containerId":"__body","elementDetails":` + nestedContainers(4000) + `}}`
	_, err := DecodeAction([]byte(payload))
	require.ErrorIs(t, err, ErrMalformedAction)
	assert.Contains(t, err.Error(), "nesting deeper than")

	payload = `{"type":"ADD_ELEMENT","payload":{"containerId":"__body","elementDetails":` + nestedContainers(20) + `}}`
	action, err := DecodeAction([]byte(payload))
	require.NoError(t, err)
	add := action.(AddElement)
	assert.Equal(t, KindContainer, add.Element.Kind)
	require.Len(t, add.Element.Children, 1)
}

func TestDecodeActionRejectsMistypedElementFields(t *testing.T) {
	cases := map[string]string{
		"numeric id":    `{"id":7,"type":"text","content":{}}`,
		"list styles":   `{"id":"a","type":"text","styles":[],"content":{}}`,
		"numeric text":  `{"id":"a","type":"text","content":{"innerText":3}}`,
		"child literal": `{"id":"a","type":"container","content":["b"]}`,
	}
	for name, element := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAction([]byte(`{"type":"ADD_ELEMENT","payload":{"containerId":"__body","elementDetails":` + element + `}}`))
			require.ErrorIs(t, err, ErrMalformedAction)
		})
	}
}
