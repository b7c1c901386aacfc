package typeform

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		dataType string
		value    string
	}{
		{
			name:     "choice",
			input:    `{"field":{"id":"q1","type":"multiple_choice","ref":"r1"},"type":"choice","choice":{"label":"x"}}`,
			dataType: "choice",
			value:    `{"label":"x"}`,
		},
		{
			name:     "number",
			input:    `{"field":{"id":"q2","type":"rating"},"type":"number","number":5}`,
			dataType: "number",
			value:    `5`,
		},
		{
			name:     "value missing",
			input:    `{"field":{"id":"q3"},"type":"text"}`,
			dataType: "text",
			value:    ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			require.NoError(t, json.Unmarshal([]byte(tt.input), &a))
			assert.Equal(t, tt.dataType, a.DataType)
			assert.Equal(t, tt.value, string(a.Value))
		})
	}
}

func TestResponseItemHidden(t *testing.T) {
	var items []ResponseItem
	require.NoError(t, json.Unmarshal([]byte(`[
		{"token":"a","submitted_at":"2024-01-01T00:00:00Z","answers":[]},
		{"token":"b","submitted_at":"2024-01-01T00:00:01Z","hidden":{"utm":"x"}}
	]`), &items))

	require.Len(t, items, 2)
	assert.Empty(t, items[0].Hidden)
	assert.JSONEq(t, `{"utm":"x"}`, string(items[1].Hidden))
	assert.Nil(t, items[1].Answers)
}
