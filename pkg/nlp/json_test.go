package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json",
			input:    `{"intent": "summary"}`,
			expected: `{"intent": "summary"}`,
		},
		{
			name:     "json code block",
			input:    "Here you go:\n```json\n{\"intent\": \"summary\"}\n```\nDone.",
			expected: `{"intent": "summary"}`,
		},
		{
			name:     "bare code block",
			input:    "```\n{\"intent\": \"summary\"}\n```",
			expected: `{"intent": "summary"}`,
		},
		{
			name:     "surrounding prose",
			input:    `The answer is {"intent": "summary"} as requested.`,
			expected: `{"intent": "summary"}`,
		},
		{
			name:     "think tags stripped",
			input:    "<think>reasoning here</think>{\"intent\": \"summary\"}",
			expected: `{"intent": "summary"}`,
		},
		{
			name:     "json array",
			input:    `Entities: ["Luo Xinghan", "Khun Sa"]`,
			expected: `["Luo Xinghan", "Khun Sa"]`,
		},
		{
			name:     "no json at all",
			input:    "I cannot answer that.",
			expected: "I cannot answer that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONFromResponse(tt.input))
		})
	}
}

func TestUnmarshalResponseRepairsMalformedJSON(t *testing.T) {
	var out struct {
		Intent     string   `json:"intent"`
		Entities   []string `json:"entities"`
		Confidence float64  `json:"confidence"`
	}

	// Trailing comma and single quotes, as some models emit.
	raw := "```json\n{'intent': 'search_entity', 'entities': ['Luo Xinghan'], 'confidence': 0.9,}\n```"
	require.NoError(t, UnmarshalResponse(raw, &out))
	assert.Equal(t, "search_entity", out.Intent)
	assert.Equal(t, []string{"Luo Xinghan"}, out.Entities)
	assert.Equal(t, 0.9, out.Confidence)
}

func TestUnmarshalResponseRejectsGarbage(t *testing.T) {
	var out map[string]any
	err := UnmarshalResponse("total nonsense, no braces", &out)
	assert.Error(t, err)
}
