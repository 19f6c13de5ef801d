package jsonrepair

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FencedTrailingCommas(t *testing.T) {
	got, err := Decode("```json\n{\"a\":1,\"b\":[1,2,],}\n```")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": float64(1),
		"b": []any{float64(1), float64(2)},
	}, got)
}

func TestDecode_Repairs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{
			name:  "plain object",
			input: `{"overview": "x"}`,
			want:  map[string]any{"overview": "x"},
		},
		{
			name:  "uppercase fence tag with long fence",
			input: "````JSON\n{\"a\": true}\n````",
			want:  map[string]any{"a": true},
		},
		{
			name:  "surrounding prose",
			input: "Here is the analysis: {\"a\": {\"b\": 1}} Let me know.",
			want:  map[string]any{"a": map[string]any{"b": float64(1)}},
		},
		{
			name:  "repeated commas",
			input: `{"a": 1,, "b": 2}`,
			want:  map[string]any{"a": float64(1), "b": float64(2)},
		},
		{
			name:  "repeated commas exposing trailing comma",
			input: `{"a": [1, 2,,]}`,
			want:  map[string]any{"a": []any{float64(1), float64(2)}},
		},
		{
			name:  "bare keys",
			input: `{name: "prd", count: 2}`,
			want:  map[string]any{"name": "prd", "count": float64(2)},
		},
		{
			name:  "colon phrase inside value is preserved",
			input: `{"note": "fast, cost: low",}`,
			want:  map[string]any{"note": "fast, cost: low"},
		},
		{
			name:  "brace inside string recovered by relaxed pass",
			input: `{"a": "}", "b": 2}`,
			want:  map[string]any{"a": "}", "b": float64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_NoBraces(t *testing.T) {
	_, err := Decode("I could not produce a document for this idea.")
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrBoundariesNotFound))

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, decodeErr.Raw, "could not produce")
}

func TestDecode_Unbalanced(t *testing.T) {
	_, err := Decode(`{"a": {"b": 1}`)
	assert.ErrorIs(t, err, ErrBoundariesNotFound)
}

func TestDecode_UnparseableKeepsDiagnostics(t *testing.T) {
	input := "{" + strings.Repeat("x", 800) + "}"

	_, err := Decode(input)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Len(t, decodeErr.Raw, 500)
	assert.Len(t, decodeErr.Cleaned, 500)
	assert.NotErrorIs(t, err, ErrBoundariesNotFound)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestDecodeInto(t *testing.T) {
	var out struct {
		Overview string   `json:"overview"`
		Tags     []string `json:"tags"`
	}
	err := DecodeInto("```\n{\"overview\": \"o\", \"tags\": [\"a\",],}\n```", &out)
	require.NoError(t, err)

	assert.Equal(t, "o", out.Overview)
	assert.Equal(t, []string{"a"}, out.Tags)
}

func TestRepair(t *testing.T) {
	assert.Equal(t, `{"a":1,"b":2}`, Repair(`{a:1,,b:2,}`))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```Json\n{\"a\":1}\n```"))
}
