package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{
		"b": 1.0,
		"a": []any{"x", map[string]any{"z": true, "y": nil}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",{"y":null,"z":true}],"b":1}`, out)
}

func TestHashSchemaIgnoresKeyOrder(t *testing.T) {
	first, err := HashSchema(map[string]any{
		"title": "Tutorial",
		"properties": map[string]any{
			"difficulty": map[string]any{"type": "string"},
			"author":     map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	second, err := HashSchema(map[string]any{
		"properties": map[string]any{
			"author":     map[string]any{"type": "string"},
			"difficulty": map[string]any{"type": "string"},
		},
		"title": "Tutorial",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHashSchemaChangesWithContent(t *testing.T) {
	first, err := HashSchema(map[string]any{"title": "A"})
	require.NoError(t, err)
	second, err := HashSchema(map[string]any{"title": "B"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
