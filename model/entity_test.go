package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityJSONRoundTripKeepsUnknownFields(t *testing.T) {
	e := NewEntity("Category:OSWaaaa")
	e.Label = []Label{{Text: "Sample", Lang: "en"}}
	e.Set("difficulty", "easy")
	e.Set("steps", []any{"one", "two"})

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var back Entity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.UUID, back.UUID)
	assert.Equal(t, e.Type, back.Type)
	assert.Equal(t, "Sample", back.PreferredLabel())

	v, ok := back.Get("difficulty")
	require.True(t, ok)
	assert.Equal(t, "easy", v)
	v, ok = back.Get("steps")
	require.True(t, ok)
	assert.Equal(t, []any{"one", "two"}, v)
}

func TestEntityMarshalOmitsNilFields(t *testing.T) {
	e := NewEntity("Category:OSWaaaa")
	e.Set("empty", nil)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "empty")
}

func TestEntityUnmarshalRejectsBadUUID(t *testing.T) {
	var e Entity
	err := json.Unmarshal([]byte(`{"uuid": "not-a-uuid", "type": ["Category:X"]}`), &e)
	assert.Error(t, err)
}

func TestEntityValidate(t *testing.T) {
	e := NewEntity("Category:OSWaaaa")
	assert.NoError(t, e.Validate())

	assert.Error(t, (&Entity{Type: []string{"Category:X"}}).Validate())
	assert.Error(t, (&Entity{UUID: uuid.New()}).Validate())
}

func TestEntityCloneIsIndependent(t *testing.T) {
	e := NewEntity("Category:OSWaaaa")
	e.Set("nested", map[string]any{"k": "v"})

	clone := e.Clone()
	clone.Set("nested", map[string]any{"k": "changed"})
	clone.Type = append(clone.Type, "Category:OSWbbbb")

	v, _ := e.Get("nested")
	assert.Equal(t, map[string]any{"k": "v"}, v)
	assert.Len(t, e.Type, 1)
}

func TestClassTargetNamespace(t *testing.T) {
	cases := map[ClassKind]string{
		KindItem:     "Item",
		KindCategory: "Category",
		KindProperty: "Property",
		KindFile:     "File",
	}
	for kind, want := range cases {
		cls := &Class{Kind: kind}
		assert.Equal(t, want, cls.TargetNamespace())
	}
}

func TestClassInstantiateDefaultsType(t *testing.T) {
	cls := &Class{Name: "Tutorial", CategoryTitle: "Category:OSWaaaa"}
	e, err := cls.Instantiate(map[string]any{
		"uuid":  "2ea5b605-c91f-4e5a-9559-3dff79fdd4a5",
		"label": []any{map[string]any{"text": "T"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Category:OSWaaaa"}, e.Type)
	assert.Equal(t, "T", e.PreferredLabel())
}

func TestClassInstantiateRejectsMissingUUID(t *testing.T) {
	cls := &Class{Name: "Tutorial", CategoryTitle: "Category:OSWaaaa"}
	_, err := cls.Instantiate(map[string]any{"label": []any{}})
	assert.Error(t, err)
}
