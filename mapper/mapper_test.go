package mapper

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenSemanticLab/osw-go/model"
)

const itemCategory = "Category:OSW0e084decca6f4d8aa0a4a5bd117d77e8"

func testNamespace(t *testing.T) *model.Namespace {
	t.Helper()
	ns := model.NewNamespace()
	ns.Install(&model.Class{
		Name:          "Item",
		CategoryTitle: itemCategory,
		Hash:          "h-item",
		Kind:          model.KindItem,
	})
	ns.Install(&model.Class{
		Name:          "WikiFile",
		CategoryTitle: "Category:OSW11a53cdfbdc24524bf8ac435cbf65d9d",
		Hash:          "h-file",
		Kind:          model.KindFile,
	})
	ns.Install(&model.Class{
		Name:           "LabeledItem",
		CategoryTitle:  "Category:OSWffffffffffffffffffffffffffffffff",
		Hash:           "h-labeled",
		Kind:           model.KindItem,
		HeaderTemplate: `= {{#join label ", "}}{{text}}{{/join}} =`,
		FooterTemplate: `[[HasUuid::{{uuid}}]]`,
	})
	return ns
}

func TestTitleOfUsesOSWID(t *testing.T) {
	m := New(testNamespace(t))
	id := uuid.MustParse("2ea5b605-c91f-4e5a-9559-3dff79fdd4a5")
	e := &model.Entity{UUID: id, Type: []string{itemCategory}}

	assert.Equal(t, "OSW2ea5b605c91f4e5a95593dff79fdd4a5", m.TitleOf(e))
	assert.Equal(t, "Item:OSW2ea5b605c91f4e5a95593dff79fdd4a5", m.FullTitleOf(e))
}

func TestTitleOfMetaOverride(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity(itemCategory)
	e.Meta = &model.Meta{WikiPage: &model.WikiPage{Namespace: "Category", Title: "CustomTitle"}}

	assert.Equal(t, "Category:CustomTitle", m.FullTitleOf(e))
}

func TestTitleOfFileSuffix(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity("Category:OSW11a53cdfbdc24524bf8ac435cbf65d9d")
	e.Set("suffix", ".svg")

	assert.Equal(t, "File", m.NamespaceOf(e))
	title := m.TitleOf(e)
	assert.Contains(t, title, "OSW")
	assert.Contains(t, title, ".svg")

	// A bare suffix gets its dot.
	e.Set("suffix", "png")
	assert.Contains(t, m.TitleOf(e), ".png")
}

func TestNamespaceOfFallsBackToItem(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity("Category:OSW00000000000000000000000000000000")
	assert.Equal(t, "Item", m.NamespaceOf(e))
}

func TestToSlotsRendersTemplates(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity("Category:OSWffffffffffffffffffffffffffffffff")
	e.Label = []model.Label{{Text: "Alpha", Lang: "en"}, {Text: "Beta", Lang: "de"}}

	slots, err := m.ToSlots(e)
	require.NoError(t, err)
	assert.Equal(t, "= Alpha, Beta =", slots["header"])
	assert.Equal(t, "[[HasUuid::"+e.UUID.String()+"]]", slots["footer"])

	doc, ok := slots["jsondata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, e.UUID.String(), doc["uuid"])
}

func TestToSlotsDefaultInvocation(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity(itemCategory)

	slots, err := m.ToSlots(e)
	require.NoError(t, err)
	assert.Equal(t, "{{#invoke:Entity|header}}", slots["header"])
	assert.Equal(t, "{{#invoke:Entity|footer}}", slots["footer"])
}

func TestToSlotsOmitsNilFields(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity(itemCategory)
	e.Set("kept", "value")
	e.Set("dropped", nil)

	slots, err := m.ToSlots(e)
	require.NoError(t, err)
	doc := slots["jsondata"].(map[string]any)
	assert.Equal(t, "value", doc["kept"])
	_, present := doc["dropped"]
	assert.False(t, present)
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	m := New(testNamespace(t))
	e := model.NewEntity(itemCategory)
	e.Label = []model.Label{{Text: "Round", Lang: "en"}}
	e.Set("custom_field", "survives")
	e.Set("nested", map[string]any{"a": float64(1)})

	slots, err := m.ToSlots(e)
	require.NoError(t, err)

	back, err := m.FromSlots(slots)
	require.NoError(t, err)
	assert.Equal(t, e.UUID, back.UUID)
	assert.Equal(t, e.Type, back.Type)
	assert.Equal(t, "Round", back.PreferredLabel())
	v, _ := back.Get("custom_field")
	assert.Equal(t, "survives", v)
	nested, _ := back.Get("nested")
	assert.Equal(t, map[string]any{"a": float64(1)}, nested)
}

func TestFromSlotsRejectsMissingJsondata(t *testing.T) {
	m := New(testNamespace(t))

	_, err := m.FromSlots(map[string]any{"main": "wikitext only"})
	require.Error(t, err)

	_, err = m.FromSlots(map[string]any{"jsondata": "not an object"})
	require.Error(t, err)
}

func TestFromSlotsUnregisteredTypeStaysGeneric(t *testing.T) {
	m := New(testNamespace(t))
	id := uuid.New()
	slots := map[string]any{
		"jsondata": map[string]any{
			"uuid": id.String(),
			"type": []any{"Category:OSW99999999999999999999999999999999"},
		},
	}
	e, err := m.FromSlots(slots)
	require.NoError(t, err)
	assert.Equal(t, id, e.UUID)
}

func TestCastRetypes(t *testing.T) {
	ns := testNamespace(t)
	m := New(ns)
	target, ok := ns.Get("LabeledItem")
	require.True(t, ok)

	e := model.NewEntity(itemCategory)
	e.Label = []model.Label{{Text: "Original"}}
	e.Set("kept", "yes")
	e.Set("nil_field", nil)
	e.Set("empty_list", []any{})

	out, err := m.Cast(e, target, CastParam{
		Overrides:     map[string]any{"extra": "added"},
		NoneToDefault: true,
	})
	require.NoError(t, err)
	assert.Equal(t, e.UUID, out.UUID)
	assert.Equal(t, []string{target.CategoryTitle}, out.Type)
	v, _ := out.Get("kept")
	assert.Equal(t, "yes", v)
	v, _ = out.Get("extra")
	assert.Equal(t, "added", v)
	_, hasNil := out.Get("nil_field")
	assert.False(t, hasNil)
	_, hasEmpty := out.Get("empty_list")
	assert.False(t, hasEmpty)

	// The source entity is untouched.
	assert.Equal(t, []string{itemCategory}, e.Type)
}

func TestCastRejectsIdentityOverrides(t *testing.T) {
	ns := testNamespace(t)
	m := New(ns)
	target, _ := ns.Get("LabeledItem")
	e := model.NewEntity(itemCategory)

	_, err := m.Cast(e, target, CastParam{Overrides: map[string]any{"uuid": "x"}})
	require.Error(t, err)
	_, err = m.Cast(e, nil, CastParam{})
	require.Error(t, err)
}
