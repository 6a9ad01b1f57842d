package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

const (
	itemCategory     = "Category:OSW11111111111111111111111111111111"
	tutorialCategory = "Category:OSW22222222222222222222222222222222"
	articleCategory  = "Category:OSW33333333333333333333333333333333"
)

func schemaRef(title string) map[string]any {
	return map[string]any{"$ref": "/wiki/" + title + "?action=raw&slot=jsonschema"}
}

func seedSchema(t *testing.T, m *wiki.MemoryTransport, title string, doc map[string]any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	m.SeedPage(&wiki.PageData{
		FullTitle:     title,
		Slots:         map[string]string{"jsonschema": string(data)},
		ContentModels: map[string]string{"jsonschema": "json"},
	})
}

func seedBasePair(t *testing.T, m *wiki.MemoryTransport) {
	seedSchema(t, m, itemCategory, map[string]any{
		"title": "Item",
		"properties": map[string]any{
			"label": map[string]any{"type": "array"},
		},
		"required": []any{"uuid", "type"},
		"@context": map[string]any{
			"schema": "https://schema.org/",
			"label":  "schema:name",
		},
	})
	seedSchema(t, m, tutorialCategory, map[string]any{
		"title": "Tutorial",
		"allOf": []any{schemaRef(itemCategory)},
		"properties": map[string]any{
			"difficulty": map[string]any{"type": "string"},
		},
		"required": []any{"difficulty"},
		"@context": map[string]any{
			"difficulty": "schema:educationalLevel",
		},
	})
}

func TestFetchCompilesParentChain(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedBasePair(t, m)
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)

	require.NoError(t, r.Fetch(context.Background(), []string{tutorialCategory}, ModeReplace))

	// The referenced parent is fetched transitively.
	assert.True(t, ns.Has("Item"))

	cls, ok := ns.Get("Tutorial")
	require.True(t, ok)
	assert.Equal(t, tutorialCategory, cls.CategoryTitle)
	assert.Equal(t, []string{itemCategory}, cls.Parents)

	// Parent properties, required lists and @context fold in.
	assert.Contains(t, cls.Properties, "label")
	assert.Contains(t, cls.Properties, "difficulty")
	assert.True(t, cls.Properties["difficulty"].Required)
	assert.Equal(t, "schema:name", cls.Context["label"])
	assert.Equal(t, "schema:educationalLevel", cls.Context["difficulty"])
}

func TestFetchTerminatesOnReferenceCycle(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedSchema(t, m, itemCategory, map[string]any{
		"title":      "Item",
		"properties": map[string]any{"linked": schemaRef(tutorialCategory)},
	})
	seedSchema(t, m, tutorialCategory, map[string]any{
		"title":      "Tutorial",
		"properties": map[string]any{"back": schemaRef(itemCategory)},
	})
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)

	require.NoError(t, r.Fetch(context.Background(), []string{itemCategory}, ModeReplace))
	assert.True(t, ns.Has("Item"))
	assert.True(t, ns.Has("Tutorial"))
}

func TestFetchMissingPageAbortsUntouched(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedSchema(t, m, tutorialCategory, map[string]any{
		"title": "Tutorial",
		"allOf": []any{schemaRef(itemCategory)},
	})
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)

	err := r.Fetch(context.Background(), []string{tutorialCategory}, ModeReplace)
	require.Error(t, err)
	assert.Empty(t, ns.Names())
}

func TestFetchRejectsSchemaWithoutTitle(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedSchema(t, m, itemCategory, map[string]any{
		"properties": map[string]any{},
	})
	r := NewRegistry(m, model.NewNamespace())

	err := r.Fetch(context.Background(), []string{itemCategory}, ModeReplace)
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fetch", se.Op)
}

func TestFetchRejectsTitleCollision(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedSchema(t, m, itemCategory, map[string]any{"title": "Item"})
	seedSchema(t, m, articleCategory, map[string]any{"title": "Item"})
	r := NewRegistry(m, model.NewNamespace())

	err := r.Fetch(context.Background(), []string{itemCategory, articleCategory}, ModeReplace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}

func TestClassIdentityPreservedOnUnchangedRefetch(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedBasePair(t, m)
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)
	ctx := context.Background()

	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeReplace))
	first, _ := ns.Get("Tutorial")

	r.Invalidate(tutorialCategory)
	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeReplace))
	second, _ := ns.Get("Tutorial")
	assert.Same(t, first, second)
}

func TestReplaceRemovesStaleTouchedClassOnly(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedBasePair(t, m)
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)
	ctx := context.Background()

	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeReplace))

	// The category page is renamed: the old class name disappears from
	// the schema, so a replace-mode refetch drops "Tutorial".
	seedSchema(t, m, tutorialCategory, map[string]any{
		"title": "Lesson",
		"allOf": []any{schemaRef(itemCategory)},
	})
	r.Invalidate(tutorialCategory)
	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeReplace))

	assert.False(t, ns.Has("Tutorial"))
	assert.True(t, ns.Has("Lesson"))
	assert.True(t, ns.Has("Item"))
}

func TestAppendRejectsParentSetChange(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedBasePair(t, m)
	seedSchema(t, m, articleCategory, map[string]any{"title": "Article"})
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)
	ctx := context.Background()

	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeAppend))

	seedSchema(t, m, tutorialCategory, map[string]any{
		"title": "Tutorial",
		"allOf": []any{schemaRef(articleCategory)},
	})
	r.Invalidate(tutorialCategory)
	err := r.Fetch(ctx, []string{tutorialCategory}, ModeAppend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent set")
}

func TestAppendParentOverrideOptIn(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedBasePair(t, m)
	seedSchema(t, m, articleCategory, map[string]any{"title": "Article"})
	ns := model.NewNamespace()
	r := NewRegistry(m, ns, WithParentOverride())
	ctx := context.Background()

	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeAppend))

	seedSchema(t, m, tutorialCategory, map[string]any{
		"title": "Tutorial",
		"allOf": []any{schemaRef(articleCategory)},
	})
	r.Invalidate(tutorialCategory)
	require.NoError(t, r.Fetch(ctx, []string{tutorialCategory}, ModeAppend))

	cls, _ := ns.Get("Tutorial")
	assert.Equal(t, []string{articleCategory}, cls.Parents)
}

// countingTransport counts page reads on top of a MemoryTransport.
type countingTransport struct {
	*wiki.MemoryTransport
	gets int
}

func (c *countingTransport) GetPage(ctx context.Context, fullTitle string) (*wiki.PageData, error) {
	c.gets++
	return c.MemoryTransport.GetPage(ctx, fullTitle)
}

func TestInstallDependenciesIfMissingSkipsNetwork(t *testing.T) {
	inner := wiki.NewMemoryTransport()
	seedBasePair(t, inner)
	m := &countingTransport{MemoryTransport: inner}
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)
	ctx := context.Background()

	deps := map[string]string{
		"Item":     itemCategory,
		"Tutorial": tutorialCategory,
	}
	require.NoError(t, r.InstallDependencies(ctx, deps, PolicyIfMissing))
	assert.True(t, ns.Has("Item"))
	assert.True(t, ns.Has("Tutorial"))
	firstRun := m.gets

	first, _ := ns.Get("Tutorial")
	require.NoError(t, r.InstallDependencies(ctx, deps, PolicyIfMissing))
	assert.Equal(t, firstRun, m.gets)
	second, _ := ns.Get("Tutorial")
	assert.Same(t, first, second)
}

func TestInstallDependenciesRejectsMalformedTitle(t *testing.T) {
	r := NewRegistry(wiki.NewMemoryTransport(), model.NewNamespace())
	err := r.InstallDependencies(context.Background(), map[string]string{
		"Bad": "NotAFullTitle",
	}, PolicyForce)
	assert.Error(t, err)
}

func TestKindFromWellKnownAncestor(t *testing.T) {
	m := wiki.NewMemoryTransport()
	seedSchema(t, m, "Category:WikiFile", map[string]any{"title": "WikiFile"})
	seedSchema(t, m, articleCategory, map[string]any{
		"title": "ImageFile",
		"allOf": []any{schemaRef("Category:WikiFile")},
	})
	ns := model.NewNamespace()
	r := NewRegistry(m, ns)

	require.NoError(t, r.Fetch(context.Background(), []string{articleCategory}, ModeReplace))
	cls, ok := ns.Get("ImageFile")
	require.True(t, ok)
	assert.Equal(t, model.KindFile, cls.Kind)
	assert.Equal(t, "File", cls.TargetNamespace())
}
