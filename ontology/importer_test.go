package ontology

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenSemanticLab/osw-go/mapper"
	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

func demoGraph() *Graph {
	return &Graph{
		Name:       "Example Ontology",
		IRI:        "https://example.org/onto",
		Prefix:     "https://example.org/onto#",
		PrefixName: "exo",
		SeeAlso:    []string{"https://example.org/docs"},
		Terms: []Term{
			{
				IRI:   "https://example.org/onto#Material",
				Kind:  KindClass,
				Label: []model.Label{{Text: "Material", Lang: "en"}},
			},
			{
				IRI:        "https://example.org/onto#Metal",
				Kind:       KindClass,
				Label:      []model.Label{{Text: "Metal", Lang: "en"}},
				SubClassOf: []string{"https://example.org/onto#Material"},
			},
			{
				IRI:        "https://example.org/onto#Iron",
				Kind:       KindIndividual,
				Label:      []model.Label{{Text: "Iron", Lang: "en"}},
				InstanceOf: []string{"https://example.org/onto#Metal"},
			},
			{
				IRI:   "https://example.org/onto#hasPart",
				Kind:  KindObjectProperty,
				Label: []model.Label{{Text: "has part", Lang: "en"}},
			},
			{
				IRI:          "https://example.org/onto#density",
				Kind:         KindDataProperty,
				Label:        []model.Label{{Text: "density", Lang: "en"}},
				PropertyType: "Quantity",
			},
		},
	}
}

func newTestImporter(t *testing.T, cfg Config) (*Importer, *wiki.MemoryTransport) {
	t.Helper()
	transport := wiki.NewMemoryTransport()
	store := slotstore.NewStore(transport)
	return NewImporter(store, mapper.New(nil), cfg), transport
}

func TestTermUUIDDeterministic(t *testing.T) {
	a := TermUUID("https://example.org/onto#Material")
	b := TermUUID("https://example.org/onto#Material")
	c := TermUUID("https://example.org/onto#Metal")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://example.org/onto#Material")), a)
}

func TestTermUUIDKeepsEncodedIdentity(t *testing.T) {
	id := TermUUID("https://wiki.example.org/wiki/Category:OSW725a3cf5458f4daea86615fcbd0029f8")
	assert.Equal(t, uuid.MustParse("725a3cf5-458f-4dae-a866-15fcbd0029f8"), id)
}

func TestEntitiesClassAndIndividual(t *testing.T) {
	imp, _ := newTestImporter(t, Config{})
	entities, err := imp.Entities(demoGraph())
	require.NoError(t, err)
	require.Len(t, entities, 5)

	material, metal, iron := entities[0], entities[1], entities[2]

	assert.Equal(t, []string{OwlClassCategory}, material.Type)
	parents, _ := material.Get("subclass_of")
	assert.Equal(t, []any{OwlThingCategory}, parents, "parentless classes hang under the root class")

	parents, _ = metal.Get("subclass_of")
	assert.Equal(t, []any{"Category:" + wiki.OSWID(material.UUID)}, parents)
	require.NotNil(t, metal.Meta)
	require.NotNil(t, metal.Meta.WikiPage)
	assert.Equal(t, "Category", metal.Meta.WikiPage.Namespace)

	assert.Equal(t, []string{"Category:" + wiki.OSWID(metal.UUID)}, iron.Type)
	assert.Nil(t, iron.Meta)
}

func TestPropertyNamingPolicies(t *testing.T) {
	g := demoGraph()

	imp, _ := newTestImporter(t, Config{})
	entities, err := imp.Entities(g)
	require.NoError(t, err)
	hasPart := entities[3]
	require.NotNil(t, hasPart.Meta.WikiPage)
	assert.Equal(t, "Property", hasPart.Meta.WikiPage.Namespace)
	assert.Equal(t, "exo:has_part", hasPart.Meta.WikiPage.Title)

	imp, _ = newTestImporter(t, Config{NamingPolicy: PolicyLabel})
	entities, err = imp.Entities(g)
	require.NoError(t, err)
	assert.Equal(t, "has_part", entities[3].Meta.WikiPage.Title)

	imp, _ = newTestImporter(t, Config{NamingPolicy: PolicyPrefixedLabel, PrefixDelimiter: "."})
	entities, err = imp.Entities(g)
	require.NoError(t, err)
	assert.Equal(t, "exo.has_part", entities[3].Meta.WikiPage.Title)
}

func TestPropertyWithoutLabelFallsBackToID(t *testing.T) {
	imp, _ := newTestImporter(t, Config{})
	g := &Graph{
		Name: "x", Prefix: "https://example.org/x#", PrefixName: "x",
		Terms: []Term{{IRI: "https://example.org/x#p1", Kind: KindDataProperty}},
	}
	entities, err := imp.Entities(g)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(entities[0].Meta.WikiPage.Title, "OSW"))
}

func TestImportWritesPagesAndVocabulary(t *testing.T) {
	ctx := context.Background()
	imp, transport := newTestImporter(t, Config{ChangeID: "import-1"})
	g := demoGraph()

	result, err := imp.Import(ctx, g)
	require.NoError(t, err)
	require.Len(t, result.Entities, 5)
	assert.Equal(t, "MediaWiki:Smw_import_exo", result.ImportPageTitle)

	// Class page in the Category namespace.
	metalTitle := "Category:" + wiki.OSWID(TermUUID("https://example.org/onto#Metal"))
	page, err := transport.GetPage(ctx, metalTitle)
	require.NoError(t, err)
	assert.True(t, page.Exists)
	assert.Contains(t, page.Slots["jsondata"], `"iri"`)
	assert.Contains(t, page.Slots["jsondata"], "import-1")

	// Individual in the Item namespace.
	ironTitle := "Item:" + wiki.OSWID(TermUUID("https://example.org/onto#Iron"))
	page, err = transport.GetPage(ctx, ironTitle)
	require.NoError(t, err)
	assert.True(t, page.Exists)

	// Vocabulary declaration lists the terms with their import types.
	page, err = transport.GetPage(ctx, "MediaWiki:Smw_import_exo")
	require.NoError(t, err)
	main := page.Slots["main"]
	assert.Contains(t, main, "https://example.org/onto# | [https://example.org/docs Example Ontology]")
	assert.Contains(t, main, "\n Metal|Category")
	assert.Contains(t, main, "\n hasPart|Type:Page")
	assert.Contains(t, main, "\n density|Type:Quantity")
	assert.Contains(t, main, "\n Iron|Item")
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	imp, transport := newTestImporter(t, Config{})
	g := demoGraph()

	first, err := imp.Import(ctx, g)
	require.NoError(t, err)
	second, err := imp.Import(ctx, g)
	require.NoError(t, err)

	require.Len(t, second.Entities, len(first.Entities))
	for i := range first.Entities {
		assert.Equal(t, first.Entities[i].UUID, second.Entities[i].UUID)
	}
	// Re-import created no additional pages.
	titles := transport.Titles()
	assert.Len(t, titles, 6, "five term pages plus the vocabulary page")
}

func TestImportRequiresPrefixName(t *testing.T) {
	imp, _ := newTestImporter(t, Config{})
	_, err := imp.Import(context.Background(), &Graph{Name: "x"})
	require.Error(t, err)
}
