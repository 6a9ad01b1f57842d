package pagepackage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

func seedSourceWiki(t *testing.T) *wiki.MemoryTransport {
	t.Helper()
	transport := wiki.NewMemoryTransport()
	transport.SeedPage(&wiki.PageData{
		FullTitle: "Item:OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Slots: map[string]string{
			"main":     "intro text",
			"jsondata": `{"uuid": "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", "type": ["Category:OSWtest"], "image": "File:OSWbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.svg"}`,
		},
		ContentModels: map[string]string{"main": "wikitext", "jsondata": "json"},
	})
	transport.SeedPage(&wiki.PageData{
		FullTitle: "Item:OSWcccccccccccccccccccccccccccccccc",
		Slots: map[string]string{
			"jsondata": `{"uuid": "cccccccc-cccc-cccc-cccc-cccccccccccc", "type": ["Category:OSWtest"]}`,
		},
		ContentModels: map[string]string{"jsondata": "json"},
	})
	transport.SeedPage(&wiki.PageData{
		FullTitle:     "Category:OSWtest",
		Slots:         map[string]string{"jsonschema": `{"title": "Test"}`},
		ContentModels: map[string]string{"jsonschema": "json"},
	})
	transport.SeedFile("File:OSWbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.svg", []byte("<svg/>"))
	return transport
}

func exportFixture(t *testing.T, dir string) (*Manifest, string) {
	t.Helper()
	store := slotstore.NewStore(seedSourceWiki(t))
	manifest, err := NewExporter(store).Export(context.Background(), ExportParam{
		Dir:      dir,
		Name:     "demo",
		Version:  "0.1.0",
		BaseURL:  "https://wiki.example.org/wiki/",
		Titles:   []string{"Category:OSWtest"},
		Patterns: []string{"Item:OSW*"},
	})
	require.NoError(t, err)
	return manifest, filepath.Join(dir, "demo")
}

func TestExportLayout(t *testing.T) {
	manifest, root := exportFixture(t, t.TempDir())

	require.Len(t, manifest.Pages, 3)
	assert.Equal(t, "Category:OSWtest", manifest.Pages[0].Title, "manifest pages are sorted")

	// One file per slot in <ns>/<title>/<slot>.<ext>.
	_, err := os.Stat(filepath.Join(root, "Item", "OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "jsondata.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "Item", "OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "main.wikitext"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "Category", "OSWtest", "jsonschema.json"))
	require.NoError(t, err)

	// Referenced file payloads land under files/.
	payload, err := os.ReadFile(filePath(root, "File:OSWbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(payload))
}

func TestExportIsDeterministic(t *testing.T) {
	_, root1 := exportFixture(t, t.TempDir())
	_, root2 := exportFixture(t, t.TempDir())

	m1, err := os.ReadFile(filepath.Join(root1, ManifestFileName))
	require.NoError(t, err)
	m2, err := os.ReadFile(filepath.Join(root2, ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, string(m1), string(m2))

	s1, err := os.ReadFile(filepath.Join(root1, "Item", "OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "jsondata.json"))
	require.NoError(t, err)
	s2, err := os.ReadFile(filepath.Join(root2, "Item", "OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "jsondata.json"))
	require.NoError(t, err)
	assert.Equal(t, string(s1), string(s2))
}

func TestExportRejectsMissingTitle(t *testing.T) {
	store := slotstore.NewStore(seedSourceWiki(t))
	_, err := NewExporter(store).Export(context.Background(), ExportParam{
		Dir:     t.TempDir(),
		Name:    "demo",
		Version: "0.1.0",
		Titles:  []string{"Item:OSW99999999999999999999999999999999"},
	})
	require.Error(t, err)
}

func TestExportRejectsInvalidPattern(t *testing.T) {
	store := slotstore.NewStore(seedSourceWiki(t))
	_, err := NewExporter(store).Export(context.Background(), ExportParam{
		Dir:      t.TempDir(),
		Name:     "demo",
		Version:  "0.1.0",
		Patterns: []string{"Item:[OSW"},
	})
	require.Error(t, err)
}

func TestReadOfflineView(t *testing.T) {
	_, root := exportFixture(t, t.TempDir())

	manifest, view, err := Read(root)
	require.NoError(t, err)
	assert.Equal(t, "demo", manifest.Name)

	ctx := context.Background()
	page, err := view.GetPage(ctx, "Item:OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.True(t, page.Exists)
	assert.Equal(t, "intro text", page.Slots["main"])
	assert.Equal(t, "json", page.ContentModels["jsondata"])

	r, err := view.DownloadFile(ctx, "File:OSWbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.svg")
	require.NoError(t, err)
	payload, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "<svg/>", string(payload))

	// The view rejects writes.
	err = view.EditPage(ctx, "Item:New", []wiki.SlotUpdate{{Slot: "main", Content: "x"}}, "")
	require.Error(t, err)
	assert.True(t, wiki.IsTransport(err))
}

func TestUploadAndIdempotence(t *testing.T) {
	_, root := exportFixture(t, t.TempDir())
	ctx := context.Background()

	target := wiki.NewMemoryTransport()
	store := slotstore.NewStore(target)

	results, err := Upload(ctx, store, UploadParam{Root: root, Overwrite: true})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEmpty(t, r.UpdatedSlots, "first import writes every page")
	}

	page, err := target.GetPage(ctx, "Item:OSWaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.True(t, page.Exists)

	r, err := target.DownloadFile(ctx, "File:OSWbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.svg")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// Second import of the identical bundle uploads no slots.
	results, err = Upload(ctx, store, UploadParam{Root: root, Overwrite: true})
	require.NoError(t, err)
	for _, res := range results {
		assert.Empty(t, res.UpdatedSlots)
	}
}

func TestUploadSkipsExistingWithoutOverwrite(t *testing.T) {
	_, root := exportFixture(t, t.TempDir())
	ctx := context.Background()

	target := wiki.NewMemoryTransport()
	target.SeedPage(&wiki.PageData{
		FullTitle:     "Category:OSWtest",
		Slots:         map[string]string{"jsonschema": `{"title": "AlreadyHere"}`},
		ContentModels: map[string]string{"jsonschema": "json"},
	})
	store := slotstore.NewStore(target)

	_, err := Upload(ctx, store, UploadParam{Root: root})
	require.NoError(t, err)

	page, err := target.GetPage(ctx, "Category:OSWtest")
	require.NoError(t, err)
	assert.Contains(t, page.Slots["jsonschema"], "AlreadyHere")
}

func TestManifestValidate(t *testing.T) {
	m := &Manifest{Name: "x", Version: "1", Pages: []PageEntry{{Title: "A:B"}, {Title: "A:B"}}}
	require.Error(t, m.Validate())
	m = &Manifest{Version: "1"}
	require.Error(t, m.Validate())
	m = &Manifest{Name: "x"}
	require.Error(t, m.Validate())
}
