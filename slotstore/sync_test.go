package slotstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpPageWritesOneFilePerSlot(t *testing.T) {
	page := NewPage("Item:A", nil)
	page.SetSlotContent("main", "wikitext body")
	page.SetSlotContent("jsondata", map[string]any{"uuid": "x", "label": []any{}})

	dir := t.TempDir()
	require.NoError(t, DumpPage(page, dir))

	main, err := os.ReadFile(filepath.Join(dir, "main.wikitext"))
	require.NoError(t, err)
	assert.Equal(t, "wikitext body", string(main))

	jsondata, err := os.ReadFile(filepath.Join(dir, "jsondata.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jsondata), `"uuid": "x"`)
}

func TestLoadSlotFileRoundTrip(t *testing.T) {
	page := NewPage("Item:A", nil)
	page.SetSlotContent("main", "original")
	page.SetSlotContent("jsondata", map[string]any{"uuid": "x"})

	dir := t.TempDir()
	require.NoError(t, DumpPage(page, dir))

	// Edit the dumped files and load them back.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.wikitext"), []byte("edited"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jsondata.json"), []byte(`{"uuid": "y"}`), 0o644))

	require.NoError(t, LoadSlotFile(page, filepath.Join(dir, "main.wikitext")))
	require.NoError(t, LoadSlotFile(page, filepath.Join(dir, "jsondata.json")))

	assert.Equal(t, "edited", page.GetSlotContent("main"))
	doc := page.GetSlotContent("jsondata").(map[string]any)
	assert.Equal(t, "y", doc["uuid"])

	changed, err := page.ChangedSlots()
	require.NoError(t, err)
	assert.Equal(t, []string{"jsondata", "main"}, changed)
}

func TestLoadSlotFileRejectsMalformedJSON(t *testing.T) {
	page := NewPage("Item:A", nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "jsondata.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	assert.Error(t, LoadSlotFile(page, path))
}
