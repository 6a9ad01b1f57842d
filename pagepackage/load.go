package pagepackage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Read loads a bundle into a read-only in-memory transport: an offline
// view of the packaged pages that serves GetPage, DownloadFile and the
// search primitives while rejecting every write.
func Read(root string) (*Manifest, *wiki.MemoryTransport, error) {
	manifest, err := ReadManifest(root)
	if err != nil {
		return nil, nil, err
	}
	transport := wiki.NewMemoryTransport()
	for _, entry := range manifest.Pages {
		data, err := readPage(root, entry)
		if err != nil {
			return nil, nil, err
		}
		transport.SeedPage(data)
		for _, fileTitle := range entry.Files {
			payload, err := os.ReadFile(filePath(root, fileTitle))
			if err != nil {
				return nil, nil, fmt.Errorf("package %q: read payload of %q: %w", manifest.Name, fileTitle, err)
			}
			transport.SeedFile(fileTitle, payload)
		}
	}
	transport.SetReadOnly(true)
	return manifest, transport, nil
}

// readPage loads one page's slot files from the bundle.
func readPage(root string, entry PageEntry) (*wiki.PageData, error) {
	dir := pageDir(root, entry.Title)
	data := &wiki.PageData{
		FullTitle:     entry.Title,
		Slots:         map[string]string{},
		ContentModels: map[string]string{},
	}
	for _, slot := range entry.Slots {
		jsonPath := filepath.Join(dir, slot+".json")
		textPath := filepath.Join(dir, slot+".wikitext")
		if raw, err := os.ReadFile(jsonPath); err == nil {
			data.Slots[slot] = strings.TrimSuffix(string(raw), "\n")
			data.ContentModels[slot] = slotstore.ModelJSON
			continue
		}
		raw, err := os.ReadFile(textPath)
		if err != nil {
			return nil, fmt.Errorf("page %q: slot %q has no bundle file in %q", entry.Title, slot, dir)
		}
		data.Slots[slot] = string(raw)
		data.ContentModels[slot] = slotstore.ModelWikitext
	}
	return data, nil
}

// UploadParam configures a bundle import.
type UploadParam struct {
	// Root is the bundle root directory.
	Root string

	// Overwrite also updates pages that already exist on the target.
	Overwrite bool

	// Comment is recorded on the target edits.
	Comment string

	// Parallel fans the import out over the store's worker pool.
	Parallel bool

	// Logger for import progress.
	Logger *slog.Logger
}

// Upload imports a bundle into the target store. Page copies are
// diff-aware: re-importing an unchanged bundle uploads nothing. File
// payloads are always uploaded with ignore-existing set.
func Upload(ctx context.Context, store *slotstore.Store, param UploadParam) ([]slotstore.CopyResult, error) {
	manifest, source, err := Read(param.Root)
	if err != nil {
		return nil, err
	}
	logger := param.Logger
	if logger == nil {
		logger = slog.Default()
	}
	comment := param.Comment
	if comment == "" {
		comment = fmt.Sprintf("Import package %s %s", manifest.Name, manifest.Version)
	}

	titles := make([]string, 0, len(manifest.Pages))
	fileTitles := map[string]bool{}
	for _, entry := range manifest.Pages {
		titles = append(titles, entry.Title)
		for _, f := range entry.Files {
			fileTitles[f] = true
		}
	}

	results, errs, err := store.CopyPages(ctx, slotstore.CopyPagesParam{
		Source:    slotstore.NewStore(source, slotstore.WithLogger(logger)),
		Titles:    titles,
		Overwrite: param.Overwrite,
		Comment:   comment,
		Parallel:  param.Parallel,
	})
	if err != nil {
		return results, fmt.Errorf("package %q: %w", manifest.Name, errs)
	}

	for fileTitle := range fileTitles {
		r, err := source.DownloadFile(ctx, fileTitle)
		if err != nil {
			return results, fmt.Errorf("package %q: %w", manifest.Name, err)
		}
		err = store.Transport().UploadFile(ctx, fileTitle, r, comment, true)
		r.Close()
		if err != nil {
			return results, fmt.Errorf("package %q: upload %q: %w", manifest.Name, fileTitle, err)
		}
	}
	logger.Info("package imported", "name", manifest.Name, "pages", len(results), "files", len(fileTitles))
	return results, nil
}
