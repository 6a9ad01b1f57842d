package pagepackage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// ExportParam configures a bundle export.
type ExportParam struct {
	// Dir is the directory the bundle root <Dir>/<Name> is created in.
	Dir string

	// Name, Version, Description and BaseURL fill the manifest.
	Name        string
	Version     string
	Description string
	BaseURL     string

	// Titles are exported as given.
	Titles []string

	// Patterns select further titles by glob, e.g. "Category:OSW*" or
	// "Item:**". Patterns are resolved against the wiki by prefix
	// search on the literal part before the first wildcard.
	Patterns []string

	// SkipFiles leaves file payloads out of the bundle.
	SkipFiles bool

	// Logger for export progress.
	Logger *slog.Logger
}

// Exporter writes page package bundles from a slot store.
type Exporter struct {
	store *slotstore.Store
}

// NewExporter creates an exporter over store.
func NewExporter(store *slotstore.Store) *Exporter {
	return &Exporter{store: store}
}

// fileTitleRe finds file-page references inside jsondata documents.
var fileTitleRe = regexp.MustCompile(`File:OSW[0-9a-f]{32}[^"\\]*`)

// Export fetches the selected pages and writes the bundle. The layout
// is deterministic: sorted titles, one file per slot, indented JSON
// with trailing newline, so re-exporting unchanged pages yields
// byte-identical bundles.
func (e *Exporter) Export(ctx context.Context, param ExportParam) (*Manifest, error) {
	logger := param.Logger
	if logger == nil {
		logger = slog.Default()
	}
	titles, err := e.resolveTitles(ctx, param)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("package %q: no titles selected", param.Name)
	}

	manifest := &Manifest{
		Name:        param.Name,
		Version:     param.Version,
		Description: param.Description,
		BaseURL:     param.BaseURL,
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	root := filepath.Join(param.Dir, param.Name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle root %q: %w", root, err)
	}

	pages, _, err := e.store.GetPages(ctx, slotstore.GetPagesParam{
		Titles:         titles,
		RaiseException: true,
		Parallel:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("package %q: %w", param.Name, err)
	}

	for _, page := range pages {
		entry, err := e.exportPage(ctx, root, page, param.SkipFiles, logger)
		if err != nil {
			return nil, err
		}
		manifest.Pages = append(manifest.Pages, entry)
	}
	if err := manifest.write(root); err != nil {
		return nil, err
	}
	logger.Info("package exported", "name", param.Name, "pages", len(manifest.Pages), "root", root)
	return manifest, nil
}

// resolveTitles expands glob patterns and merges them with the
// explicit titles, deduplicated and sorted.
func (e *Exporter) resolveTitles(ctx context.Context, param ExportParam) ([]string, error) {
	set := map[string]bool{}
	for _, t := range param.Titles {
		set[t] = true
	}
	for _, pattern := range param.Patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid title pattern %q", pattern)
		}
		candidates, err := e.store.Transport().PrefixSearch(ctx, literalPrefix(pattern), 0)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		for _, title := range candidates {
			ok, err := doublestar.Match(pattern, title)
			if err != nil {
				return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
			}
			if ok {
				set[title] = true
			}
		}
	}
	titles := make([]string, 0, len(set))
	for t := range set {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles, nil
}

// literalPrefix returns the pattern text before the first wildcard.
func literalPrefix(pattern string) string {
	if idx := strings.IndexAny(pattern, "*?[{"); idx >= 0 {
		return pattern[:idx]
	}
	return pattern
}

// exportPage serializes one page's slots and referenced file payloads.
func (e *Exporter) exportPage(ctx context.Context, root string, page *slotstore.Page, skipFiles bool, logger *slog.Logger) (PageEntry, error) {
	dir := pageDir(root, page.FullTitle)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return PageEntry{}, fmt.Errorf("create page directory %q: %w", dir, err)
	}
	entry := PageEntry{Title: page.FullTitle}
	for _, slot := range page.SlotNames() {
		content, model, err := serializeSlot(page, slot)
		if err != nil {
			return PageEntry{}, err
		}
		path := filepath.Join(dir, slot+slotExt(model))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return PageEntry{}, fmt.Errorf("write slot file %q: %w", path, err)
		}
		entry.Slots = append(entry.Slots, slot)
	}
	if skipFiles {
		return entry, nil
	}
	for _, fileTitle := range referencedFiles(page) {
		if err := e.exportFile(ctx, root, fileTitle); err != nil {
			if wiki.IsNotFound(err) {
				logger.Warn("referenced file missing, skipped", "page", page.FullTitle, "file", fileTitle)
				continue
			}
			return PageEntry{}, err
		}
		entry.Files = append(entry.Files, fileTitle)
	}
	return entry, nil
}

// exportFile downloads one file payload into the bundle.
func (e *Exporter) exportFile(ctx context.Context, root, fileTitle string) error {
	r, err := e.store.Transport().DownloadFile(ctx, fileTitle)
	if err != nil {
		return err
	}
	defer r.Close()
	path := filePath(root, fileTitle)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create files directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write file payload %q: %w", path, err)
	}
	defer out.Close()
	if _, err := out.ReadFrom(r); err != nil {
		return fmt.Errorf("write file payload %q: %w", path, err)
	}
	return nil
}

// referencedFiles scans a page's jsondata for file-page titles.
func referencedFiles(page *slotstore.Page) []string {
	doc := page.GetSlotContent("jsondata")
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	set := map[string]bool{}
	for _, m := range fileTitleRe.FindAllString(string(data), -1) {
		set[m] = true
	}
	titles := make([]string, 0, len(set))
	for t := range set {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

// serializeSlot renders slot content and reports its model.
func serializeSlot(page *slotstore.Page, slot string) (content, model string, err error) {
	model = page.ContentModel(slot)
	raw := page.GetSlotContent(slot)
	if model == slotstore.ModelJSON {
		data, err := json.MarshalIndent(raw, "", "    ")
		if err != nil {
			return "", "", fmt.Errorf("page %q slot %q: %w", page.FullTitle, slot, err)
		}
		return string(data) + "\n", model, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", "", fmt.Errorf("page %q slot %q: content is %T, want string", page.FullTitle, slot, raw)
	}
	return s, model, nil
}

// slotExt returns the bundle file extension for a content model.
func slotExt(model string) string {
	if model == slotstore.ModelJSON {
		return ".json"
	}
	return ".wikitext"
}
