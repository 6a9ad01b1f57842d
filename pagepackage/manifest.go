// Package pagepackage bundles wiki pages and their file payloads into
// an on-disk package that can be loaded offline or imported into
// another instance.
package pagepackage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestFileName is the manifest's file name inside the bundle root.
const ManifestFileName = "package.json"

// FilesDirName is the directory of file payloads inside the bundle root.
const FilesDirName = "files"

// Manifest describes a page package bundle.
type Manifest struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description,omitempty"`
	BaseURL     string      `json:"baseURL,omitempty"`
	Pages       []PageEntry `json:"pages"`
}

// PageEntry describes one bundled page.
type PageEntry struct {
	// Title is the full page title, "Namespace:Title".
	Title string `json:"title"`

	// Slots lists the bundled slot names, sorted.
	Slots []string `json:"slots"`

	// Files lists full titles of file pages referenced by this page's
	// jsondata, sorted.
	Files []string `json:"files,omitempty"`
}

// Validate checks the manifest invariants.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("package has no name")
	}
	if m.Version == "" {
		return fmt.Errorf("package %q has no version", m.Name)
	}
	seen := map[string]bool{}
	for _, p := range m.Pages {
		if p.Title == "" {
			return fmt.Errorf("package %q contains a page without a title", m.Name)
		}
		if seen[p.Title] {
			return fmt.Errorf("package %q lists page %q twice", m.Name, p.Title)
		}
		seen[p.Title] = true
	}
	return nil
}

// sortEntries puts the manifest into its canonical order so exports
// are reproducible byte for byte.
func (m *Manifest) sortEntries() {
	sort.Slice(m.Pages, func(i, j int) bool { return m.Pages[i].Title < m.Pages[j].Title })
	for i := range m.Pages {
		sort.Strings(m.Pages[i].Slots)
		sort.Strings(m.Pages[i].Files)
	}
}

// write stores the manifest at the bundle root.
func (m *Manifest) write(root string) error {
	m.sortEntries()
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	path := filepath.Join(root, ManifestFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest %q: %w", path, err)
	}
	return nil
}

// ReadManifest loads the manifest of a bundle rooted at root.
func ReadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// pathSafe maps a title segment onto a filesystem-safe directory name.
// The manifest keeps the real titles; the paths only have to be
// deterministic and collision-free for wiki-legal titles.
var pathSafe = strings.NewReplacer("/", "%2F", ":", "%3A", "\\", "%5C", "%", "%25")

// pageDir returns the bundle-relative directory of a page's slot files.
func pageDir(root, fullTitle string) string {
	namespace, title := fullTitle, ""
	if idx := strings.Index(fullTitle, ":"); idx > 0 {
		namespace, title = fullTitle[:idx], fullTitle[idx+1:]
	}
	return filepath.Join(root, pathSafe.Replace(namespace), pathSafe.Replace(title))
}

// filePath returns the bundle-relative path of a file payload.
func filePath(root, fileTitle string) string {
	return filepath.Join(root, FilesDirName, pathSafe.Replace(fileTitle))
}
