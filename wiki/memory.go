package wiki

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryTransport is an in-process Transport over maps. It backs
// offline page-package views and tests. Safe for concurrent use.
type MemoryTransport struct {
	mu    sync.RWMutex
	pages map[string]*PageData
	files map[string][]byte

	// readOnly makes every write operation fail.
	readOnly bool
}

// NewMemoryTransport creates an empty writable in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		pages: map[string]*PageData{},
		files: map[string][]byte{},
	}
}

// SetReadOnly toggles rejection of writes.
func (m *MemoryTransport) SetReadOnly(ro bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = ro
}

func (m *MemoryTransport) checkWritable(op string) error {
	if m.readOnly {
		return NewTransportError(op, fmt.Errorf("transport is read-only"))
	}
	return nil
}

// SeedPage places a page directly, bypassing the read-only gate.
// Loaders use it to populate the view.
func (m *MemoryTransport) SeedPage(data *PageData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data.Exists = true
	m.pages[data.FullTitle] = data
}

// SeedFile places file bytes directly, bypassing the read-only gate.
func (m *MemoryTransport) SeedFile(title string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[title] = content
}

// Titles returns every stored full title, sorted.
func (m *MemoryTransport) Titles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	titles := make([]string, 0, len(m.pages))
	for t := range m.pages {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

// GetPage implements Transport.
func (m *MemoryTransport) GetPage(ctx context.Context, fullTitle string) (*PageData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[fullTitle]
	if !ok {
		return &PageData{FullTitle: fullTitle, Exists: false, Slots: map[string]string{}, ContentModels: map[string]string{}}, nil
	}
	out := &PageData{
		FullTitle:     page.FullTitle,
		Exists:        true,
		Slots:         map[string]string{},
		ContentModels: map[string]string{},
	}
	for k, v := range page.Slots {
		out.Slots[k] = v
	}
	for k, v := range page.ContentModels {
		out.ContentModels[k] = v
	}
	return out, nil
}

// EditPage implements Transport.
func (m *MemoryTransport) EditPage(ctx context.Context, fullTitle string, updates []SlotUpdate, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWritable("edit page"); err != nil {
		return err
	}
	page, ok := m.pages[fullTitle]
	if !ok {
		page = &PageData{FullTitle: fullTitle, Slots: map[string]string{}, ContentModels: map[string]string{}}
		m.pages[fullTitle] = page
	}
	page.Exists = true
	for _, u := range updates {
		page.Slots[u.Slot] = u.Content
		if _, has := page.ContentModels[u.Slot]; !has && u.ContentModel != "" {
			page.ContentModels[u.Slot] = u.ContentModel
		}
	}
	return nil
}

// DeletePage implements Transport.
func (m *MemoryTransport) DeletePage(ctx context.Context, fullTitle string, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWritable("delete page"); err != nil {
		return err
	}
	if _, ok := m.pages[fullTitle]; !ok {
		return &NotFoundError{FullTitle: fullTitle}
	}
	delete(m.pages, fullTitle)
	return nil
}

// MovePage implements Transport.
func (m *MemoryTransport) MovePage(ctx context.Context, fullTitle, newFullTitle, comment string, redirect bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWritable("move page"); err != nil {
		return err
	}
	page, ok := m.pages[fullTitle]
	if !ok {
		return &NotFoundError{FullTitle: fullTitle}
	}
	delete(m.pages, fullTitle)
	page.FullTitle = newFullTitle
	m.pages[newFullTitle] = page
	if redirect {
		m.pages[fullTitle] = &PageData{
			FullTitle:     fullTitle,
			Exists:        true,
			Slots:         map[string]string{"main": "#REDIRECT [[" + newFullTitle + "]]"},
			ContentModels: map[string]string{"main": "wikitext"},
		}
	}
	return nil
}

// UploadFile implements Transport.
func (m *MemoryTransport) UploadFile(ctx context.Context, title string, r io.Reader, comment string, ignoreExisting bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return NewTransportError("upload file", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWritable("upload file"); err != nil {
		return err
	}
	if _, exists := m.files[title]; exists && !ignoreExisting {
		return &ConflictError{FullTitle: title}
	}
	m.files[title] = data
	return nil
}

// DownloadFile implements Transport.
func (m *MemoryTransport) DownloadFile(ctx context.Context, title string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[title]
	if !ok {
		return nil, &NotFoundError{FullTitle: title}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// SemanticSearch implements Transport with a minimal ask subset: a
// single "[[Property::Value]]" condition matches pages whose main slot
// contains the annotation, and "[[HasType::X]]" additionally matches
// pages whose jsondata type list contains X.
func (m *MemoryTransport) SemanticSearch(ctx context.Context, q SearchQuery) ([]string, error) {
	cond := strings.TrimSuffix(strings.TrimPrefix(q.Query, "[["), "]]")
	var needle string
	if value, ok := strings.CutPrefix(cond, "HasType::"); ok {
		needle = `"` + value + `"`
	}

	m.mu.RLock()
	var matches []string
	for title, page := range m.pages {
		if strings.Contains(page.Slots["main"], "[["+cond+"]]") ||
			(needle != "" && strings.Contains(page.Slots["jsondata"], needle)) {
			matches = append(matches, title)
		}
	}
	m.mu.RUnlock()

	sort.Strings(matches)
	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[q.Offset:]
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// PrefixSearch implements Transport.
func (m *MemoryTransport) PrefixSearch(ctx context.Context, prefix string, limit int) ([]string, error) {
	m.mu.RLock()
	var matches []string
	for title := range m.pages {
		if strings.HasPrefix(title, prefix) {
			matches = append(matches, title)
		}
	}
	m.mu.RUnlock()
	sort.Strings(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// RawAPI implements Transport; the in-memory backend has no raw API.
func (m *MemoryTransport) RawAPI(ctx context.Context, action string, params map[string]string) (map[string]any, error) {
	return nil, NewTransportError("raw api", fmt.Errorf("action %q not supported in memory", action))
}
