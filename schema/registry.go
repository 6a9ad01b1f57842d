// Package schema fetches category schemas from an OSW instance,
// resolves their reference graph, and compiles them into the class
// namespace.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// MergeMode selects how a merge treats classes already present in the
// namespace.
type MergeMode string

const (
	// ModeReplace discards namespace entries for the touched classes
	// before splicing in the freshly compiled ones. Classes whose
	// schema hash is unchanged keep their identity regardless.
	ModeReplace MergeMode = "replace"

	// ModeAppend keeps existing entries and augments them.
	ModeAppend MergeMode = "append"
)

// Policy controls InstallDependencies.
type Policy string

const (
	// PolicyIfMissing fetches only dependencies whose class name is
	// not yet registered.
	PolicyIfMissing Policy = "if-missing"

	// PolicyForce always fetches.
	PolicyForce Policy = "force"
)

// CacheEntry is one fetched category schema.
type CacheEntry struct {
	CategoryTitle string
	Schema        map[string]any
	Parents       []string
	Mode          MergeMode
	FetchedAt     time.Time
}

// Registry resolves category schemas and keeps the class namespace
// consistent with them.
type Registry struct {
	transport wiki.Transport
	ns        *model.Namespace
	compiler  Compiler
	logger    *slog.Logger

	// AllowParentOverride permits an append-mode merge to replace a
	// class whose parent set differs from the cached one. Without it
	// such a merge fails.
	allowParentOverride bool

	mu    sync.Mutex
	cache map[string]*CacheEntry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCompiler replaces the default compiler.
func WithCompiler(c Compiler) RegistryOption {
	return func(r *Registry) { r.compiler = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithParentOverride permits parent-set changes in append mode.
func WithParentOverride() RegistryOption {
	return func(r *Registry) { r.allowParentOverride = true }
}

// NewRegistry creates a schema registry writing into ns.
func NewRegistry(transport wiki.Transport, ns *model.Namespace, opts ...RegistryOption) *Registry {
	r := &Registry{
		transport: transport,
		ns:        ns,
		compiler:  DefaultCompiler{},
		logger:    slog.Default(),
		cache:     map[string]*CacheEntry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cached returns the cache entry for a category title, if present.
func (r *Registry) Cached(categoryTitle string) (*CacheEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[categoryTitle]
	return entry, ok
}

// Invalidate drops a category from the schema cache so the next fetch
// rereads it from the wiki.
func (r *Registry) Invalidate(categoryTitle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, categoryTitle)
}

// Fetch loads the given category schemas and their transitive schema
// dependencies, then merges the full cache into the namespace. A
// failed fetch of any referenced schema aborts the whole operation;
// the namespace is left untouched.
func (r *Registry) Fetch(ctx context.Context, titles []string, mode MergeMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched, err := r.fetchAll(ctx, titles, mode)
	if err != nil {
		return err
	}
	return r.merge(mode, touched)
}

// fetchAll resolves the reference closure of titles into the cache and
// returns every title visited. The cache is consulted before enqueue,
// so reference cycles among categories terminate.
func (r *Registry) fetchAll(ctx context.Context, titles []string, mode MergeMode) ([]string, error) {
	queue := append([]string(nil), titles...)
	touched := []string{}
	seen := map[string]bool{}
	for len(queue) > 0 {
		title := queue[0]
		queue = queue[1:]
		if seen[title] {
			continue
		}
		seen[title] = true
		touched = append(touched, title)
		if _, ok := r.cache[title]; ok {
			continue
		}
		entry, refs, err := r.fetchOne(ctx, title, mode)
		if err != nil {
			return nil, err
		}
		r.cache[title] = entry
		queue = append(queue, refs...)
	}
	return touched, nil
}

// fetchOne reads one schema document and scans it for category
// references.
func (r *Registry) fetchOne(ctx context.Context, title string, mode MergeMode) (*CacheEntry, []string, error) {
	page, err := r.transport.GetPage(ctx, title)
	if err != nil {
		return nil, nil, &Error{Op: "fetch", Title: title, err: err}
	}
	if !page.Exists {
		return nil, nil, &Error{Op: "fetch", Title: title, Reason: "page does not exist"}
	}

	// Pages in the JsonSchema namespace store the schema in the main
	// slot; category pages use the jsonschema slot.
	slot := "jsonschema"
	if strings.HasPrefix(title, "JsonSchema:") {
		slot = "main"
	}
	raw, ok := page.Slots[slot]
	if !ok || raw == "" {
		return nil, nil, &Error{Op: "fetch", Title: title, Reason: fmt.Sprintf("no %s slot", slot)}
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, nil, &Error{Op: "fetch", Title: title, Reason: "malformed schema", err: err}
	}
	if _, ok := doc["title"].(string); !ok {
		return nil, nil, &Error{Op: "fetch", Title: title, Reason: "schema has no title"}
	}

	refs := extractRefs(doc, title)
	parents := extractParents(doc)
	r.logger.Debug("fetched schema", "title", title, "refs", len(refs))
	return &CacheEntry{
		CategoryTitle: title,
		Schema:        doc,
		Parents:       parents,
		Mode:          mode,
		FetchedAt:     time.Now(),
	}, refs, nil
}

// extractRefs walks the document for $ref targets pointing at other
// category pages. Local ("#/...") references are skipped.
func extractRefs(v any, selfTitle string) []string {
	seen := map[string]bool{}
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			for key, item := range val {
				if key == "$ref" {
					if target, ok := item.(string); ok {
						if title := refTargetTitle(target); title != "" && title != selfTitle {
							seen[title] = true
						}
					}
					continue
				}
				walk(item)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(v)
	titles := make([]string, 0, len(seen))
	for title := range seen {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

// refTargetTitle extracts the full page title from a $ref target of
// the form "/wiki/Category:OSW...?action=raw&slot=jsonschema". Other
// targets yield "".
func refTargetTitle(target string) string {
	if strings.HasPrefix(target, "#") {
		return ""
	}
	target = strings.TrimPrefix(target, "/wiki/")
	if idx := strings.IndexAny(target, "?#"); idx >= 0 {
		target = target[:idx]
	}
	if !strings.Contains(target, ":") {
		return ""
	}
	return target
}

// extractParents returns the category titles referenced by the
// document's top-level allOf composition.
func extractParents(doc map[string]any) []string {
	allOf, ok := doc["allOf"].([]any)
	if !ok {
		return nil
	}
	var parents []string
	for _, item := range allOf {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		target, ok := entry["$ref"].(string)
		if !ok {
			continue
		}
		if title := refTargetTitle(target); title != "" {
			parents = append(parents, title)
		}
	}
	return parents
}

// merge assembles one compilation unit from the cache, compiles it,
// and splices the result into the namespace entry by entry. Called
// with r.mu held.
func (r *Registry) merge(mode MergeMode, touched []string) error {
	unit := &CompilationUnit{}
	byName := map[string]string{}

	titles := make([]string, 0, len(r.cache))
	for title := range r.cache {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	for _, title := range titles {
		entry := r.cache[title]
		doc, err := r.mergedDoc(entry)
		if err != nil {
			return err
		}
		// A schema title colliding with an unrelated cached schema is
		// rejected: class names must be unique per namespace.
		if other, ok := byName[doc.Name]; ok && other != title {
			return &Error{Op: "merge", Title: title,
				Reason: fmt.Sprintf("schema title %q collides with %q", doc.Name, other)}
		}
		byName[doc.Name] = title
		unit.Docs = append(unit.Docs, doc)
	}

	if mode == ModeAppend && !r.allowParentOverride {
		for _, doc := range unit.Docs {
			existing, ok := r.ns.Get(doc.Name)
			if !ok || existing.Hash == doc.Hash {
				continue
			}
			if !equalStringSets(existing.Parents, doc.Parents) {
				return &Error{Op: "merge", Title: doc.CategoryTitle,
					Reason: fmt.Sprintf("class %q changes its parent set in append mode", doc.Name)}
			}
		}
	}

	classes, err := r.compiler.Compile(unit)
	if err != nil {
		return &Error{Op: "compile", err: err}
	}

	if mode == ModeReplace {
		stale := map[string]bool{}
		for _, title := range touched {
			if cls, ok := r.ns.ByCategory(title); ok {
				stale[cls.Name] = true
			}
		}
		for _, cls := range classes {
			delete(stale, cls.Name)
		}
		for name := range stale {
			r.ns.Remove(name)
		}
	}
	for _, cls := range classes {
		installed := r.ns.Install(cls)
		if installed == cls {
			r.logger.Debug("class installed", "name", cls.Name, "category", cls.CategoryTitle)
		}
	}
	return nil
}

// mergedDoc flattens an entry's parent chain into its effective schema
// and hashes it.
func (r *Registry) mergedDoc(entry *CacheEntry) (*MergedDoc, error) {
	effective := map[string]any{}
	var ancestors []string
	visited := map[string]bool{}

	var fold func(title string) error
	fold = func(title string) error {
		if visited[title] {
			return nil
		}
		visited[title] = true
		parent, ok := r.cache[title]
		if !ok {
			return &Error{Op: "merge", Title: entry.CategoryTitle,
				Reason: fmt.Sprintf("referenced schema %q was not fetched", title)}
		}
		for _, grand := range parent.Parents {
			if err := fold(grand); err != nil {
				return err
			}
			if !containsString(ancestors, grand) {
				ancestors = append(ancestors, grand)
			}
		}
		foldSchema(effective, parent.Schema)
		return nil
	}
	for _, parent := range entry.Parents {
		if err := fold(parent); err != nil {
			return nil, err
		}
		if !containsString(ancestors, parent) {
			ancestors = append(ancestors, parent)
		}
	}
	visited[entry.CategoryTitle] = true
	foldSchema(effective, entry.Schema)

	hash, err := HashSchema(effective)
	if err != nil {
		return nil, &Error{Op: "merge", Title: entry.CategoryTitle, err: err}
	}
	name, _ := entry.Schema["title"].(string)
	return &MergedDoc{
		CategoryTitle: entry.CategoryTitle,
		Name:          name,
		Raw:           entry.Schema,
		Effective:     effective,
		Hash:          hash,
		Parents:       entry.Parents,
		Ancestors:     ancestors,
	}, nil
}

// foldSchema merges src into dst: properties, required and @context
// accumulate; scalar keywords take the most-derived value.
func foldSchema(dst, src map[string]any) {
	for key, val := range src {
		switch key {
		case "allOf", "$ref":
			// Composition is resolved by the fold itself.
		case "properties", "@context":
			dstMap, _ := dst[key].(map[string]any)
			if dstMap == nil {
				dstMap = map[string]any{}
				dst[key] = dstMap
			}
			if srcMap, ok := val.(map[string]any); ok {
				for k, v := range srcMap {
					dstMap[k] = v
				}
			}
		case "required":
			existing, _ := dst[key].([]any)
			if srcList, ok := val.([]any); ok {
				for _, item := range srcList {
					if !containsAny(existing, item) {
						existing = append(existing, item)
					}
				}
			}
			dst[key] = existing
		default:
			dst[key] = val
		}
	}
}

// InstallDependencies fetches the categories in deps, keyed by the
// class name they provide. With PolicyIfMissing, names already in the
// namespace are skipped; when nothing remains, no network calls are
// made and no class object churns.
func (r *Registry) InstallDependencies(ctx context.Context, deps map[string]string, policy Policy) error {
	var titles []string
	for name, title := range deps {
		if strings.Count(title, ":") != 1 {
			return &Error{Op: "install", Title: title,
				Reason: "full page title must be of the form Namespace:Name"}
		}
		if policy == PolicyIfMissing && r.ns.Has(name) {
			continue
		}
		titles = append(titles, title)
	}
	if len(titles) == 0 {
		return nil
	}
	sort.Strings(titles)
	return r.Fetch(ctx, titles, ModeAppend)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsAny(list []any, v any) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
