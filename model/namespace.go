package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Namespace is the process-wide registry of compiled classes, keyed
// by class name. Readers look classes up by name; writers install or
// replace entries atomically per key. A class whose schema hash is
// unchanged keeps its identity so that live instances stay valid.
type Namespace struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewNamespace creates an empty class namespace.
func NewNamespace() *Namespace {
	return &Namespace{classes: map[string]*Class{}}
}

// Get returns the class registered under name.
func (n *Namespace) Get(name string) (*Class, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	cls, ok := n.classes[name]
	return cls, ok
}

// Has reports whether a class is registered under name.
func (n *Namespace) Has(name string) bool {
	_, ok := n.Get(name)
	return ok
}

// ByCategory returns the class compiled from the given category page.
func (n *Namespace) ByCategory(categoryTitle string) (*Class, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, cls := range n.classes {
		if cls.CategoryTitle == categoryTitle {
			return cls, true
		}
	}
	return nil, false
}

// Install registers cls, replacing any existing entry of the same
// name. When the existing entry has the same schema hash, the existing
// class object is retained and returned, so instance identity is
// preserved across refetches.
func (n *Namespace) Install(cls *Class) *Class {
	n.mu.Lock()
	defer n.mu.Unlock()
	if existing, ok := n.classes[cls.Name]; ok && existing.Hash == cls.Hash {
		return existing
	}
	n.classes[cls.Name] = cls
	return cls
}

// Remove drops the entry registered under name.
func (n *Namespace) Remove(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.classes, name)
}

// Names returns all registered class names, sorted.
func (n *Namespace) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.classes))
	for name := range n.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MostSpecific returns the class that matches the most specific entry
// of the given category IRI list. Categories are ordered most-specific
// first in entity type lists; the first category with a registered
// class wins. Falls back over the parent chain of registered classes.
func (n *Namespace) MostSpecific(categoryTitles []string) (*Class, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, title := range categoryTitles {
		for _, cls := range n.classes {
			if cls.CategoryTitle == title {
				return cls, nil
			}
		}
	}
	return nil, fmt.Errorf("no class registered for any of %v", categoryTitles)
}

// Most callers share one class namespace per process. Construct a
// private one with NewNamespace and wire it through osw.WithNamespace
// when isolation matters, e.g. in tests.
var (
	defaultNS     *Namespace
	defaultNSOnce sync.Once
)

// Global returns the shared namespace, creating it on first use.
func Global() *Namespace {
	defaultNSOnce.Do(func() { defaultNS = NewNamespace() })
	return defaultNS
}

// InitGlobal seeds the shared namespace. It has no effect once Global
// has been called, or after an earlier InitGlobal.
func InitGlobal(n *Namespace) {
	defaultNSOnce.Do(func() { defaultNS = n })
}

// ResetGlobal clears the shared namespace between tests. Not safe for
// concurrent use.
func ResetGlobal() {
	defaultNSOnce = sync.Once{}
	defaultNS = nil
}

// remarshal converts an arbitrary JSON-compatible document into an Entity.
func remarshal(jsondata map[string]any) (*Entity, error) {
	data, err := json.Marshal(jsondata)
	if err != nil {
		return nil, fmt.Errorf("marshal jsondata: %w", err)
	}
	var e Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse jsondata: %w", err)
	}
	return &e, nil
}
