package slotstore

import "sync"

// Content models understood by the store.
const (
	ModelWikitext = "wikitext"
	ModelJSON     = "json"
)

// SlotSet maps slot names to their content model. The slot set of an
// install is extensible at runtime; new slots may appear on any page.
type SlotSet struct {
	mu     sync.RWMutex
	models map[string]string
}

// DefaultSlots returns the slot set of a stock OSW install.
func DefaultSlots() *SlotSet {
	return &SlotSet{models: map[string]string{
		"main":            ModelWikitext,
		"header":          ModelWikitext,
		"footer":          ModelWikitext,
		"jsondata":        ModelJSON,
		"jsonschema":      ModelJSON,
		"template":        ModelWikitext,
		"header_template": ModelWikitext,
		"footer_template": ModelWikitext,
		"data_template":   ModelWikitext,
		"schema_template": ModelWikitext,
	}}
}

// Register declares a slot and its content model.
func (s *SlotSet) Register(name, contentModel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[name] = contentModel
}

// ContentModel returns the declared model for a slot. Unknown slots
// default to wikitext.
func (s *SlotSet) ContentModel(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.models[name]; ok {
		return m
	}
	return ModelWikitext
}

// Known reports whether a slot is declared.
func (s *SlotSet) Known(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[name]
	return ok
}

// Names returns the declared slot names.
func (s *SlotSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	return names
}
