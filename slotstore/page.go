package slotstore

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OpenSemanticLab/osw-go/schema"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Page is a client-side view of a multi-slot wiki page. It keeps the
// slot content as fetched so that an edit uploads only the slots that
// actually changed.
type Page struct {
	// FullTitle is the page key, "Namespace:Title".
	FullTitle string

	// Exists reports whether the page was present on the server at
	// fetch time. False for placeholder pages of missing titles and
	// for pages created locally.
	Exists bool

	slots         map[string]any
	contentModels map[string]string

	// snapshots holds the canonical serialization of each slot as
	// fetched; the diff base for ChangedSlots.
	snapshots map[string]string

	slotSet *SlotSet
}

// NewPage creates an empty local page that does not exist on the
// server yet.
func NewPage(fullTitle string, slots *SlotSet) *Page {
	if slots == nil {
		slots = DefaultSlots()
	}
	return &Page{
		FullTitle:     fullTitle,
		slots:         map[string]any{},
		contentModels: map[string]string{},
		snapshots:     map[string]string{},
		slotSet:       slots,
	}
}

// pageFromData builds a Page from transport data, parsing JSON slots
// and recording per-slot snapshots.
func pageFromData(data *wiki.PageData, slots *SlotSet) (*Page, error) {
	p := NewPage(data.FullTitle, slots)
	p.Exists = data.Exists
	for slot, raw := range data.Slots {
		contentModel := data.ContentModels[slot]
		if contentModel == "" {
			contentModel = slots.ContentModel(slot)
		}
		p.contentModels[slot] = contentModel
		if contentModel == ModelJSON {
			var doc any
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return nil, fmt.Errorf("page %q slot %q: %w", data.FullTitle, slot, err)
			}
			p.slots[slot] = doc
		} else {
			p.slots[slot] = raw
		}
		snap, err := serializeForDiff(p.slots[slot], contentModel)
		if err != nil {
			return nil, fmt.Errorf("page %q slot %q: %w", data.FullTitle, slot, err)
		}
		p.snapshots[slot] = snap
	}
	return p, nil
}

// GetSlotContent returns the parsed content of a slot, or nil when the
// slot is absent. JSON slots yield maps/slices; wikitext slots yield
// strings.
func (p *Page) GetSlotContent(slot string) any {
	return p.slots[slot]
}

// SlotNames returns the names of the slots present on the page, sorted.
func (p *Page) SlotNames() []string {
	names := make([]string, 0, len(p.slots))
	for name := range p.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasSlot reports whether the page carries the slot locally.
func (p *Page) HasSlot(slot string) bool {
	_, ok := p.slots[slot]
	return ok
}

// SetSlotContent sets a slot's content. Slots unknown to the slot set
// are created with the wikitext content model; declared slots use
// their declared model.
func (p *Page) SetSlotContent(slot string, content any) {
	if _, ok := p.contentModels[slot]; !ok {
		p.contentModels[slot] = p.slotSet.ContentModel(slot)
	}
	p.slots[slot] = content
}

// ContentModel returns the content model of a slot on this page.
func (p *Page) ContentModel(slot string) string {
	if m, ok := p.contentModels[slot]; ok {
		return m
	}
	return p.slotSet.ContentModel(slot)
}

// serializeForDiff renders slot content canonically for change
// detection. JSON slots canonicalize with sorted keys so key order
// does not register as a change.
func serializeForDiff(content any, contentModel string) (string, error) {
	if content == nil {
		return "", nil
	}
	if contentModel == ModelJSON {
		return schema.CanonicalJSON(content)
	}
	s, ok := content.(string)
	if !ok {
		return "", fmt.Errorf("wikitext slot content must be a string, got %T", content)
	}
	return s, nil
}

// serializeForUpload renders slot content for the wire. JSON slots are
// indented for server-side readability, matching the wiki's editor
// output.
func serializeForUpload(content any, contentModel string) (string, error) {
	if contentModel == ModelJSON {
		data, err := json.MarshalIndent(content, "", "    ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	s, ok := content.(string)
	if !ok {
		return "", fmt.Errorf("wikitext slot content must be a string, got %T", content)
	}
	return s, nil
}

// ChangedSlots returns the slots whose content differs from the
// as-fetched snapshot, sorted by name. Slots absent locally are never
// reported (client-side absence does not delete server slots).
func (p *Page) ChangedSlots() ([]string, error) {
	var changed []string
	for slot, content := range p.slots {
		current, err := serializeForDiff(content, p.ContentModel(slot))
		if err != nil {
			return nil, fmt.Errorf("page %q slot %q: %w", p.FullTitle, slot, err)
		}
		snap, had := p.snapshots[slot]
		if !had || current != snap {
			changed = append(changed, slot)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// markClean re-snapshots every slot after a successful edit.
func (p *Page) markClean() error {
	for slot, content := range p.slots {
		snap, err := serializeForDiff(content, p.ContentModel(slot))
		if err != nil {
			return err
		}
		p.snapshots[slot] = snap
	}
	return nil
}

// Clone returns an independent copy of the page, snapshots included.
func (p *Page) Clone() *Page {
	out := NewPage(p.FullTitle, p.slotSet)
	out.Exists = p.Exists
	for slot, content := range p.slots {
		out.slots[slot] = deepCopyValue(content)
	}
	for slot, m := range p.contentModels {
		out.contentModels[slot] = m
	}
	for slot, s := range p.snapshots {
		out.snapshots[slot] = s
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
