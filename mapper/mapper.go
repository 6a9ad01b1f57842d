// Package mapper translates between entities and the slot layout of
// their wiki pages: jsondata documents, rendered header/footer
// wikitext, and page addressing (namespace and title).
package mapper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Mapper resolves classes from a namespace to address pages and render
// templates. A nil namespace maps entities generically: default slots,
// Item namespace, no templates.
type Mapper struct {
	ns     *model.Namespace
	logger *slog.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// New creates a mapper over the given class namespace.
func New(ns *model.Namespace, opts ...Option) *Mapper {
	m := &Mapper{ns: ns, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// classOf returns the most specific registered class for the entity's
// type list, or nil when none is registered.
func (m *Mapper) classOf(e *model.Entity) *model.Class {
	if m.ns == nil {
		return nil
	}
	cls, err := m.ns.MostSpecific(e.Type)
	if err != nil {
		return nil
	}
	return cls
}

// entityDoc renders the entity as a plain JSON document (the jsondata
// slot form). Nil attributes are omitted by the entity's marshaller.
func entityDoc(e *model.Entity) (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serialize entity %s: %w", e.UUID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("serialize entity %s: %w", e.UUID, err)
	}
	return doc, nil
}

// ToSlots maps an entity onto its page slots: jsondata carries the
// entity document, header and footer carry the class templates rendered
// against it. A class without templates falls back to the wiki-side
// Entity renderer invocation.
func (m *Mapper) ToSlots(e *model.Entity) (map[string]any, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	doc, err := entityDoc(e)
	if err != nil {
		return nil, err
	}
	slots := map[string]any{"jsondata": doc}

	cls := m.classOf(e)
	header, footer := "{{#invoke:Entity|header}}", "{{#invoke:Entity|footer}}"
	if cls != nil {
		if cls.HeaderTemplate != "" {
			header, err = RenderTemplate(cls.HeaderTemplate, doc)
			if err != nil {
				return nil, fmt.Errorf("entity %s header: %w", e.UUID, err)
			}
		}
		if cls.FooterTemplate != "" {
			footer, err = RenderTemplate(cls.FooterTemplate, doc)
			if err != nil {
				return nil, fmt.Errorf("entity %s footer: %w", e.UUID, err)
			}
		}
	}
	slots["header"] = header
	slots["footer"] = footer
	return slots, nil
}

// FromSlots builds an entity from a page's slot contents. The jsondata
// slot is authoritative; unknown attributes land in the open bag. A
// type list with no registered class still yields a generic entity.
func (m *Mapper) FromSlots(slots map[string]any) (*model.Entity, error) {
	raw, ok := slots["jsondata"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("page has no jsondata slot")
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jsondata slot is %T, want an object", raw)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse jsondata: %w", err)
	}
	var e model.Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse jsondata: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if m.ns != nil {
		if _, err := m.ns.MostSpecific(e.Type); err != nil {
			m.logger.Debug("no class registered for entity, keeping generic", "uuid", e.UUID, "type", e.Type)
		}
	}
	return &e, nil
}

// NamespaceOf returns the wiki namespace the entity stores under. An
// explicit meta.wiki_page.namespace wins; otherwise the class kind
// decides, defaulting to Item.
func (m *Mapper) NamespaceOf(e *model.Entity) string {
	if e.Meta != nil && e.Meta.WikiPage != nil && e.Meta.WikiPage.Namespace != "" {
		return e.Meta.WikiPage.Namespace
	}
	if cls := m.classOf(e); cls != nil {
		return cls.TargetNamespace()
	}
	return wiki.NamespaceItem
}

// TitleOf returns the page title for the entity. An explicit
// meta.wiki_page.title wins; otherwise the title is the OSW-ID of the
// entity's UUID. File entities append their suffix so the page name
// keeps the file extension.
func (m *Mapper) TitleOf(e *model.Entity) string {
	if e.Meta != nil && e.Meta.WikiPage != nil && e.Meta.WikiPage.Title != "" {
		return e.Meta.WikiPage.Title
	}
	title := wiki.OSWID(e.UUID)
	if cls := m.classOf(e); cls != nil && cls.Kind == model.KindFile {
		if suffix, ok := e.Get("suffix"); ok {
			if s, ok := suffix.(string); ok && s != "" {
				if !strings.HasPrefix(s, ".") {
					s = "." + s
				}
				title += s
			}
		}
	}
	return title
}

// FullTitleOf returns the complete page address, "Namespace:Title".
func (m *Mapper) FullTitleOf(e *model.Entity) string {
	return wiki.JoinFullTitle(m.NamespaceOf(e), m.TitleOf(e))
}

// CastParam configures a Cast.
type CastParam struct {
	// Overrides are attributes set on the result after copying.
	Overrides map[string]any

	// NoneToDefault drops nil and empty-list attributes from the
	// result so the target class's schema defaults apply instead.
	NoneToDefault bool
}

// Cast re-types an entity to the target class, keeping UUID, labels
// and every attribute. The target's category becomes the sole type
// tag; the original types are not retained.
func (m *Mapper) Cast(e *model.Entity, target *model.Class, param CastParam) (*model.Entity, error) {
	if target == nil {
		return nil, fmt.Errorf("cast entity %s: no target class", e.UUID)
	}
	out := e.Clone()
	out.Type = []string{target.CategoryTitle}
	for name, value := range param.Overrides {
		switch name {
		case "uuid", "type":
			return nil, fmt.Errorf("cast entity %s: cannot override %q", e.UUID, name)
		case "label":
			data, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("cast entity %s: label override: %w", e.UUID, err)
			}
			if err := json.Unmarshal(data, &out.Label); err != nil {
				return nil, fmt.Errorf("cast entity %s: label override: %w", e.UUID, err)
			}
		default:
			out.Set(name, value)
		}
	}
	if param.NoneToDefault {
		for name, value := range out.Fields {
			if value == nil {
				delete(out.Fields, name)
				continue
			}
			if list, ok := value.([]any); ok && len(list) == 0 {
				delete(out.Fields, name)
			}
		}
	}
	return out, nil
}
