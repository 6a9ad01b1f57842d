// Package model holds the universal entity record, the compiled class
// descriptors generated from category schemas, and the process-wide
// namespace that maps class names to class objects.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Label is a language-tagged text.
type Label struct {
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"`
}

// Description is a language-tagged long text.
type Description struct {
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"`
}

// WikiPage carries the wiki coordinates of a stored entity.
type WikiPage struct {
	Namespace string `json:"namespace,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Meta is the non-payload metadata of an entity.
type Meta struct {
	WikiPage *WikiPage `json:"wiki_page,omitempty"`

	// ChangeID links entities to the store operations that touched
	// them; all entities of one StoreEntity call share an id.
	ChangeID []string `json:"change_id,omitempty"`
}

// Entity is the universal record: a stable UUID, one or more category
// IRIs, ordered labels and descriptions, and an open attribute bag
// validated by the schema of its most-specific type.
type Entity struct {
	UUID        uuid.UUID     `json:"uuid"`
	Type        []string      `json:"type"`
	Label       []Label       `json:"label,omitempty"`
	Description []Description `json:"description,omitempty"`
	Meta        *Meta         `json:"meta,omitempty"`

	// Fields holds every schema-defined or unknown attribute that is
	// not lifted into a struct field above. Unknown attributes survive
	// load/store round trips untouched.
	Fields map[string]any `json:"-"`
}

// knownEntityKeys are the attribute names lifted into struct fields.
var knownEntityKeys = map[string]bool{
	"uuid": true, "type": true, "label": true, "description": true, "meta": true,
}

// NewEntity creates an entity of the given types with a fresh UUID.
func NewEntity(types ...string) *Entity {
	return &Entity{
		UUID:   uuid.New(),
		Type:   types,
		Fields: map[string]any{},
	}
}

// Validate checks the entity invariants: a set identifier and at least
// one type tag.
func (e *Entity) Validate() error {
	if e.UUID == uuid.Nil {
		return fmt.Errorf("entity has no uuid")
	}
	if len(e.Type) == 0 {
		return fmt.Errorf("entity %s has no type", e.UUID)
	}
	return nil
}

// Get returns an attribute from the open bag.
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Set places an attribute into the open bag.
func (e *Entity) Set(name string, value any) {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields[name] = value
}

// PreferredLabel returns the first label text, or "".
func (e *Entity) PreferredLabel() string {
	if len(e.Label) == 0 {
		return ""
	}
	return e.Label[0].Text
}

// MarshalJSON flattens the open bag into the document, null-omitting.
func (e *Entity) MarshalJSON() ([]byte, error) {
	doc := map[string]any{}
	for k, v := range e.Fields {
		if v == nil {
			continue
		}
		doc[k] = v
	}
	doc["uuid"] = e.UUID.String()
	doc["type"] = e.Type
	if len(e.Label) > 0 {
		doc["label"] = e.Label
	}
	if len(e.Description) > 0 {
		doc["description"] = e.Description
	}
	if e.Meta != nil {
		doc["meta"] = e.Meta
	}
	return json.Marshal(doc)
}

// UnmarshalJSON splits the document into struct fields and the open bag.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	e.Fields = map[string]any{}
	for key, raw := range doc {
		switch key {
		case "uuid":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("entity uuid: %w", err)
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return fmt.Errorf("entity uuid: %w", err)
			}
			e.UUID = id
		case "type":
			if err := json.Unmarshal(raw, &e.Type); err != nil {
				return fmt.Errorf("entity type: %w", err)
			}
		case "label":
			if err := json.Unmarshal(raw, &e.Label); err != nil {
				return fmt.Errorf("entity label: %w", err)
			}
		case "description":
			if err := json.Unmarshal(raw, &e.Description); err != nil {
				return fmt.Errorf("entity description: %w", err)
			}
		case "meta":
			if err := json.Unmarshal(raw, &e.Meta); err != nil {
				return fmt.Errorf("entity meta: %w", err)
			}
		default:
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("entity field %q: %w", key, err)
			}
			e.Fields[key] = v
		}
	}
	return nil
}

// Clone returns a deep copy of the entity via its JSON form.
func (e *Entity) Clone() *Entity {
	data, err := json.Marshal(e)
	if err != nil {
		// Entities are built from JSON-compatible values only.
		panic(fmt.Sprintf("model: clone entity: %v", err))
	}
	var out Entity
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("model: clone entity: %v", err))
	}
	return &out
}
