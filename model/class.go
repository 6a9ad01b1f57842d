package model

import (
	"fmt"
	"sort"
)

// ClassKind selects the target wiki namespace of a class's instances.
type ClassKind string

const (
	// KindItem is the default: plain instance entities.
	KindItem ClassKind = "item"

	// KindCategory marks class-defining entities.
	KindCategory ClassKind = "category"

	// KindProperty marks Semantic MediaWiki property entities.
	KindProperty ClassKind = "property"

	// KindFile marks entities whose payload is a byte stream.
	KindFile ClassKind = "file"
)

// Property is one schema-declared attribute of a class.
type Property struct {
	// Name is the JSON property name.
	Name string

	// Type is the JSON-Schema type ("string", "array", "object", ...).
	Type string

	// Required reports whether the schema lists the property as required.
	Required bool

	// ContextIRI is the external IRI the property maps to via the
	// schema's @context, if any.
	ContextIRI string
}

// Class is a compiled class descriptor produced by the schema
// compiler from a category page's merged JSON-Schema. Instances refer
// to their class by identity; the namespace only replaces a Class
// object when its schema hash changes.
type Class struct {
	// Name is the schema title, unique within the namespace.
	Name string

	// CategoryTitle is the full title of the defining category page.
	CategoryTitle string

	// Hash is the canonical hash of the merged schema this class was
	// compiled from.
	Hash string

	// Parents lists the category full titles referenced via allOf.
	Parents []string

	// Kind selects the target namespace of instances.
	Kind ClassKind

	// Properties maps property name to its compiled description.
	Properties map[string]Property

	// HeaderTemplate and FooterTemplate are the wiki-text templates
	// rendered into the header/footer slots on store.
	HeaderTemplate string
	FooterTemplate string

	// Schema is the merged schema document the class was compiled from.
	Schema map[string]any

	// Context is the JSON-LD @context of the schema, flattened over
	// its parents.
	Context map[string]any
}

// TargetNamespace returns the wiki namespace instances of this class
// are stored in.
func (c *Class) TargetNamespace() string {
	switch c.Kind {
	case KindCategory:
		return "Category"
	case KindProperty:
		return "Property"
	case KindFile:
		return "File"
	default:
		return "Item"
	}
}

// SortedPropertyNames returns the property names in stable order.
func (c *Class) SortedPropertyNames() []string {
	names := make([]string, 0, len(c.Properties))
	for name := range c.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewInstance creates an entity typed by this class.
func (c *Class) NewInstance() *Entity {
	e := NewEntity(c.CategoryTitle)
	return e
}

// Instantiate builds an entity of this class from a jsondata document.
func (c *Class) Instantiate(jsondata map[string]any) (*Entity, error) {
	raw, err := remarshal(jsondata)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", c.Name, err)
	}
	if len(raw.Type) == 0 {
		raw.Type = []string{c.CategoryTitle}
	}
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("class %s: %w", c.Name, err)
	}
	return raw, nil
}
