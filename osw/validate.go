package osw

import (
	"fmt"
	"math"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// validateEntity checks an entity against the compiled class of its
// most specific registered type: required properties must be present
// and declared properties must carry a value of their schema type.
// Entities whose types have no registered class only get the label
// check. Failures are ValidationErrors; a store batch continues with
// its remaining entities.
func (c *Client) validateEntity(fullTitle string, e *model.Entity) error {
	langs := map[string]bool{}
	for _, label := range e.Label {
		if langs[label.Lang] {
			return &wiki.ValidationError{
				FullTitle: fullTitle,
				Reason:    fmt.Sprintf("more than one label for language %q", label.Lang),
			}
		}
		langs[label.Lang] = true
	}

	cls := c.classOf(e)
	if cls == nil {
		return nil
	}
	for _, name := range cls.SortedPropertyNames() {
		prop := cls.Properties[name]
		switch name {
		case "uuid", "type", "meta":
			// Always present; their shape is enforced by the model.
			continue
		case "label":
			if prop.Required && len(e.Label) == 0 {
				return missingProperty(fullTitle, name)
			}
			continue
		case "description":
			if prop.Required && len(e.Description) == 0 {
				return missingProperty(fullTitle, name)
			}
			continue
		}
		value, ok := e.Get(name)
		if !ok || value == nil {
			if prop.Required {
				return missingProperty(fullTitle, name)
			}
			continue
		}
		if !typeMatches(value, prop.Type) {
			return &wiki.ValidationError{
				FullTitle: fullTitle,
				Reason:    fmt.Sprintf("property %q is not of type %s", name, prop.Type),
			}
		}
	}
	return nil
}

// classOf returns the registered class of the entity's most specific
// type, or nil. Type lists are ordered most-specific first.
func (c *Client) classOf(e *model.Entity) *model.Class {
	for _, title := range e.Type {
		if cls, ok := c.ns.ByCategory(title); ok {
			return cls
		}
	}
	return nil
}

func missingProperty(fullTitle, name string) error {
	return &wiki.ValidationError{
		FullTitle: fullTitle,
		Reason:    fmt.Sprintf("required property %q is missing", name),
	}
}

// typeMatches reports whether a JSON-shaped value conforms to a
// JSON-Schema primitive type. Unknown or empty types match anything.
func typeMatches(value any, schemaType string) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "number":
		switch value.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == math.Trunc(v)
		}
		return false
	default:
		return true
	}
}
