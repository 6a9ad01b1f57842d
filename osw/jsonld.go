package osw

import (
	"fmt"
	"strings"

	"github.com/OpenSemanticLab/osw-go/model"
)

// JSONLDMode selects the JSON-LD processing applied on export.
type JSONLDMode string

const (
	// JSONLDCompact keeps the entity's property names and attaches the
	// context document.
	JSONLDCompact JSONLDMode = "compact"

	// JSONLDExpand rewrites property names to their full IRIs using the
	// class @context; properties without a context mapping are dropped,
	// as in standard expansion.
	JSONLDExpand JSONLDMode = "expand"
)

// ExportJSONLDParam configures a JSON-LD export.
type ExportJSONLDParam struct {
	Entities []*model.Entity

	// Mode defaults to JSONLDExpand.
	Mode JSONLDMode

	// Context replaces the class-derived @context entirely.
	Context map[string]any

	// AdditionalContext is layered on top of the effective context.
	AdditionalContext map[string]any

	// BuildGraphDocument also assembles all entities into one document
	// with an @graph array.
	BuildGraphDocument bool
}

// ExportJSONLDResult carries one document per entity, plus the
// optional graph document.
type ExportJSONLDResult struct {
	Documents     []map[string]any
	GraphDocument map[string]any
}

// ExportJSONLD converts entities into JSON-LD documents. The @id of
// each document is its full page title relative to the wiki; the
// context comes from the entity's compiled class unless overridden.
func (c *Client) ExportJSONLD(param ExportJSONLDParam) (*ExportJSONLDResult, error) {
	if param.Mode == "" {
		param.Mode = JSONLDExpand
	}
	result := &ExportJSONLDResult{}
	for _, e := range param.Entities {
		doc, err := c.entityJSONLD(e, param)
		if err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, doc)
	}
	if param.BuildGraphDocument {
		graph := make([]any, 0, len(result.Documents))
		for _, doc := range result.Documents {
			graph = append(graph, doc)
		}
		result.GraphDocument = map[string]any{"@graph": graph}
	}
	return result, nil
}

// entityJSONLD renders one entity.
func (c *Client) entityJSONLD(e *model.Entity, param ExportJSONLDParam) (map[string]any, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	slots, err := c.mapper.ToSlots(e)
	if err != nil {
		return nil, err
	}
	doc, ok := slots["jsondata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entity %s: no jsondata document", e.UUID)
	}

	context := c.effectiveContext(e, param)
	doc["@id"] = "/wiki/" + c.mapper.FullTitleOf(e)

	switch param.Mode {
	case JSONLDCompact:
		doc["@context"] = contextDocument(e, context)
		return doc, nil
	case JSONLDExpand:
		return expandDocument(doc, context, e), nil
	default:
		return nil, fmt.Errorf("unknown JSON-LD mode %q", param.Mode)
	}
}

// effectiveContext resolves the term→IRI mapping for an entity.
func (c *Client) effectiveContext(e *model.Entity, param ExportJSONLDParam) map[string]any {
	var context map[string]any
	if param.Context != nil {
		context = param.Context
	} else if cls, err := c.ns.MostSpecific(e.Type); err == nil {
		context = cls.Context
	}
	if param.AdditionalContext == nil {
		return context
	}
	merged := map[string]any{}
	for k, v := range context {
		merged[k] = v
	}
	for k, v := range param.AdditionalContext {
		merged[k] = v
	}
	return merged
}

// contextDocument builds the @context value of a compacted document:
// the term mapping when one is known, otherwise references to the
// entity's category context pages.
func contextDocument(e *model.Entity, context map[string]any) any {
	if context != nil {
		return context
	}
	refs := make([]any, 0, len(e.Type))
	for _, t := range e.Type {
		refs = append(refs, "/wiki/"+t)
	}
	return refs
}

// expandDocument rewrites the document's keys to full IRIs. Keywords
// pass through, the type tags become @type page IRIs, and every
// property without a context mapping is dropped.
func expandDocument(doc map[string]any, context map[string]any, e *model.Entity) map[string]any {
	out := map[string]any{
		"@id":   doc["@id"],
		"@type": typeIRIs(e),
	}
	for key, value := range doc {
		if strings.HasPrefix(key, "@") || key == "type" {
			continue
		}
		iri, typed := resolveTerm(key, context)
		if iri == "" {
			continue
		}
		out[iri] = expandValue(value, typed)
	}
	return out
}

// typeIRIs renders the entity's categories as page IRIs.
func typeIRIs(e *model.Entity) []any {
	types := make([]any, 0, len(e.Type))
	for _, t := range e.Type {
		types = append(types, "/wiki/"+t)
	}
	return types
}

// resolveTerm looks a property name up in the context and expands
// prefixed IRIs. typed reports an "@type": "@id" coercion.
func resolveTerm(term string, context map[string]any) (iri string, typed bool) {
	raw, ok := context[term]
	if !ok {
		return "", false
	}
	switch val := raw.(type) {
	case string:
		iri = val
	case map[string]any:
		iri, _ = val["@id"].(string)
		coerce, _ := val["@type"].(string)
		typed = coerce == "@id"
	}
	if iri == "" {
		return "", false
	}
	// Expand a prefix of the form "prefix:local" via the same context.
	if idx := strings.Index(iri, ":"); idx > 0 && !strings.Contains(iri[:idx], "/") {
		if base, ok := context[iri[:idx]].(string); ok {
			iri = base + iri[idx+1:]
		}
	}
	return iri, typed
}

// expandValue wraps a value in expanded form: @id objects for
// coerced terms, @value objects for scalars.
func expandValue(value any, typed bool) []any {
	list, ok := value.([]any)
	if !ok {
		list = []any{value}
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		if typed {
			if s, ok := item.(string); ok {
				out = append(out, map[string]any{"@id": s})
				continue
			}
		}
		switch item.(type) {
		case map[string]any:
			out = append(out, item)
		default:
			out = append(out, map[string]any{"@value": item})
		}
	}
	return out
}
