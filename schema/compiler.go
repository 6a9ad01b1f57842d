package schema

import (
	"fmt"
	"strings"

	"github.com/OpenSemanticLab/osw-go/model"
)

// MergedDoc is one category's schema after transitive resolution:
// the raw document plus the effective (parent-flattened) view and the
// canonical hash over it.
type MergedDoc struct {
	// CategoryTitle is the full title of the defining category page.
	CategoryTitle string

	// Name is the schema title, used as the class name.
	Name string

	// Raw is the schema document as stored in the jsonschema slot.
	Raw map[string]any

	// Effective is the schema with parent properties, required lists
	// and @context entries folded in along the allOf chain.
	Effective map[string]any

	// Hash is the canonical hash of Effective.
	Hash string

	// Parents lists the directly referenced parent category titles.
	Parents []string

	// Ancestors lists all transitive parent category titles.
	Ancestors []string
}

// CompilationUnit is the input to a Compiler: every cached schema
// contributes one merged document.
type CompilationUnit struct {
	Docs []*MergedDoc
}

// Compiler turns a compilation unit into class definitions. The
// default implementation compiles descriptors directly; alternative
// compilers may generate and load source text instead.
type Compiler interface {
	Compile(unit *CompilationUnit) ([]*model.Class, error)
}

// wellKnownRoots maps root category titles to the class kind their
// subclasses' instances belong to.
var wellKnownRoots = map[string]model.ClassKind{
	"Category:Category": model.KindCategory,
	"Category:Property": model.KindProperty,
	"Category:File":     model.KindFile,
	"Category:WikiFile": model.KindFile,
	"Category:OswFile":  model.KindFile,
}

// DefaultCompiler compiles merged schema documents into model.Class
// descriptors.
type DefaultCompiler struct{}

// Compile implements Compiler.
func (DefaultCompiler) Compile(unit *CompilationUnit) ([]*model.Class, error) {
	classes := make([]*model.Class, 0, len(unit.Docs))
	for _, doc := range unit.Docs {
		cls, err := compileClass(doc)
		if err != nil {
			return nil, err
		}
		classes = append(classes, cls)
	}
	return classes, nil
}

func compileClass(doc *MergedDoc) (*model.Class, error) {
	if doc.Name == "" {
		return nil, &Error{Op: "compile", Title: doc.CategoryTitle, Reason: "schema has no title"}
	}

	props := map[string]model.Property{}
	required := map[string]bool{}
	if reqList, ok := doc.Effective["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}
	context := map[string]any{}
	if ctx, ok := doc.Effective["@context"].(map[string]any); ok {
		for k, v := range ctx {
			context[k] = v
		}
	}
	if propMap, ok := doc.Effective["properties"].(map[string]any); ok {
		for name, raw := range propMap {
			prop := model.Property{Name: name, Required: required[name]}
			if p, ok := raw.(map[string]any); ok {
				if t, ok := p["type"].(string); ok {
					prop.Type = t
				}
			}
			if iri, ok := context[name].(string); ok {
				prop.ContextIRI = iri
			} else if mapping, ok := context[name].(map[string]any); ok {
				if iri, ok := mapping["@id"].(string); ok {
					prop.ContextIRI = iri
				}
			}
			props[name] = prop
		}
	}

	kind := model.KindItem
	if k, ok := wellKnownRoots[doc.CategoryTitle]; ok {
		kind = k
	}
	for _, ancestor := range doc.Ancestors {
		if k, ok := wellKnownRoots[ancestor]; ok {
			kind = k
			break
		}
	}

	return &model.Class{
		Name:           doc.Name,
		CategoryTitle:  doc.CategoryTitle,
		Hash:           doc.Hash,
		Parents:        doc.Parents,
		Kind:           kind,
		Properties:     props,
		HeaderTemplate: templateFromSchema(doc.Effective, "osl_template", "header_template"),
		FooterTemplate: templateFromSchema(doc.Effective, "osl_footer", "footer_template"),
		Schema:         doc.Effective,
		Context:        context,
	}, nil
}

// templateFromSchema digs the header/footer template text out of the
// schema's property defaults. Category schemas declare them as the
// default of a hidden property ("osl_template" / "osl_footer") or as a
// top-level extension keyword.
func templateFromSchema(doc map[string]any, propName, extKey string) string {
	if tpl, ok := doc[extKey].(string); ok {
		return tpl
	}
	propMap, ok := doc["properties"].(map[string]any)
	if !ok {
		return ""
	}
	prop, ok := propMap[propName].(map[string]any)
	if !ok {
		return ""
	}
	if def, ok := prop["default"].(string); ok {
		return def
	}
	if def, ok := prop["template"].(string); ok {
		return def
	}
	return ""
}

// Error is a schema-level failure: malformed document, unresolvable
// reference, title collision or compile failure. Fatal for the
// in-flight fetch operation.
type Error struct {
	Op     string
	Title  string
	Reason string
	err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("schema: ")
	sb.WriteString(e.Op)
	if e.Title != "" {
		fmt.Fprintf(&sb, " %q", e.Title)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.err != nil {
		fmt.Fprintf(&sb, ": %v", e.err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.err }
