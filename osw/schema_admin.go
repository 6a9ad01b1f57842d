package osw

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/OpenSemanticLab/osw-go/schema"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// SchemaRegistration describes a locally defined class to install as a
// category page.
type SchemaRegistration struct {
	// UUID identifies the class; the category page title derives from it.
	UUID uuid.UUID

	// Name is the schema title and class name.
	Name string

	// Bases are the parent category full titles, composed via allOf.
	// Defaults to Category:Item when empty.
	Bases []string

	// Schema is the JSON-Schema document body. Title and allOf entries
	// for the bases are filled in.
	Schema map[string]any
}

// RegisterSchema creates or updates the category page for a locally
// defined class, then fetches it back through the registry so the
// compiled class lands in the namespace.
func (c *Client) RegisterSchema(ctx context.Context, reg SchemaRegistration) error {
	if reg.UUID == uuid.Nil {
		return fmt.Errorf("register schema: no uuid")
	}
	if reg.Name == "" {
		return fmt.Errorf("register schema: no name")
	}
	bases := reg.Bases
	if len(bases) == 0 {
		bases = []string{"Category:Item"}
	}

	doc := map[string]any{}
	for k, v := range reg.Schema {
		doc[k] = v
	}
	doc["title"] = reg.Name
	allOf, _ := doc["allOf"].([]any)
	for _, base := range bases {
		allOf = append(allOf, map[string]any{
			"$ref": fmt.Sprintf("/wiki/%s?action=raw&slot=jsonschema", base),
		})
	}
	doc["allOf"] = allOf

	categoryTitle := wiki.JoinFullTitle(wiki.NamespaceCategory, wiki.OSWID(reg.UUID))
	page, err := c.store.GetPage(ctx, categoryTitle)
	if err != nil {
		return err
	}
	page.SetSlotContent("jsondata", map[string]any{
		"uuid":        reg.UUID.String(),
		"type":        []any{"Category:Category"},
		"label":       []any{map[string]any{"text": reg.Name, "lang": "en"}},
		"subclass_of": toAnySlice(bases),
	})
	page.SetSlotContent("jsonschema", doc)
	if _, err := c.store.EditPage(ctx, page, "Register schema "+reg.Name); err != nil {
		return err
	}
	c.logger.Info("schema registered", "name", reg.Name, "category", categoryTitle)

	c.registry.Invalidate(categoryTitle)
	return c.registry.Fetch(ctx, []string{categoryTitle}, schema.ModeReplace)
}

// UnregisterSchema deletes the category page of a class and drops the
// class from the namespace.
func (c *Client) UnregisterSchema(ctx context.Context, classUUID uuid.UUID, comment string) error {
	if classUUID == uuid.Nil {
		return fmt.Errorf("unregister schema: no uuid")
	}
	categoryTitle := wiki.JoinFullTitle(wiki.NamespaceCategory, wiki.OSWID(classUUID))
	page, err := c.store.GetPage(ctx, categoryTitle)
	if err != nil {
		return err
	}
	if !page.Exists {
		return &wiki.NotFoundError{FullTitle: categoryTitle}
	}
	if comment == "" {
		comment = "Unregister schema"
	}
	if err := c.store.DeletePage(ctx, page, comment); err != nil {
		return err
	}
	if cls, ok := c.ns.ByCategory(categoryTitle); ok {
		c.ns.Remove(cls.Name)
	}
	c.logger.Info("schema unregistered", "category", categoryTitle)
	return nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
