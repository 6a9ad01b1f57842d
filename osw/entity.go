package osw

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Overwrite selects how store handles properties that already exist on
// the remote page.
type Overwrite string

const (
	// OverwriteAll always takes the local value.
	OverwriteAll Overwrite = "overwrite"

	// OverwriteNone keeps every remote value; local-only properties are
	// still added.
	OverwriteNone Overwrite = "keep"

	// OverwriteOnlyEmpty takes the local value only where the remote
	// value is empty (null, "", empty list or object).
	OverwriteOnlyEmpty Overwrite = "only-empty"

	// OverwriteReplaceRemote replaces the whole jsondata document,
	// dropping remote-only properties.
	OverwriteReplaceRemote Overwrite = "replace-remote"

	// OverwriteKeepExisting skips the entity entirely when its page
	// already exists.
	OverwriteKeepExisting Overwrite = "keep-existing"
)

// LoadEntityParam configures a batch entity load.
type LoadEntityParam struct {
	// Titles are the full page titles to load.
	Titles []string

	// Parallel fans the load out over the store's worker pool.
	Parallel bool
}

// LoadEntity loads one entity by its full page title.
func (c *Client) LoadEntity(ctx context.Context, fullTitle string) (*model.Entity, error) {
	entities, _, err := c.LoadEntities(ctx, LoadEntityParam{Titles: []string{fullTitle}})
	if err != nil {
		return nil, err
	}
	return entities[0], nil
}

// LoadEntities loads a batch of entities. Results keep title order;
// per-title failures land in the returned error map.
func (c *Client) LoadEntities(ctx context.Context, param LoadEntityParam) ([]*model.Entity, slotstore.BatchErrors, error) {
	pages, errs, err := c.store.GetPages(ctx, slotstore.GetPagesParam{
		Titles:         param.Titles,
		RaiseException: true,
		Parallel:       param.Parallel,
	})
	if err != nil {
		return nil, errs, err
	}
	entities := make([]*model.Entity, 0, len(pages))
	for _, page := range pages {
		slots := map[string]any{}
		for _, slot := range page.SlotNames() {
			slots[slot] = page.GetSlotContent(slot)
		}
		e, err := c.mapper.FromSlots(slots)
		if err != nil {
			return nil, errs, fmt.Errorf("load %q: %w", page.FullTitle, err)
		}
		if e.Meta == nil || e.Meta.WikiPage == nil {
			ns, title, _ := wiki.SplitFullTitle(page.FullTitle)
			if e.Meta == nil {
				e.Meta = &model.Meta{}
			}
			e.Meta.WikiPage = &model.WikiPage{Namespace: ns, Title: title}
		}
		entities = append(entities, e)
	}
	return entities, errs, nil
}

// StoreEntityParam configures a store batch.
type StoreEntityParam struct {
	Entities []*model.Entity

	// Namespace forces the target namespace for every entity; empty
	// derives it per entity from its class.
	Namespace string

	// Overwrite is the default policy. Defaults to OverwriteKeepExisting.
	Overwrite Overwrite

	// PerProperty overrides the policy for single jsondata properties.
	// Only meaningful with the merging policies.
	PerProperty map[string]Overwrite

	// ChangeID links the entities of this call; generated when empty.
	ChangeID string

	// Comment is recorded in the page history.
	Comment string

	// Parallel fans the store out over the worker pool.
	Parallel bool
}

// StoreResult reports a store batch.
type StoreResult struct {
	// ChangeID is the id shared by all entities of the call.
	ChangeID string

	// Stored lists the full titles written.
	Stored []string

	// Skipped lists full titles left untouched under keep-existing.
	Skipped []string
}

// StoreEntity writes one entity with default parameters.
func (c *Client) StoreEntity(ctx context.Context, e *model.Entity) (*StoreResult, error) {
	result, errs, err := c.StoreEntities(ctx, StoreEntityParam{Entities: []*model.Entity{e}})
	if err != nil {
		return nil, err
	}
	for _, itemErr := range errs {
		return nil, itemErr
	}
	return result, nil
}

// StoreEntities writes a batch of entities. Every entity of the call
// shares one change id, recorded in its meta block. The overwrite
// policy decides how pages that already exist are merged. Per-entity
// failures, validation included, land in the returned error map; the
// rest of the batch continues.
func (c *Client) StoreEntities(ctx context.Context, param StoreEntityParam) (*StoreResult, slotstore.BatchErrors, error) {
	if param.Overwrite == "" {
		param.Overwrite = OverwriteKeepExisting
	}
	if param.ChangeID == "" {
		param.ChangeID = uuid.New().String()
	}
	titles := make([]string, 0, len(param.Entities))
	byTitle := make(map[string]*model.Entity, len(param.Entities))
	for _, e := range param.Entities {
		if err := e.Validate(); err != nil {
			return nil, nil, err
		}
		fullTitle := c.fullTitle(e, param.Namespace)
		titles = append(titles, fullTitle)
		byTitle[fullTitle] = e
	}

	workers := 1
	if param.Parallel {
		workers = slotstore.DefaultMaxWorkers
	}
	type outcome struct {
		skipped bool
	}
	results, errs := slotstore.FanOut(ctx, titles, workers, false,
		func(ctx context.Context, title string) (outcome, error) {
			if err := c.validateEntity(title, byTitle[title]); err != nil {
				return outcome{}, err
			}
			skipped, err := c.storeOne(ctx, title, byTitle[title], param)
			return outcome{skipped: skipped}, err
		})

	result := &StoreResult{ChangeID: param.ChangeID}
	for _, title := range titles {
		if _, failed := errs[title]; failed {
			continue
		}
		if results[title].skipped {
			result.Skipped = append(result.Skipped, title)
		} else {
			result.Stored = append(result.Stored, title)
		}
	}
	sort.Strings(result.Stored)
	sort.Strings(result.Skipped)
	c.logger.Info("entities stored",
		"change_id", result.ChangeID,
		"stored", len(result.Stored),
		"skipped", len(result.Skipped),
		"failed", len(errs))
	return result, errs, nil
}

// fullTitle resolves the target page of an entity, honoring a forced
// namespace.
func (c *Client) fullTitle(e *model.Entity, namespace string) string {
	if namespace == "" {
		return c.mapper.FullTitleOf(e)
	}
	return wiki.JoinFullTitle(namespace, c.mapper.TitleOf(e))
}

// storeOne applies the overwrite policy for a single entity and edits
// its page. Returns true when the entity was skipped.
func (c *Client) storeOne(ctx context.Context, fullTitle string, e *model.Entity, param StoreEntityParam) (bool, error) {
	page, err := c.store.GetPage(ctx, fullTitle)
	if err != nil {
		return false, err
	}
	if page.Exists && param.Overwrite == OverwriteKeepExisting {
		c.logger.Debug("entity exists, kept", "title", fullTitle)
		return true, nil
	}

	stamped := e.Clone()
	if stamped.Meta == nil {
		stamped.Meta = &model.Meta{}
	}
	stamped.Meta.ChangeID = appendUnique(stamped.Meta.ChangeID, param.ChangeID)

	slots, err := c.mapper.ToSlots(stamped)
	if err != nil {
		return false, err
	}
	local, _ := slots["jsondata"].(map[string]any)

	if !page.Exists || param.Overwrite == OverwriteReplaceRemote {
		page.SetSlotContent("jsondata", local)
	} else {
		remote, _ := page.GetSlotContent("jsondata").(map[string]any)
		page.SetSlotContent("jsondata", mergeDocs(remote, local, param.Overwrite, param.PerProperty))
	}
	// Header and footer are only seeded; existing renderings win.
	for _, slot := range []string{"header", "footer"} {
		if existing, ok := page.GetSlotContent(slot).(string); !ok || existing == "" {
			page.SetSlotContent(slot, slots[slot])
		}
	}

	comment := param.Comment
	if comment == "" {
		comment = "Store entity (change " + param.ChangeID + ")"
	}
	if _, err := c.store.EditPage(ctx, page, comment); err != nil {
		return false, err
	}
	return false, nil
}

// mergeDocs folds a local jsondata document into the remote one under
// the given policy: remote-only keys are kept, local-only keys are
// added, shared keys follow the per-property setting.
func mergeDocs(remote, local map[string]any, fallback Overwrite, perProperty map[string]Overwrite) map[string]any {
	out := map[string]any{}
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		remoteValue, shared := out[k]
		if !shared {
			out[k] = v
			continue
		}
		setting := fallback
		if s, ok := perProperty[k]; ok {
			setting = s
		}
		switch setting {
		case OverwriteAll:
			out[k] = v
		case OverwriteOnlyEmpty:
			if isEmptyValue(remoteValue) {
				out[k] = v
			}
		}
	}
	return out
}

// isEmptyValue reports whether a jsondata value counts as unset.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// DeleteEntityParam configures a delete batch.
type DeleteEntityParam struct {
	Entities []*model.Entity
	Comment  string
	Parallel bool
}

// DeleteEntity removes one entity's page.
func (c *Client) DeleteEntity(ctx context.Context, e *model.Entity) error {
	return c.DeleteEntities(ctx, DeleteEntityParam{Entities: []*model.Entity{e}})
}

// DeleteEntities removes the pages of a batch of entities.
func (c *Client) DeleteEntities(ctx context.Context, param DeleteEntityParam) error {
	titles := make([]string, 0, len(param.Entities))
	for _, e := range param.Entities {
		titles = append(titles, c.mapper.FullTitleOf(e))
	}
	workers := 1
	if param.Parallel {
		workers = slotstore.DefaultMaxWorkers
	}
	comment := param.Comment
	if comment == "" {
		comment = "Delete entity"
	}
	_, errs := slotstore.FanOut(ctx, titles, workers, false,
		func(ctx context.Context, title string) (struct{}, error) {
			page, err := c.store.GetPage(ctx, title)
			if err != nil {
				return struct{}{}, err
			}
			if !page.Exists {
				return struct{}{}, &wiki.NotFoundError{FullTitle: title}
			}
			return struct{}{}, c.store.DeletePage(ctx, page, comment)
		})
	return errs.Err()
}
