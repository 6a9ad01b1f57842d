package file

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// WikiFileCategory is the category of file entities stored in the wiki
// file namespace.
const WikiFileCategory = "Category:OSW11a53cdfbdc24524bf8ac435cbf65d9d"

// WikiFile stores the bytes as a file-namespace page of a wiki
// instance, with the entity metadata in the page's jsondata slot.
type WikiFile struct {
	common Common
	store  *slotstore.Store
}

// NewWikiFile creates a wiki-file controller with a fresh identifier.
func NewWikiFile(store *slotstore.Store, label, suffix string) *WikiFile {
	return &WikiFile{
		common: Common{UUID: uuid.New(), Label: label, Suffix: NormalizeSuffix(suffix)},
		store:  store,
	}
}

// WikiFileFromOther creates a wiki-file controller carrying the other
// controller's common attributes.
func WikiFileFromOther(other Controller, store *slotstore.Store) *WikiFile {
	return &WikiFile{common: other.Common(), store: store}
}

// LoadWikiFile opens the controller for an existing file page, reading
// the common attributes from its jsondata slot.
func LoadWikiFile(ctx context.Context, store *slotstore.Store, fullTitle string) (*WikiFile, error) {
	page, err := store.GetPage(ctx, fullTitle)
	if err != nil {
		return nil, err
	}
	if !page.Exists {
		return nil, &wiki.NotFoundError{FullTitle: fullTitle}
	}
	doc, _ := page.GetSlotContent("jsondata").(map[string]any)
	if doc == nil {
		return nil, NewError("wiki", "load", fullTitle, fmt.Errorf("page has no jsondata slot"))
	}
	w := &WikiFile{store: store}
	if s, ok := doc["uuid"].(string); ok {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, NewError("wiki", "load", fullTitle, err)
		}
		w.common.UUID = id
	}
	if s, ok := doc["label"].([]any); ok && len(s) > 0 {
		if first, ok := s[0].(map[string]any); ok {
			w.common.Label, _ = first["text"].(string)
		}
	}
	w.common.Suffix, _ = doc["suffix"].(string)
	return w, nil
}

// Title returns the file page title derived from identifier and suffix.
func (w *WikiFile) Title() string {
	return wiki.JoinFullTitle(wiki.NamespaceFile, wiki.OSWID(w.common.UUID)+w.common.Suffix)
}

// Common implements Controller.
func (w *WikiFile) Common() Common { return w.common }

// Put implements Controller: it stores the entity metadata on the file
// page, then uploads the bytes. A failed upload rolls the metadata
// edit back so the two never diverge: a freshly created page is
// deleted, an existing page gets its previous jsondata restored.
func (w *WikiFile) Put(ctx context.Context, r io.Reader) error {
	title := w.Title()
	page, err := w.store.GetPage(ctx, title)
	if err != nil {
		return err
	}
	existed := page.Exists
	prior := page.GetSlotContent("jsondata")
	page.SetSlotContent("jsondata", map[string]any{
		"uuid":   w.common.UUID.String(),
		"type":   []any{WikiFileCategory},
		"label":  []any{map[string]any{"text": w.common.Label}},
		"suffix": w.common.Suffix,
	})
	if _, err := w.store.EditPage(ctx, page, "Store file metadata"); err != nil {
		return err
	}
	if err := w.store.Transport().UploadFile(ctx, title, r, "Upload file content", true); err != nil {
		if rbErr := w.rollbackMetadata(ctx, page, existed, prior); rbErr != nil {
			return NewError("wiki", "put", title, fmt.Errorf("%w (rollback failed: %v)", err, rbErr))
		}
		return err
	}
	return nil
}

// rollbackMetadata undoes the metadata edit of a failed upload.
func (w *WikiFile) rollbackMetadata(ctx context.Context, page *slotstore.Page, existed bool, prior any) error {
	if !existed {
		return w.store.DeletePage(ctx, page, "Roll back failed upload")
	}
	if prior == nil {
		return nil
	}
	page.SetSlotContent("jsondata", prior)
	_, err := w.store.EditPage(ctx, page, "Roll back failed upload")
	return err
}

// Get implements Controller.
func (w *WikiFile) Get(ctx context.Context) (io.ReadCloser, error) {
	return w.store.Transport().DownloadFile(ctx, w.Title())
}
