// Package wiki defines the transport boundary to a MediaWiki-based
// Open Semantic World instance, together with page-title helpers and
// the error categories used throughout the client.
//
// The wire protocol itself (api.php, Semantic MediaWiki ask endpoints)
// lives behind the Transport interface; the core never speaks HTTP
// directly.
package wiki

import (
	"context"
	"io"
)

// PageData is the transport-level representation of a multi-slot page.
type PageData struct {
	// FullTitle is the unique page key, "Namespace:Title".
	FullTitle string

	// Exists reports whether the page is present on the server.
	Exists bool

	// Slots maps slot name to raw slot content. JSON slots carry the
	// serialized document; wikitext slots carry plain text.
	Slots map[string]string

	// ContentModels maps slot name to the server-side content model
	// (e.g. "wikitext", "json").
	ContentModels map[string]string
}

// SlotUpdate describes a single slot write within a page edit.
type SlotUpdate struct {
	// Slot is the slot name ("main", "jsondata", ...).
	Slot string

	// Content is the serialized slot content.
	Content string

	// ContentModel declares the content model when the slot has to be
	// created on the server. Ignored for existing slots.
	ContentModel string
}

// SearchQuery is a Semantic MediaWiki ask query with paging controls.
type SearchQuery struct {
	// Query is the ask-language condition, e.g. "[[HasType::Category:OSW...]]".
	Query string

	// Limit bounds the number of returned titles. Zero means server default.
	Limit int

	// Offset skips the first n results.
	Offset int
}

// Transport is the wire adapter to a wiki instance. Implementations
// must be safe for concurrent use; the slot store fans out batch
// operations over a shared Transport.
type Transport interface {
	// GetPage fetches all slots of a page. A missing page returns a
	// PageData with Exists=false and no error; transport failures
	// return a TransportError.
	GetPage(ctx context.Context, fullTitle string) (*PageData, error)

	// EditPage applies the given slot updates in one edit. The comment
	// is recorded in the page history.
	EditPage(ctx context.Context, fullTitle string, updates []SlotUpdate, comment string) error

	// DeletePage removes a page.
	DeletePage(ctx context.Context, fullTitle string, comment string) error

	// MovePage renames a page, optionally leaving a redirect behind.
	MovePage(ctx context.Context, fullTitle, newFullTitle, comment string, redirect bool) error

	// UploadFile streams file content into the File namespace. When
	// ignoreExisting is set, an existing file of the same name is
	// overwritten without warning.
	UploadFile(ctx context.Context, title string, r io.Reader, comment string, ignoreExisting bool) error

	// DownloadFile streams the content of a file page. The caller owns
	// the returned reader and must close it.
	DownloadFile(ctx context.Context, title string) (io.ReadCloser, error)

	// SemanticSearch runs an ask query and returns matching full titles.
	SemanticSearch(ctx context.Context, q SearchQuery) ([]string, error)

	// PrefixSearch returns full titles starting with the given text.
	PrefixSearch(ctx context.Context, prefix string, limit int) ([]string, error)

	// RawAPI is the escape hatch to api.php. It returns the decoded
	// JSON response body.
	RawAPI(ctx context.Context, action string, params map[string]string) (map[string]any, error)
}
