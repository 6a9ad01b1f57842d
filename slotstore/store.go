// Package slotstore reads and writes multi-slot wiki pages with
// batching, parallelism and per-slot change detection.
package slotstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Store is the multi-slot page store. It is safe for concurrent use;
// batch operations fan out over the shared transport.
type Store struct {
	transport wiki.Transport
	slots     *SlotSet
	logger    *slog.Logger
	metrics   *Metrics

	maxWorkers int

	// Opt-in page cache; invalidated per title on edit and delete.
	cacheMu      sync.Mutex
	cacheEnabled bool
	cache        map[string]*Page
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSlots replaces the default slot set.
func WithSlots(slots *SlotSet) StoreOption {
	return func(s *Store) { s.slots = slots }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithMaxWorkers bounds batch fan-out.
func WithMaxWorkers(n int) StoreOption {
	return func(s *Store) { s.maxWorkers = n }
}

// WithMetrics registers slot-store metrics with reg.
func WithMetrics(reg prometheus.Registerer) StoreOption {
	return func(s *Store) { s.metrics = NewMetrics(reg) }
}

// NewStore creates a slot store over the given transport.
func NewStore(transport wiki.Transport, opts ...StoreOption) *Store {
	s := &Store{
		transport:  transport,
		slots:      DefaultSlots(),
		logger:     slog.Default(),
		maxWorkers: DefaultMaxWorkers,
		cache:      map[string]*Page{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slots returns the store's slot set.
func (s *Store) Slots() *SlotSet { return s.slots }

// Transport returns the underlying transport.
func (s *Store) Transport() wiki.Transport { return s.transport }

// EnableCache turns on the in-memory page cache.
func (s *Store) EnableCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheEnabled = true
}

// DisableCache turns the cache off and clears it.
func (s *Store) DisableCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheEnabled = false
	s.cache = map[string]*Page{}
}

// CacheEnabled reports the cache state.
func (s *Store) CacheEnabled() bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheEnabled
}

func (s *Store) cachedPage(fullTitle string) (*Page, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if !s.cacheEnabled {
		return nil, false
	}
	p, ok := s.cache[fullTitle]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (s *Store) storeInCache(p *Page) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheEnabled {
		s.cache[p.FullTitle] = p.Clone()
	}
}

func (s *Store) invalidate(fullTitle string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.cache, fullTitle)
}

// GetPagesParam configures a batch page fetch.
type GetPagesParam struct {
	// Titles are the full page titles to fetch.
	Titles []string

	// RaiseException upgrades missing pages and per-item failures to
	// an error return. Without it, missing pages yield placeholders
	// with Exists=false and a warning naming every missing title.
	RaiseException bool

	// Parallel fans the fetch out over the worker pool.
	Parallel bool
}

// GetPages fetches a batch of pages. Results keep the order of
// param.Titles. Per-item errors are collected into the returned
// BatchErrors unless RaiseException aborts on the first failure.
func (s *Store) GetPages(ctx context.Context, param GetPagesParam) ([]*Page, BatchErrors, error) {
	workers := 1
	if param.Parallel {
		workers = s.maxWorkers
	}
	pages, errs := fanOut(ctx, param.Titles, workers, param.RaiseException,
		func(ctx context.Context, title string) (*Page, error) {
			return s.GetPage(ctx, title)
		})
	if param.RaiseException && len(errs) > 0 {
		return nil, errs, errs
	}

	var missing []string
	ordered := make([]*Page, 0, len(param.Titles))
	for _, title := range param.Titles {
		page, ok := pages[title]
		if !ok {
			if _, failed := errs[title]; failed {
				continue
			}
			page = NewPage(title, s.slots)
		}
		if !page.Exists {
			missing = append(missing, title)
			if param.RaiseException {
				return nil, errs, &wiki.NotFoundError{FullTitle: title}
			}
		}
		ordered = append(ordered, page)
	}
	if len(missing) > 0 {
		s.logger.Warn("requested pages do not exist", "titles", missing)
	}
	return ordered, errs, nil
}

// GetPage fetches a single page.
func (s *Store) GetPage(ctx context.Context, fullTitle string) (*Page, error) {
	if page, ok := s.cachedPage(fullTitle); ok {
		s.metrics.incCacheHits()
		return page, nil
	}
	data, err := s.transport.GetPage(ctx, fullTitle)
	if err != nil {
		return nil, err
	}
	s.metrics.incPageReads()
	page, err := pageFromData(data, s.slots)
	if err != nil {
		return nil, err
	}
	if !page.Exists {
		s.metrics.incPagesMissing()
	}
	s.storeInCache(page)
	return page, nil
}

// EditPage uploads the slots of page that changed since fetch. Slots
// missing on the server are created with their declared content model.
// An unmodified page triggers zero write calls. Returns the names of
// the uploaded slots.
func (s *Store) EditPage(ctx context.Context, page *Page, comment string) ([]string, error) {
	changed, err := page.ChangedSlots()
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		s.metrics.incEditsSkipped()
		s.logger.Debug("edit skipped, no slot changed", "title", page.FullTitle)
		return nil, nil
	}
	updates := make([]wiki.SlotUpdate, 0, len(changed))
	for _, slot := range changed {
		content, err := serializeForUpload(page.GetSlotContent(slot), page.ContentModel(slot))
		if err != nil {
			return nil, fmt.Errorf("page %q slot %q: %w", page.FullTitle, slot, err)
		}
		updates = append(updates, wiki.SlotUpdate{
			Slot:         slot,
			Content:      content,
			ContentModel: page.ContentModel(slot),
		})
	}
	if err := s.transport.EditPage(ctx, page.FullTitle, updates, comment); err != nil {
		return nil, err
	}
	s.metrics.addSlotWrites(len(updates))
	s.invalidate(page.FullTitle)
	page.Exists = true
	if err := page.markClean(); err != nil {
		return changed, err
	}
	s.logger.Info("page edited", "title", page.FullTitle, "slots", changed)
	return changed, nil
}

// DeletePage removes a page and drops it from the cache.
func (s *Store) DeletePage(ctx context.Context, page *Page, comment string) error {
	if err := s.transport.DeletePage(ctx, page.FullTitle, comment); err != nil {
		return err
	}
	s.invalidate(page.FullTitle)
	page.Exists = false
	s.logger.Info("page deleted", "title", page.FullTitle)
	return nil
}

// CopyPagesParam configures a cross-site page copy.
type CopyPagesParam struct {
	// Source is the store of the site to copy from.
	Source *Store

	// Titles are the full titles to copy.
	Titles []string

	// Overwrite also updates pages that already exist on the target.
	// Without it, existing target pages are skipped entirely.
	Overwrite bool

	// Comment is recorded on target edits.
	Comment string

	// Parallel fans the copy out over the worker pool.
	Parallel bool
}

// CopyResult reports one copied page.
type CopyResult struct {
	FullTitle string

	// UpdatedSlots lists the slots that were actually uploaded; empty
	// when the target was already identical.
	UpdatedSlots []string
}

// CopyPages copies pages from a source site into this store's site.
// Each page is compared slot by slot against the target; identical
// slots are skipped, so re-copying an unchanged source uploads
// nothing.
func (s *Store) CopyPages(ctx context.Context, param CopyPagesParam) ([]CopyResult, BatchErrors, error) {
	workers := 1
	if param.Parallel {
		workers = s.maxWorkers
	}
	results, errs := fanOut(ctx, param.Titles, workers, false,
		func(ctx context.Context, title string) (CopyResult, error) {
			return s.copyPage(ctx, param.Source, title, param.Overwrite, param.Comment)
		})
	ordered := make([]CopyResult, 0, len(param.Titles))
	for _, title := range param.Titles {
		if r, ok := results[title]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, errs, errs.Err()
}

func (s *Store) copyPage(ctx context.Context, source *Store, title string, overwrite bool, comment string) (CopyResult, error) {
	src, err := source.GetPage(ctx, title)
	if err != nil {
		return CopyResult{}, err
	}
	if !src.Exists {
		return CopyResult{}, &wiki.NotFoundError{FullTitle: title}
	}
	dst, err := s.GetPage(ctx, title)
	if err != nil {
		return CopyResult{}, err
	}
	if dst.Exists && !overwrite {
		s.logger.Debug("copy skipped, target exists", "title", title)
		return CopyResult{FullTitle: title}, nil
	}
	for _, slot := range src.SlotNames() {
		dst.SetSlotContent(slot, deepCopyValue(src.GetSlotContent(slot)))
	}
	updated, err := s.EditPage(ctx, dst, comment)
	if err != nil {
		return CopyResult{}, err
	}
	return CopyResult{FullTitle: title, UpdatedSlots: updated}, nil
}
