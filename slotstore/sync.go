package slotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// slotFileExt returns the on-disk extension for a content model.
func slotFileExt(contentModel string) string {
	if contentModel == ModelJSON {
		return ".json"
	}
	return ".wikitext"
}

// DumpPage writes every slot of page into dir, one file per slot named
// <slot>.<ext>. The files are suitable for local editing and for
// SyncPage to watch.
func DumpPage(page *Page, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create slot dump directory: %w", err)
	}
	for _, slot := range page.SlotNames() {
		content, err := serializeForUpload(page.GetSlotContent(slot), page.ContentModel(slot))
		if err != nil {
			return fmt.Errorf("dump slot %q: %w", slot, err)
		}
		path := filepath.Join(dir, slot+slotFileExt(page.ContentModel(slot)))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write slot file %q: %w", path, err)
		}
	}
	return nil
}

// LoadSlotFile applies one dumped slot file back onto the page.
func LoadSlotFile(page *Page, path string) error {
	base := filepath.Base(path)
	slot := strings.TrimSuffix(strings.TrimSuffix(base, ".json"), ".wikitext")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read slot file %q: %w", path, err)
	}
	if strings.HasSuffix(base, ".json") {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse slot file %q: %w", path, err)
		}
		page.SetSlotContent(slot, doc)
	} else {
		page.SetSlotContent(slot, string(data))
	}
	return nil
}

// SyncConfig configures a page sync session.
type SyncConfig struct {
	// Dir is the slot dump directory to watch.
	Dir string

	// Comment is recorded on every upload triggered by the sync.
	Comment string

	// DebounceDelay is how long to wait for further changes before
	// uploading. Defaults to 500ms.
	DebounceDelay time.Duration

	// Logger for sync events.
	Logger *slog.Logger
}

// SyncPage dumps page into cfg.Dir, then watches the directory and
// writes changed slots back to the wiki until ctx is canceled. Edits
// are debounced; only slots whose content differs from the as-fetched
// snapshot are uploaded.
func (s *Store) SyncPage(ctx context.Context, page *Page, cfg SyncConfig) error {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = s.logger
	}
	if err := DumpPage(page, cfg.Dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(cfg.Dir); err != nil {
		return fmt.Errorf("watch %q: %w", cfg.Dir, err)
	}
	logger.Info("syncing page from local slot files", "title", page.FullTitle, "dir", cfg.Dir)

	pending := map[string]bool{}
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		for path := range pending {
			if err := LoadSlotFile(page, path); err != nil {
				logger.Warn("skipping unreadable slot file", "path", path, "error", err)
			}
		}
		pending = map[string]bool{}
		updated, err := s.EditPage(ctx, page, cfg.Comment)
		if err != nil {
			logger.Error("sync upload failed", "title", page.FullTitle, "error", err)
			return
		}
		if len(updated) > 0 {
			logger.Info("synced slots", "title", page.FullTitle, "slots", updated)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".json" && ext != ".wikitext" {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(cfg.DebounceDelay)
			} else {
				timer.Reset(cfg.DebounceDelay)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			flush()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
