package catalog

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harun/ironclaw/internal/observability"
)

// Handle holds the current catalog snapshot and supports atomic replacement
// when the source file changes. Readers always see a complete catalog.
type Handle struct {
	current atomic.Pointer[Catalog]
}

// NewHandle creates a handle serving the given catalog
func NewHandle(cat *Catalog) *Handle {
	h := &Handle{}
	h.current.Store(cat)
	observability.SetCatalogSize(cat.Len())
	observability.SetMissingArtifacts(len(cat.MissingArtifacts()))
	return h
}

// Snapshot returns the current catalog. The snapshot stays valid for the
// caller even if a reload swaps the handle underneath it.
func (h *Handle) Snapshot() *Catalog {
	return h.current.Load()
}

// replace swaps in a new catalog and refreshes the gauges
func (h *Handle) replace(cat *Catalog) {
	h.current.Store(cat)
	observability.SetCatalogSize(cat.Len())
	observability.SetMissingArtifacts(len(cat.MissingArtifacts()))
}

// Watcher reloads the catalog when its source file changes on disk.
// A reload that fails leaves the previous snapshot in place.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	handle   *Handle
	loader   *Loader
	path     string
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewWatcher creates a watcher for the catalog source at path
func NewWatcher(logger zerolog.Logger, handle *Handle, loader *Loader, path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		logger:   logger.With().Str("component", "catalog-watcher").Logger(),
		handle:   handle,
		loader:   loader,
		path:     path,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Start begins watching the source file's directory. Watching the directory
// rather than the file survives editors that replace the file on save.
func (w *Watcher) Start() error {
	return w.watcher.Add(filepath.Dir(w.path))
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

// run processes file system events
func (w *Watcher) run() {
	base := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only the catalog source file matters
			if filepath.Base(event.Name) != base {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("file", base).
					Str("op", event.Op.String()).
					Msg("Catalog source change detected")

				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Catalog watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload debounces the reload operation
func (w *Watcher) scheduleReload() {
	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads the source again and swaps the handle on success
func (w *Watcher) reload() {
	cat, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str("path", w.path).
			Msg("Catalog reload failed, keeping previous snapshot")
		return
	}

	w.handle.replace(cat)

	observability.RecordCatalogAudit(context.Background(), "catalog_reloaded", "system", map[string]interface{}{
		"capabilities": cat.Len(),
	})

	w.logger.Info().
		Int("capabilities", cat.Len()).
		Msg("Catalog reloaded")
}
