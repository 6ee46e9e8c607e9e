package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes made to the upload area outside the Store, for
// example files copied in by hand.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching the store's upload directory.
func NewWatcher(store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(store.UploadDir()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", store.UploadDir(), err)
	}
	return &Watcher{store: store, watcher: w}, nil
}

// Run forwards file system events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Capture channels once so Close cannot race the select
	eventsCh := w.watcher.Events
	errorsCh := w.watcher.Errors

	w.store.logger.Info("Storage", "Watching %s for changes", w.store.UploadDir())
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-eventsCh:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return nil
			}
			w.store.logger.Error("Storage", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if validateName(name) != nil || w.store.ownedRecently(name) {
		return
	}

	var kind EventKind
	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		kind = EventUploaded
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		kind = EventDeleted
	default:
		return
	}

	w.store.logger.Debug("Storage", "External change: %s %s", kind, name)
	w.store.Publish(Event{Name: name, Kind: kind, Time: time.Now()})
}
