package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Invalidator drops state cached from the files of a directory.
//
// In production, this is satisfied by *ovmf.Cache and *cpu.Catalog.
type Invalidator interface {
	Invalidate()
}

// Watcher invalidates caches when files in their directories change.
type Watcher struct {
	w    *fsnotify.Watcher
	dirs map[string][]Invalidator
	log  logr.Logger
}

// NewWatcher starts watching dirs. Directories that cannot be watched are
// logged and skipped; their caches simply never invalidate.
func NewWatcher(dirs map[string]Invalidator, log logr.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	watcher := &Watcher{w: w, dirs: make(map[string][]Invalidator), log: log}
	for dir, inv := range dirs {
		dir = filepath.Clean(dir)
		if err := w.Add(dir); err != nil {
			log.Error(err, "Failed to watch directory", "dir", dir)
			continue
		}
		watcher.dirs[dir] = append(watcher.dirs[dir], inv)
	}
	return watcher, nil
}

// Run handles file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.w.Close()

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			dir := filepath.Dir(ev.Name)
			for _, inv := range w.dirs[dir] {
				inv.Invalidate()
			}
			w.log.V(1).Info("Invalidated cache", "dir", dir, "file", filepath.Base(ev.Name), "op", ev.Op.String())
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.log.Error(err, "File watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}
