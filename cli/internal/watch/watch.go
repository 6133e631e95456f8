// Package watch re-runs a callback whenever a watched file is written.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/expreql/expreql/internal/debug"
)

// DefaultDebounce collapses editor write bursts into one callback.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a single file for changes
type Watcher struct {
	file     string
	debounce time.Duration
	callback func(path string) error
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher on file. The parent directory is watched so
// editors that replace the file on save are still seen.
func NewWatcher(file string, debounce time.Duration, callback func(path string) error) (*Watcher, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		file:     absPath,
		debounce: debounce,
		callback: callback,
		watcher:  watcher,
	}, nil
}

// Run calls the callback once, then again after every change, until ctx is
// done. Callback errors after the first call are logged and watching goes on.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(w.file); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	log := debug.With("file", w.file)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if path, err := filepath.Abs(event.Name); err == nil && path == w.file {
				timer.Reset(w.debounce)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			if err := w.callback(w.file); err != nil {
				log.Warn("watch callback failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "error", err)

		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}
