package manager

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// RosterWatcher reloads a roster file whenever it changes and applies the
// result to the manager. Reload errors are logged and skipped; a broken
// edit never disturbs the running registry.
type RosterWatcher struct {
	manager *Manager
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchRoster starts watching the given roster file. The parent directory
// is watched so editor rename-and-replace saves are picked up.
func WatchRoster(m *Manager, path string) (*RosterWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating roster watcher: %w", err)
	}

	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching roster directory: %w", err)
	}

	rw := &RosterWatcher{
		manager: m,
		path:    path,
		watcher: w,
		done:    make(chan struct{}),
	}
	go rw.loop()
	return rw, nil
}

func (rw *RosterWatcher) loop() {
	for {
		select {
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rw.reload()
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[roster] watch error: %v", err)
		case <-rw.done:
			return
		}
	}
}

func (rw *RosterWatcher) reload() {
	specs, err := LoadRoster(rw.path)
	if err != nil {
		log.Printf("[roster] reload skipped: %v", err)
		return
	}
	if err := rw.manager.ApplyRoster(specs); err != nil {
		log.Printf("[roster] apply failed: %v", err)
	}
}

// Close stops the watcher.
func (rw *RosterWatcher) Close() error {
	close(rw.done)
	return rw.watcher.Close()
}
