// Package filewatcher reports changes to the knowledge base folder.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // Lower-cased, e.g. ".txt"
}

// NewFSNotifyWatcher creates a new file watcher. Only the given extensions
// are reported; the default is ".txt".
func NewFSNotifyWatcher(extensions []string) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".txt"}
	}
	lowered := make([]string, len(extensions))
	for i, e := range extensions {
		lowered[i] = strings.ToLower(e)
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: lowered,
	}, nil
}

// Watch starts monitoring dir. The channel closes when ctx ends or Stop is called.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				op, ok := operation(event.Op)
				if !ok {
					continue
				}

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("dir", dir).Msg("file watcher error")
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func operation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	default:
		return 0, false
	}
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
