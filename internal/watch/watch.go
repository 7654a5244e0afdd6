// Package watch implements the read-cache's optional proactive
// invalidator: an fsnotify watcher that appends an Invalidation entry
// the moment a tracked file changes outside of a read, instead of
// waiting for the next read to notice the hash drifted.
package watch

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/Gurpartap/pi-readcache/internal/rclog"
	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
)

// InvalidationSink is whatever records an Invalidation entry — the
// host's persisted session log, in production.
type InvalidationSink interface {
	AppendInvalidationPersisted(inv *metadata.Invalidation) (sessionlog.Entry, error)
}

// Watcher watches a set of tracked paths and emits a full-scope
// Invalidation for each one that changes. Disabled by default; nothing
// in the core decision/replay/trust path depends on it running.
type Watcher struct {
	fsw      *fsnotify.Watcher
	sink     InvalidationSink
	debounce time.Duration
	pending  map[string]time.Time
	events   chan fsnotify.Event
	done     chan struct{}
}

// New creates a Watcher that reports invalidations to sink.
func New(sink InvalidationSink, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		sink:     sink,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}, nil
}

// Track adds path to the watch set.
func (w *Watcher) Track(path string) error {
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("watch: add %q: %w", path, err)
	}
	return nil
}

// Run blocks, emitting an Invalidation for each debounced write event,
// until Close is called.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debouncedInvalidate(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			rclog.Warn("watch error", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) debouncedInvalidate(path string) {
	now := time.Now()
	if last, ok := w.pending[path]; ok && now.Sub(last) < w.debounce {
		w.pending[path] = now
		return
	}
	w.pending[path] = now
	time.Sleep(w.debounce)

	inv, ok := metadata.BuildInvalidation(path, metadata.FullScope, now.UnixMilli())
	if !ok {
		return
	}
	if _, err := w.sink.AppendInvalidationPersisted(&inv); err != nil {
		rclog.Warn("watch: failed to record invalidation", "path", path, "err", err)
	}
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
