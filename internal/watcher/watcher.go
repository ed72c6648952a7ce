// Package watcher provides file system watching for configuration files that
// are edited while the process runs.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// EventKind classifies what happened to the watched file.
type EventKind int

const (
	// Changed means the file was created or its content was written.
	Changed EventKind = iota
	// Removed means the file (or its directory) no longer exists.
	Removed
)

func (k EventKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "changed"
}

// Watcher monitors a single file and calls onEvent after changes settle.
// It watches the parent directory since editors often replace files by
// rename, and fsnotify cannot watch non-existent files.
type Watcher struct {
	targetPath string
	parentPath string
	onEvent    func(EventKind)
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// New creates a new Watcher for the given target path.
func New(targetPath string, onEvent func(EventKind)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	return &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onEvent:    onEvent,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   100 * time.Millisecond,
	}, nil
}

// SetDebounce overrides the settle delay. Must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to add initial watch")
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	fire := func(kind EventKind) {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.debounce, func() {
			w.dispatch(kind)
		})
	}

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			eventPath := filepath.Clean(event.Name)

			switch {
			case eventPath == w.parentPath && event.Op&fsnotify.Remove != 0:
				log.Info().Str("path", w.parentPath).Msg("Parent directory deleted")
				fire(Removed)

			case eventPath == w.parentPath && event.Op&fsnotify.Create != 0:
				log.Info().Str("path", w.parentPath).Msg("Parent directory recreated, re-establishing watch")
				_ = w.addWatch()

			case eventPath == w.targetPath && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				fire(Removed)

			case eventPath == w.targetPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				// A create after a pending remove is an atomic replace.
				fire(Changed)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) dispatch(kind EventKind) {
	if w.ctx.Err() != nil {
		return
	}
	if kind == Removed {
		// Editors that save via rename recreate the file right away.
		if _, err := os.Stat(w.targetPath); err == nil {
			kind = Changed
		}
	}
	log.Info().Str("path", w.targetPath).Stringer("event", kind).Msg("Watched file event")
	if w.onEvent != nil {
		w.onEvent(kind)
	}
	if kind == Removed {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := w.addWatch(); err != nil {
				log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to re-establish watch")
			}
		}()
	}
}
