package curriculum

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/designpartner/internal/watcher"
)

// Live holds the current curriculum and swaps it when the backing file changes.
// Sessions read a consistent registry per turn through Current.
type Live struct {
	mu       sync.RWMutex
	path     string
	reg      *Registry
	watcher  *watcher.Watcher
	onReload func(*Registry)
}

// NewLive loads the curriculum at path. An empty path serves the built-in default.
func NewLive(path string) (*Live, error) {
	reg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Live{path: path, reg: reg}, nil
}

// Static wraps a fixed registry.
func Static(reg *Registry) *Live {
	return &Live{reg: reg}
}

// Current returns the active registry.
func (l *Live) Current() *Registry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reg
}

// SetOnReload registers a callback invoked after each successful reload.
func (l *Live) SetOnReload(fn func(*Registry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = fn
}

// Reload re-reads the backing file. A file that fails to parse leaves the
// active registry in place.
func (l *Live) Reload() error {
	if l.path == "" {
		return nil
	}
	reg, err := Load(l.path)
	if err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("Curriculum reload failed, keeping previous topics")
		return err
	}

	l.mu.Lock()
	l.reg = reg
	cb := l.onReload
	l.mu.Unlock()

	log.Info().Str("path", l.path).Int("topics", reg.Len()).Msg("Curriculum reloaded")
	if cb != nil {
		cb(reg)
	}
	return nil
}

// Watch starts reloading on file changes. It is a no-op for the built-in curriculum.
func (l *Live) Watch() error {
	if l.path == "" {
		return nil
	}
	w, err := watcher.New(l.path, func(kind watcher.EventKind) {
		// A removed file falls back to the built-in default through Load.
		_ = l.Reload()
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	l.mu.Lock()
	l.watcher = w
	l.mu.Unlock()
	return nil
}

// Close stops watching.
func (l *Live) Close() error {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}
