package session

import (
	"context"
	"sync"
	"time"
)

// Locker serialises turns per session identifier.
type Locker interface {
	// Lock blocks until the session lock is held or ctx is done.
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

type lockEntry struct {
	sem      chan struct{}
	waiters  int
	lastUsed time.Time
}

// LocalLocker is an in-process keyed lock.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*lockEntry)}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.waiters++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.mu.Lock()
		e.waiters--
		e.lastUsed = time.Now()
		l.mu.Unlock()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			e.waiters--
			e.lastUsed = time.Now()
			l.mu.Unlock()
			<-e.sem
		})
	}, nil
}

// Sweep drops lock entries nobody holds or waits on that have been idle for
// longer than idle. It returns the number of entries removed.
func (l *LocalLocker) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for id, e := range l.entries {
		if e.waiters == 0 && len(e.sem) == 0 && e.lastUsed.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked lock entries.
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
