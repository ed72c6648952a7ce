package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/designpartner/pkg/models"
)

const (
	// SessionTimeout is how long an untouched snapshot or lock entry is kept in memory.
	SessionTimeout = 30 * time.Minute
	// CleanupInterval is how often idle in-memory state is swept.
	CleanupInterval = 5 * time.Minute
)

// Manager owns the persisted form of sessions. It serialises writers per
// session and serves committed snapshots to concurrent readers.
type Manager struct {
	store     Store
	locker    Locker
	snapshots *gocache.Cache
	cron      *cron.Cron
	// cacheReads is off when other processes may write the same store.
	cacheReads bool

	mu        sync.RWMutex
	onCreated func(string)
	onDeleted func(string)
	onSaved   func(*models.Session)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// NewManager creates a session manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		locker:    NewLocalLocker(),
		snapshots: gocache.New(SessionTimeout, CleanupInterval),
	}
	for _, opt := range opts {
		opt(m)
	}
	_, m.cacheReads = m.locker.(*LocalLocker)
	return m
}

// SetOnSessionCreated sets a callback for session creation.
func (m *Manager) SetOnSessionCreated(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreated = fn
}

// SetOnSessionDeleted sets a callback for session deletion.
func (m *Manager) SetOnSessionDeleted(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDeleted = fn
}

// SetOnSessionSaved sets a callback receiving a copy of each committed session.
func (m *Manager) SetOnSessionSaved(fn func(*models.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSaved = fn
}

// Start schedules the idle sweep.
func (m *Manager) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", CleanupInterval), func() { m.Sweep(SessionTimeout) }); err != nil {
		return err
	}
	c.Start()
	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	return nil
}

// Sweep drops expired snapshots and idle lock entries.
func (m *Manager) Sweep(idle time.Duration) {
	m.snapshots.DeleteExpired()
	if ll, ok := m.locker.(*LocalLocker); ok {
		if n := ll.Sweep(idle); n > 0 {
			log.Debug().Int("removed", n).Msg("Swept idle session locks")
		}
	}
}

// Shutdown stops the sweeper and closes the store.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	return m.store.Close()
}

// NewSession creates and persists an empty session.
func (m *Manager) NewSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	sess := models.NewSession(id, models.Now())
	if err := m.store.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	m.snapshots.SetDefault(id, sess.Clone())

	log.Info().Str("session", id).Msg("Session created")

	m.mu.RLock()
	cb := m.onCreated
	m.mu.RUnlock()
	if cb != nil {
		cb(id)
	}
	return id, nil
}

// Load returns a private working copy of the last committed state.
// It fails with models.ErrSessionNotFound for unknown identifiers.
func (m *Manager) Load(ctx context.Context, id string) (*models.Session, error) {
	if m.cacheReads {
		if v, ok := m.snapshots.Get(id); ok {
			return v.(*models.Session).Clone(), nil
		}
	}
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.snapshots.SetDefault(id, sess.Clone())
	return sess, nil
}

// Snapshot returns the most recently committed state for readers. It never
// observes a partially applied turn.
func (m *Manager) Snapshot(ctx context.Context, id string) (*models.Session, error) {
	return m.Load(ctx, id)
}

// Save commits sess atomically and advances its revision. On failure the
// revision is left unchanged so the save can be retried as is.
func (m *Manager) Save(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.Document == nil || sess.Coverage == nil {
		return errors.New("save session: incomplete session")
	}

	sess.Revision++
	if err := m.store.Save(ctx, sess); err != nil {
		sess.Revision--
		if errors.Is(err, models.ErrRevisionConflict) {
			// Another writer committed first; drop our view of it.
			m.snapshots.Delete(sess.ID)
		}
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}

	committed := sess.Clone()
	m.snapshots.SetDefault(sess.ID, committed)

	m.mu.RLock()
	cb := m.onSaved
	m.mu.RUnlock()
	if cb != nil {
		cb(committed.Clone())
	}
	return nil
}

// Clear permanently deletes a session. It is an explicit operator action;
// sessions are never removed automatically.
func (m *Manager) Clear(ctx context.Context, id string) error {
	unlock, err := m.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.snapshots.Delete(id)

	log.Info().Str("session", id).Msg("Session cleared")

	m.mu.RLock()
	cb := m.onDeleted
	m.mu.RUnlock()
	if cb != nil {
		cb(id)
	}
	return nil
}

// Lock acquires the per-session writer lock.
func (m *Manager) Lock(ctx context.Context, id string) (func(), error) {
	return m.locker.Lock(ctx, id)
}

// List returns summaries of all persisted sessions.
func (m *Manager) List(ctx context.Context) ([]models.SessionSummary, error) {
	return m.store.List(ctx)
}

// Document returns a historical document version of a session.
func (m *Manager) Document(ctx context.Context, id string, version int64) (*models.Document, error) {
	return m.store.Document(ctx, id, version)
}
