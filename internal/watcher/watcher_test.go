package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []EventKind
}

func (r *recorder) record(k EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, k)
}

func (r *recorder) last() (EventKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return 0, false
	}
	return r.events[len(r.events)-1], true
}

func TestWatcher_WriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curriculum.yml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0600))

	rec := &recorder{}
	w, err := New(path, rec.record)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("b"), 0600))
	assert.Eventually(t, func() bool {
		k, ok := rec.last()
		return ok && k == Changed
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		k, ok := rec.last()
		return ok && k == Removed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curriculum.yml")

	rec := &recorder{}
	w, err := New(path, rec.record)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	time.Sleep(100 * time.Millisecond)
	_, ok := rec.last()
	assert.False(t, ok)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "x.yml"), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "removed", Removed.String())
}
