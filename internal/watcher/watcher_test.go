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
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) last() (Event, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Changed, 0
	}
	return r.events[len(r.events)-1], len(r.events)
}

func startWatcher(t *testing.T, path string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(path, rec.record, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_CreateWriteRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	rec := &recorder{}
	startWatcher(t, path, rec)

	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0600))
	require.Eventually(t, func() bool {
		ev, n := rec.last()
		return n >= 1 && ev == Changed
	}, 2*time.Second, 10*time.Millisecond)

	_, before := rec.last()
	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0600))
	require.Eventually(t, func() bool {
		_, n := rec.last()
		return n > before
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		ev, _ := rec.last()
		return ev == Removed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, filepath.Join(dir, "config.yml"), rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x"), 0600))
	time.Sleep(150 * time.Millisecond)
	_, n := rec.last()
	assert.Zero(t, n)
}

func TestWatcher_MissingParent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "config.yml"), nil)
	require.NoError(t, err)
	assert.Error(t, w.Start())
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "config.yml"), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "removed", Removed.String())
}
