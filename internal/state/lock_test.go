package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AcquireAndReleaseLock(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	lock, err := store.AcquireLock()
	require.NoError(t, err)

	// Second acquisition from this live process must fail.
	_, err = store.AcquireLock()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	// Released, so the lock is available again.
	lock2, err := store.AcquireLock()
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestStore_AcquireLock_BreaksStaleLock(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	store := NewStore(tmpDir)

	// Plant a lock file owned by a pid that cannot exist.
	lockDir := filepath.Join(tmpDir, ".stride")
	require.NoError(t, os.MkdirAll(lockDir, 0o755))
	stale, err := json.Marshal(lockInfo{Owner: "dead", PID: 1 << 30, AcquiredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "progress.lock"), stale, 0o644))

	lock, err := store.AcquireLock()
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestStore_AcquireLock_UnreadableLockTreatedAsStale(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	store := NewStore(tmpDir)

	lockDir := filepath.Join(tmpDir, ".stride")
	require.NoError(t, os.MkdirAll(lockDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "progress.lock"), []byte("not json"), 0o644))

	lock, err := store.AcquireLock()
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestLock_Release_MissingFileIsNoop(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	lock, err := store.AcquireLock()
	require.NoError(t, err)

	require.NoError(t, os.Remove(lock.path))
	require.NoError(t, lock.Release())
}
