package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ErrLocked is returned when another live session holds the progress lock.
var ErrLocked = errors.New("progress record is locked by another session")

// lockInfo is the JSON payload written to progress.lock.
type lockInfo struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is an advisory exclusive lock on the progress record. A session
// acquires it at load and releases it at checkpoint or abort; no two
// sessions may run concurrently against the same record.
type Lock struct {
	path  string
	owner string
}

// lockPath returns the path to the lock file.
func (s *Store) lockPath() string {
	return filepath.Join(s.strideDir(), "progress.lock")
}

// AcquireLock takes the advisory session lock. A lock left behind by a dead
// process is broken and re-acquired; a lock held by a live process returns
// ErrLocked.
func (s *Store) AcquireLock() (*Lock, error) {
	if err := os.MkdirAll(s.strideDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create .stride directory: %w", err)
	}

	path := s.lockPath()
	owner := uuid.NewString()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			info := lockInfo{Owner: owner, PID: os.Getpid(), AcquiredAt: time.Now()}
			data, merr := json.Marshal(info)
			if merr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("failed to marshal lock info: %w", merr)
			}
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to close lock file: %w", cerr)
			}
			return &Lock{path: path, owner: owner}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		holder, rerr := readLockInfo(path)
		if rerr != nil {
			// Unreadable lock file: treat as stale.
			os.Remove(path)
			continue
		}
		if processAlive(holder.PID) {
			return nil, fmt.Errorf("%w (pid %d, since %s)", ErrLocked, holder.PID,
				holder.AcquiredAt.Format(time.RFC3339))
		}
		// Stale lock from a dead process: break it and retry once.
		os.Remove(path)
	}

	return nil, fmt.Errorf("%w: could not break stale lock", ErrLocked)
}

// Release removes the lock file if this lock still owns it.
func (l *Lock) Release() error {
	holder, err := readLockInfo(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}
	if holder.Owner != l.owner {
		return fmt.Errorf("lock at %s is no longer owned by this session", l.path)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func readLockInfo(path string) (*lockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// processAlive checks whether a pid refers to a live process using the
// conventional signal-zero probe.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
