// Package workspace serializes applies against one root.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

const lockFileName = "lock"

// ErrLocked is returned when another process holds the lock of the root.
var ErrLocked = errors.New("workspace is locked by another lander process")

// Lock represents an acquired workspace lock.
type Lock struct {
	file     *os.File
	lockPath string
	mu       sync.Mutex
}

// AcquireLock takes an exclusive, non-blocking lock on root. The lock file
// lives in dir, which is created when missing. It guards both the files
// under root and the per-root patch artifact.
func AcquireLock(root, dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lockPath := filepath.Join(dir, lockFileName)

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace lock file: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("%w: %s", ErrLocked, root)
	}

	// PID for debugging stale locks.
	lockFile.Truncate(0)
	lockFile.Seek(0, 0)
	fmt.Fprintf(lockFile, "%d\n", os.Getpid())

	return &Lock{file: lockFile, lockPath: lockPath}, nil
}

// Release releases the lock and removes the lock file. It is safe to call
// more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.lockPath)
	l.file = nil
}
