// Package session manages the filesystem lock record that coordinates the
// start and stop invocations. The lock file holds the PID of the active
// capture process and its presence is the sole source of truth for
// "a session is active".
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	ErrNotLocked = errors.New("no active session lock")

	// ErrStaleLock marks a lock whose recorded process no longer exists.
	// Callers treat it as a warning and proceed with teardown.
	ErrStaleLock = errors.New("lock record references a dead process")
)

type Store struct {
	LockPath string
}

func NewStore(lockPath string) *Store {
	return &Store{LockPath: lockPath}
}

// Active reports whether a lock record exists. It does not verify that the
// recorded process is alive; that check happens on the stop path.
func (s *Store) Active() bool {
	_, err := os.Stat(s.LockPath)
	return err == nil
}

func (s *Store) Acquire(pid int) error {
	if err := os.MkdirAll(filepath.Dir(s.LockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	if err := os.WriteFile(s.LockPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write lock record: %w", err)
	}

	return nil
}

func (s *Store) Read() (int, error) {
	data, err := os.ReadFile(s.LockPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotLocked
		}
		return 0, fmt.Errorf("read lock record: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse lock record %s: %w", s.LockPath, err)
	}

	return pid, nil
}

// Release removes the lock record. A missing file is not an error.
func (s *Store) Release() error {
	err := os.Remove(s.LockPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SignalStop requests termination of the recorded process. A stale lock
// yields ErrStaleLock so the caller can log a warning and continue.
func (s *Store) SignalStop() error {
	pid, err := s.Read()
	if err != nil {
		return err
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("%w: pid %d", ErrStaleLock, pid)
		}
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	return nil
}

// Alive probes a process with signal 0.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
