// Package filelock provides a simple file-based mutual exclusion lock.
// It keeps two processes from writing into the same download directory at
// the same time. The lock for a path is a sibling file named "<path>.lock"
// holding a JSON description of the owner.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockHeld is returned when attempting to acquire a lock that is already held.
var ErrLockHeld = errors.New("lock already held")

// LockInfo describes the process holding a lock.
type LockInfo struct {
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname,omitempty"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// lockPath returns the lock file guarding path.
func lockPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath + ".lock", nil
}

// TryLock attempts to acquire the lock for the given path without blocking.
// Returns a function to release the lock, or ErrLockHeld if another owner holds it.
// A lock left behind by a crashed process must be removed by hand.
func TryLock(path string) (func(), error) {
	lockFile, err := lockPath(path)
	if err != nil {
		return nil, err
	}

	// O_EXCL ensures that this call creates the file - if it already exists, it will fail
	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	hostname, _ := os.Hostname()
	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		os.Remove(lockFile)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	unlock := func() {
		os.Remove(lockFile)
	}
	return unlock, nil
}

// ReadLockInfo returns the owner recorded in the lock file for path.
func ReadLockInfo(path string) (*LockInfo, error) {
	lockFile, err := lockPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(lockFile)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("malformed lock file %s: %w", lockFile, err)
	}
	return &info, nil
}
