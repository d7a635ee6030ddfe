package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/logging"
)

// LockFileName is the advisory lock file within a conversation directory.
// A deliberation holds the lock for its whole run; a second writer for the
// same conversation is rejected up front instead of corrupting checkpoints.
const LockFileName = "conversation.lock"

// Lock represents an acquired conversation lock.
type Lock struct {
	ConversationID string    `json:"conversation_id"`
	PID            int       `json:"pid"`
	Hostname       string    `json:"hostname"`
	AcquiredAt     time.Time `json:"acquired_at"`

	lockFile string
	logger   *logging.Logger
}

// AcquireLock takes the advisory lock for a conversation. Locks left by
// dead processes are cleaned and re-acquired; a lock held by a live
// process yields errors.ErrConversationLocked.
func (s *Store) AcquireLock(conversationID string) (*Lock, error) {
	dir := s.conversationDir(conversationID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewConversationError(conversationID, "lock", err)
	}
	lockPath := filepath.Join(dir, LockFileName)

	if existing, err := readLock(lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			return nil, errors.NewConversationError(conversationID, "lock",
				fmt.Errorf("%w: held by PID %d on %s", errors.ErrConversationLocked, existing.PID, existing.Hostname))
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.NewConversationError(conversationID, "lock",
				fmt.Errorf("failed to remove stale lock: %w", err))
		}
		s.logger.Warn("stale lock cleaned",
			"conversation_id", conversationID,
			"old_pid", existing.PID,
		)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		ConversationID: conversationID,
		PID:            os.Getpid(),
		Hostname:       hostname,
		AcquiredAt:     time.Now(),
		lockFile:       lockPath,
		logger:         s.logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, errors.NewConversationError(conversationID, "lock", err)
	}

	// O_EXCL closes the window between the liveness check and the write.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.NewConversationError(conversationID, "lock", errors.ErrConversationLocked)
		}
		return nil, errors.NewConversationError(conversationID, "lock", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, errors.NewConversationError(conversationID, "lock", err)
	}

	s.logger.Debug("conversation lock acquired",
		"conversation_id", conversationID,
		"pid", lock.PID,
	)
	return lock, nil
}

// Release removes the lock file if this process still owns it. Safe to
// call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	existing, err := readLock(l.lockFile)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.lockFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	if l.logger != nil {
		l.logger.Debug("conversation lock released", "conversation_id", l.ConversationID)
	}
	return nil
}

// IsLocked reports whether a conversation is held by a live process.
func (s *Store) IsLocked(conversationID string) (*Lock, bool) {
	lockPath := filepath.Join(s.conversationDir(conversationID), LockFileName)
	lock, err := readLock(lockPath)
	if err != nil {
		return nil, false
	}
	if !isProcessAlive(lock.PID) {
		return lock, false
	}
	return lock, true
}

func readLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// isProcessAlive checks liveness by sending signal 0.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
