// Package session persists the active conversation across CLI invocations.
//
// The current conversation ID lives in ~/.cvforge/current_conversation.
// Writes are atomic (temp file + rename) and serialized across processes
// with file locking via [github.com/gofrs/flock], so two concurrent
// cvforge invocations cannot corrupt the state file.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	stateDir  = ".cvforge"
	stateFile = "current_conversation"
	lockFile  = stateFile + ".lock"

	lockTimeout    = 2 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// ErrLockTimeout indicates another process held the state lock too long.
var ErrLockTimeout = errors.New("timed out waiting for state file lock")

// statePaths returns the state file and lock file paths, creating the
// state directory (~/.cvforge) if it doesn't exist.
func statePaths() (string, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to get home directory: %w", err)
	}

	stateDirPath := filepath.Join(homeDir, stateDir)
	if err := os.MkdirAll(stateDirPath, 0o750); err != nil {
		return "", "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return filepath.Join(stateDirPath, stateFile), filepath.Join(stateDirPath, lockFile), nil
}

// withLock runs fn while holding the exclusive inter-process lock.
func withLock(lockPath string, fn func() error) error {
	lock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return fmt.Errorf("failed to acquire state lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// LoadCurrentConversationID loads the active conversation ID from the
// local state file.
//
// Returns (nil, nil) if no state file exists - a fresh install is not
// an error.
func LoadCurrentConversationID() (*uuid.UUID, error) {
	filePath, lockPath, err := statePaths()
	if err != nil {
		return nil, err
	}

	var id *uuid.UUID
	err = withLock(lockPath, func() error {
		data, err := os.ReadFile(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read state file: %w", err)
		}

		raw := strings.TrimSpace(string(data))
		if raw == "" {
			return nil
		}

		parsed, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid conversation ID in state file: %w", err)
		}
		id = &parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// SaveCurrentConversationID marks the given conversation as active.
// The write is atomic: content lands in a temp file first, then a rename
// replaces the state file in one step.
func SaveCurrentConversationID(conversationID uuid.UUID) error {
	filePath, lockPath, err := statePaths()
	if err != nil {
		return err
	}

	return withLock(lockPath, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(filePath), stateFile+".tmp-*")
		if err != nil {
			return fmt.Errorf("failed to create temp state file: %w", err)
		}
		tmpName := tmp.Name()

		if _, err := tmp.WriteString(conversationID.String()); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return fmt.Errorf("failed to write state file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("failed to close state file: %w", err)
		}

		if err := os.Rename(tmpName, filePath); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("failed to replace state file: %w", err)
		}
		return nil
	})
}

// ClearCurrentConversationID removes the state file. Idempotent: clearing
// when no conversation is active is not an error.
func ClearCurrentConversationID() error {
	filePath, lockPath, err := statePaths()
	if err != nil {
		return err
	}

	return withLock(lockPath, func() error {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove state file: %w", err)
		}
		return nil
	})
}
