package session

import (
	"log/slog"
	"sync"
	"time"
)

// LockManager hands out one mutex per session id. Everything that touches
// a session's bus, state or presenter runs under that mutex.
type LockManager struct {
	locks    map[string]*sync.Mutex
	locksMux sync.Mutex
}

// NewLockManager creates an empty lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex for a session, creating it if needed
func (lm *LockManager) lockFor(sessionID string) *sync.Mutex {
	lm.locksMux.Lock()
	defer lm.locksMux.Unlock()

	lock, ok := lm.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		lm.locks[sessionID] = lock
		slog.Debug("Created session lock", "session_id", sessionID)
	}
	return lock
}

// WithSessionLock runs fn while holding the session's lock
func (lm *LockManager) WithSessionLock(sessionID string, fn func() error) error {
	start := time.Now()
	lock := lm.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	err := fn()

	slog.Debug("Session operation completed",
		"session_id", sessionID,
		"duration", time.Since(start).String())
	return err
}

// Release forgets a session's lock
func (lm *LockManager) Release(sessionID string) {
	lm.locksMux.Lock()
	defer lm.locksMux.Unlock()
	delete(lm.locks, sessionID)
}

// Count returns the number of tracked locks
func (lm *LockManager) Count() int {
	lm.locksMux.Lock()
	defer lm.locksMux.Unlock()
	return len(lm.locks)
}
