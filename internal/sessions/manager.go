// Package sessions keeps the workflow session of every open browser tab.
package sessions

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// ErrBusy is returned when another action on the same session is still running.
var ErrBusy = errors.New("session is busy")

// Entry holds one tab's session. Actions on an entry are serialized: a
// second action while one is running is rejected, never queued.
type Entry struct {
	UserID    string
	SessionID string

	op sync.Mutex

	mu       sync.Mutex
	session  domain.Session
	lastSeen time.Time
	now      func() time.Time
}

// Snapshot returns the current session value.
func (e *Entry) Snapshot() domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Update runs fn against the current session and stores the session it
// returns, even when fn also returns an error. It fails with ErrBusy if
// another Update is in progress.
func (e *Entry) Update(fn func(domain.Session) (domain.Session, error)) error {
	if !e.op.TryLock() {
		return ErrBusy
	}
	defer e.op.Unlock()

	next, err := fn(e.Snapshot())

	e.mu.Lock()
	e.session = next
	e.lastSeen = e.now()
	e.mu.Unlock()
	return err
}

// Touch marks the entry as used.
func (e *Entry) Touch() {
	e.mu.Lock()
	e.lastSeen = e.now()
	e.mu.Unlock()
}

// LastSeen returns when the entry was last used.
func (e *Entry) LastSeen() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// Manager maps (user, tab) pairs to entries.
type Manager struct {
	mu     sync.RWMutex
	active map[string]map[string]*Entry
	now    func() time.Time
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]map[string]*Entry),
		now:    time.Now,
	}
}

// Get returns the entry for a user and tab, or nil.
func (m *Manager) Get(userID, sessionID string) *Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tabs, ok := m.active[userID]; ok {
		return tabs[sessionID]
	}
	return nil
}

// Acquire returns the entry for a user and tab, creating a Welcome session
// on first use. The entry is touched under the manager lock so a concurrent
// Sweep cannot drop it before the caller gets to use it.
func (m *Manager) Acquire(userID, sessionID string) *Entry {
	m.mu.RLock()
	e := m.active[userID][sessionID]
	if e != nil {
		e.Touch()
	}
	m.mu.RUnlock()
	if e != nil {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tabs, exists := m.active[userID]
	if !exists {
		tabs = make(map[string]*Entry)
		m.active[userID] = tabs
	}
	if e, ok := tabs[sessionID]; ok {
		e.Touch()
		return e
	}

	e = &Entry{
		UserID:    userID,
		SessionID: sessionID,
		session:   domain.NewSession(),
		lastSeen:  m.now(),
		now:       m.now,
	}
	tabs[sessionID] = e
	slog.Info("Session created", "user_id", userID, "session_id", sessionID)
	return e
}

// Remove discards one tab's session.
func (m *Manager) Remove(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tabs, ok := m.active[userID]; ok {
		if _, exists := tabs[sessionID]; exists {
			delete(tabs, sessionID)
			if len(tabs) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Session removed", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, tabs := range m.active {
		n += len(tabs)
	}
	return n
}

// Sweep removes sessions idle for at least ttl. Sessions with an action in
// progress are kept. It returns the number removed.
func (m *Manager) Sweep(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for userID, tabs := range m.active {
		for sessionID, e := range tabs {
			if e.LastSeen().After(cutoff) {
				continue
			}
			if !e.op.TryLock() {
				continue
			}
			delete(tabs, sessionID)
			e.op.Unlock()
			removed++
			slog.Debug("Session expired", "user_id", userID, "session_id", sessionID)
		}
		if len(tabs) == 0 {
			delete(m.active, userID)
		}
	}
	return removed
}
