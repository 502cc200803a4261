package assistant

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in the conversation history.
type Turn struct {
	Role      Role              `json:"role"`
	Text      string            `json:"text"`
	Timestamp time.Time         `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Memory is the append-only conversation history. Non-system turns beyond
// maxTurns are evicted oldest-first; system turns are always preserved.
// History expires after the inactivity timeout and on explicit Clear.
type Memory struct {
	mu           sync.Mutex
	turns        []Turn
	maxTurns     int
	timeout      time.Duration
	lastActivity time.Time
}

// NewMemory bounds history to maxTurns non-system turns. timeout 0 disables
// session expiry.
func NewMemory(maxTurns int, timeout time.Duration) *Memory {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &Memory{
		maxTurns:     maxTurns,
		timeout:      timeout,
		lastActivity: time.Now(),
	}
}

// Append records a turn, expiring stale history first and trimming to the
// bound afterwards.
func (m *Memory) Append(t Turn) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expiredLocked() {
		m.clearLocked()
	}
	m.turns = append(m.turns, t)
	m.lastActivity = time.Now()
	m.trimLocked()
}

func (m *Memory) trimLocked() {
	excess := m.countNonSystemLocked() - m.maxTurns
	if excess <= 0 {
		return
	}
	kept := m.turns[:0]
	for _, t := range m.turns {
		if excess > 0 && t.Role != RoleSystem {
			excess--
			continue
		}
		kept = append(kept, t)
	}
	m.turns = kept
}

func (m *Memory) countNonSystemLocked() int {
	n := 0
	for _, t := range m.turns {
		if t.Role != RoleSystem {
			n++
		}
	}
	return n
}

// Recent returns the system turns plus the last n non-system turns, in
// arrival order. Used to build bounded chat requests. An expired session
// still contributes its system turns.
func (m *Memory) Recent(n int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expiredLocked() {
		m.clearLocked()
	}

	nonSystem := m.countNonSystemLocked()
	skip := nonSystem - n
	if skip < 0 {
		skip = 0
	}
	out := make([]Turn, 0, len(m.turns))
	for _, t := range m.turns {
		if t.Role != RoleSystem {
			if skip > 0 {
				skip--
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// All returns a copy of the full history.
func (m *Memory) All() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len counts all stored turns, system included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Clear drops all non-system turns.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
	m.lastActivity = time.Now()
}

func (m *Memory) clearLocked() {
	kept := m.turns[:0]
	for _, t := range m.turns {
		if t.Role == RoleSystem {
			kept = append(kept, t)
		}
	}
	m.turns = kept
}

func (m *Memory) expiredLocked() bool {
	if m.timeout <= 0 || len(m.turns) == 0 {
		return false
	}
	return time.Since(m.lastActivity) > m.timeout
}
