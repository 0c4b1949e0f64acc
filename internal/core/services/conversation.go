package services

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
)

// Ensure ConversationMemory implements the interface.
var _ driving.ConversationService = (*ConversationMemory)(nil)

type conversation struct {
	turns      []domain.ConversationTurn
	lastActive time.Time
}

// ConversationMemory keeps a bounded list of turns per session.
// One mutex covers the whole session table.
type ConversationMemory struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string]*conversation
	now      func() time.Time
}

// NewConversationMemory keeps up to maxTurns user/assistant exchanges per session.
func NewConversationMemory(maxTurns int) *ConversationMemory {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxTurns
	}
	return &ConversationMemory{
		maxTurns: maxTurns,
		sessions: make(map[string]*conversation),
		now:      time.Now,
	}
}

// Add appends a turn, touches the session and evicts the oldest turns
// beyond 2*maxTurns.
func (m *ConversationMemory) Add(sessionID string, role domain.Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.sessions[sessionID]
	if !ok {
		c = &conversation{}
		m.sessions[sessionID] = c
	}
	c.turns = append(c.turns, domain.ConversationTurn{Role: role, Content: content, Timestamp: now})
	c.lastActive = now

	if limit := 2 * m.maxTurns; len(c.turns) > limit {
		c.turns = slices.Clone(c.turns[len(c.turns)-limit:])
	}
}

// History returns a copy of the session's turns, oldest first.
func (m *ConversationMemory) History(sessionID string) []domain.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[sessionID]
	if !ok {
		return []domain.ConversationTurn{}
	}
	return slices.Clone(c.turns)
}

// FormattedContext renders the session's recent turns for a prompt.
func (m *ConversationMemory) FormattedContext(sessionID string) string {
	return FormatContext(m.History(sessionID))
}

// Clear forgets a session.
func (m *ConversationMemory) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Cleanup drops sessions idle for longer than maxAge and returns how many were dropped.
func (m *ConversationMemory) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	dropped := 0
	for id, c := range m.sessions {
		if c.lastActive.Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Sessions returns the remembered session IDs in sorted order.
func (m *ConversationMemory) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FormatContext renders the trailing turns as
// "Previous conversation:" followed by "User: ..." and "AI: ..." lines.
// Returns "" for an empty history.
func FormatContext(turns []domain.ConversationTurn) string {
	if len(turns) > domain.ContextWindow {
		turns = turns[len(turns)-domain.ContextWindow:]
	}
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous conversation:")
	for _, t := range turns {
		b.WriteString("\n")
		if t.Role == domain.RoleAssistant {
			b.WriteString("AI: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(strings.TrimSpace(t.Content))
	}
	return b.String()
}
