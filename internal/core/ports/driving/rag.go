package driving

import (
	"context"
	"iter"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// RAGService answers questions grounded in meeting history.
type RAGService interface {
	// Chat answers a question given explicit prior turns.
	// Returns an error wrapping domain.ErrGenerationFailed when the LLM fails.
	Chat(ctx context.Context, query string, history []domain.ConversationTurn, topK int) (*domain.ChatResult, error)

	// ChatStream answers a question as a lazy sequence of events.
	ChatStream(ctx context.Context, query string, history []domain.ConversationTurn, topK int) iter.Seq[domain.RAGEvent]

	// Ask answers within a remembered session, recording both turns.
	Ask(ctx context.Context, sessionID, query string, topK int) (*domain.ChatResult, error)

	// AskStream is the streaming form of Ask. The answer is recorded only
	// when the stream completes without error.
	AskStream(ctx context.Context, sessionID, query string, topK int) iter.Seq[domain.RAGEvent]
}

// ConversationService exposes remembered question-answering sessions.
type ConversationService interface {
	// History returns a copy of the session's turns, oldest first.
	History(sessionID string) []domain.ConversationTurn

	// Clear forgets a session.
	Clear(sessionID string)

	// Sessions returns the IDs of remembered sessions.
	Sessions() []string
}
