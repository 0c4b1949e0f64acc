package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// citationInstructions follows the user question in the answer prompt.
const citationInstructions = `Cite the meetings you rely on with their source numbers, like [1] or [2].
If the retrieved contexts do not contain the answer, say so plainly.`

// RAGService answers questions about past meetings by expanding the query
// with conversation context, retrieving similar meetings and grounding the
// LLM's answer in them.
type RAGService struct {
	search  driving.SearchService
	llm     driven.LLMService
	prompts driven.PromptStore
	memory  *ConversationMemory
	retry   RetryPolicy
}

// NewRAGService creates a RAG service. llm and prompts may be nil; without
// an LLM every question gets the fixed "not configured" answer.
func NewRAGService(
	search driving.SearchService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	memory *ConversationMemory,
) *RAGService {
	if memory == nil {
		memory = NewConversationMemory(domain.DefaultMaxTurns)
	}
	return &RAGService{
		search:  search,
		llm:     llm,
		prompts: prompts,
		memory:  memory,
		retry:   DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the rate-limit backoff.
func (s *RAGService) SetRetryPolicy(p RetryPolicy) {
	s.retry = p
}

// prepared is everything decided before generation starts.
type prepared struct {
	expanded string
	sources  []domain.Source
	prompt   string

	// fixed is set when no generation is needed.
	fixed string
}

// prepare runs expansion and retrieval and composes the answer prompt.
func (s *RAGService) prepare(
	ctx context.Context, query string, history []domain.ConversationTurn, topK int,
) (*prepared, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrInvalidInput)
	}
	if s.llm == nil || s.search == nil {
		return &prepared{expanded: query, sources: []domain.Source{}, fixed: domain.NotConfiguredAnswer}, nil
	}

	convo := FormatContext(history)
	expanded := s.expand(ctx, query, convo)

	logger.Section("Retrieval")
	results, err := s.search.SemanticSearch(ctx, expanded, topK, nil)
	if errors.Is(err, domain.ErrResourceUnavailable) {
		logger.Warn("Retrieval unavailable: %v", err)
		return &prepared{expanded: expanded, sources: []domain.Source{}, fixed: domain.NotConfiguredAnswer}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(results) == 0 {
		logger.Debug("No relevant meetings for %q", expanded)
		return &prepared{expanded: expanded, sources: []domain.Source{}, fixed: domain.NoResultsAnswer}, nil
	}

	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, domain.Source{
			ID:        r.ID,
			Name:      r.Name(),
			Score:     r.Score,
			Timestamp: r.Metadata[domain.MetaTimestamp],
		})
	}

	return &prepared{
		expanded: expanded,
		sources:  sources,
		prompt:   BuildAnswerPrompt(s.loadPrompt(driven.PromptRAGAnswer), convo, query, results),
	}, nil
}

// expand rewrites the question into a standalone retrieval query.
// Any failure falls back to the original question.
func (s *RAGService) expand(ctx context.Context, query, convo string) string {
	logger.Section("Query Expansion")
	if convo == "" {
		convo = "Previous conversation: (none)"
	}
	prompt := fmt.Sprintf(s.loadPrompt(driven.PromptQueryExpansion), convo, query)

	out, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 100, Temperature: 0})
	if err != nil {
		logger.Warn("Query expansion failed, using original query: %v", err)
		return query
	}
	expanded := firstLine(out)
	if expanded == "" {
		return query
	}
	logger.Debug("Expanded %q -> %q", query, expanded)
	return expanded
}

func (s *RAGService) loadPrompt(name string) string {
	if s.prompts != nil {
		if p, err := s.prompts.Load(name); err == nil && p != "" {
			return p
		}
	}
	return driven.DefaultPrompts[name]
}

// firstLine returns the first non-blank line with surrounding quotes removed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line != "" {
			return line
		}
	}
	return ""
}

// BuildAnswerPrompt composes the grounded prompt: preamble, prior
// conversation, the question verbatim, citation instructions, the numbered
// retrieved contexts and the answer cue.
func BuildAnswerPrompt(preamble, convo, query string, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(preamble))
	b.WriteString("\n\n")
	if convo != "" {
		b.WriteString(convo)
		b.WriteString("\n\n")
	}
	b.WriteString("QUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(citationInstructions)
	b.WriteString("\n\n=== RETRIEVED CONTEXTS ===\n")
	for i, r := range results {
		fmt.Fprintf(&b, "SOURCE [%d] (%s): %s\n", i+1, r.Name(), r.MatchedText)
	}
	b.WriteString("\nANSWER:")
	return b.String()
}

// Chat answers a question given explicit prior turns.
func (s *RAGService) Chat(
	ctx context.Context, query string, history []domain.ConversationTurn, topK int,
) (*domain.ChatResult, error) {
	p, err := s.prepare(ctx, query, history, topK)
	if err != nil {
		return nil, err
	}
	if p.fixed != "" {
		return &domain.ChatResult{Answer: p.fixed, Sources: p.sources, ExpandedQuery: p.expanded}, nil
	}

	logger.Section("Generation")
	answer, err := withRateLimitRetry(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.llm.Generate(ctx, p.prompt, driven.GenerateOptions{Temperature: 0.2})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	return &domain.ChatResult{
		Answer:        strings.TrimSpace(answer),
		Sources:       p.sources,
		ExpandedQuery: p.expanded,
	}, nil
}

// ChatStream answers a question as a lazy event sequence: one sources
// event, then answer chunks. Failures end the sequence with an error event.
func (s *RAGService) ChatStream(
	ctx context.Context, query string, history []domain.ConversationTurn, topK int,
) iter.Seq[domain.RAGEvent] {
	return func(yield func(domain.RAGEvent) bool) {
		p, err := s.prepare(ctx, query, history, topK)
		if err != nil {
			yield(domain.RAGEvent{Kind: domain.RAGEventError, Err: err})
			return
		}
		if !yield(domain.RAGEvent{Kind: domain.RAGEventSources, Sources: p.sources, ExpandedQuery: p.expanded}) {
			return
		}
		if p.fixed != "" {
			yield(domain.RAGEvent{Kind: domain.RAGEventChunk, Chunk: p.fixed})
			return
		}

		logger.Section("Streaming Generation")
		for attempt := 1; ; attempt++ {
			emitted := false
			var streamErr error
			for chunk, err := range s.llm.Stream(ctx, p.prompt, driven.GenerateOptions{Temperature: 0.2}) {
				if err != nil {
					streamErr = err
					break
				}
				emitted = true
				if !yield(domain.RAGEvent{Kind: domain.RAGEventChunk, Chunk: chunk}) {
					return
				}
			}
			if streamErr == nil {
				return
			}
			if wait, ok := s.retry.delay(streamErr, attempt); ok && !emitted {
				logger.Warn("Rate limited, retrying stream in %s", wait)
				if sleep(ctx, wait) == nil {
					continue
				}
			}
			yield(domain.RAGEvent{Kind: domain.RAGEventError, Err: fmt.Errorf("%w: %w", domain.ErrGenerationFailed, streamErr)})
			return
		}
	}
}

// Ask answers within a remembered session and records both turns.
func (s *RAGService) Ask(ctx context.Context, sessionID, query string, topK int) (*domain.ChatResult, error) {
	res, err := s.Chat(ctx, query, s.memory.History(sessionID), topK)
	if err != nil {
		return nil, err
	}
	s.memory.Add(sessionID, domain.RoleUser, query)
	s.memory.Add(sessionID, domain.RoleAssistant, res.Answer)
	return res, nil
}

// AskStream streams an answer within a remembered session. Turns are
// recorded only when the stream runs to completion without error.
func (s *RAGService) AskStream(ctx context.Context, sessionID, query string, topK int) iter.Seq[domain.RAGEvent] {
	return func(yield func(domain.RAGEvent) bool) {
		var answer strings.Builder
		for ev := range s.ChatStream(ctx, query, s.memory.History(sessionID), topK) {
			switch ev.Kind {
			case domain.RAGEventChunk:
				answer.WriteString(ev.Chunk)
			case domain.RAGEventError:
				yield(ev)
				return
			}
			if !yield(ev) {
				return
			}
		}
		s.memory.Add(sessionID, domain.RoleUser, query)
		s.memory.Add(sessionID, domain.RoleAssistant, strings.TrimSpace(answer.String()))
	}
}

// Memory returns the conversation memory backing Ask and AskStream.
func (s *RAGService) Memory() *ConversationMemory {
	return s.memory
}
