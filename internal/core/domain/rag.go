package domain

// Fixed answers returned instead of errors on recoverable conditions.
const (
	NoResultsAnswer     = "I found no relevant meetings to answer that question."
	NotConfiguredAnswer = "The question-answering service is not configured. Set an LLM and embedding provider to enable it."
)

// Source identifies one meeting used to ground an answer.
type Source struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Timestamp string  `json:"timestamp"`
}

// ChatResult is the blocking answer to a question.
type ChatResult struct {
	Answer        string   `json:"answer"`
	Sources       []Source `json:"sources"`
	ExpandedQuery string   `json:"expanded_query"`
}

// RAGEventKind discriminates streaming answer events.
type RAGEventKind string

// Streaming answer event kinds.
const (
	RAGEventSources RAGEventKind = "sources"
	RAGEventChunk   RAGEventKind = "chunk"
	RAGEventError   RAGEventKind = "error"
)

// RAGEvent is one element of a streaming answer.
// A stream yields one sources event, then chunk events, with an error event
// in lieu of any of them on failure.
type RAGEvent struct {
	Kind          RAGEventKind `json:"kind"`
	Sources       []Source     `json:"sources,omitempty"`
	ExpandedQuery string       `json:"expanded_query,omitempty"`
	Chunk         string       `json:"chunk,omitempty"`
	Err           error        `json:"-"`
}

// Message returns the error text of an error event.
func (e RAGEvent) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
