package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptQueryExpansion rewrites a follow-up question into a standalone search query.
	// The template expects %s placeholders for the conversation context and the question.
	PromptQueryExpansion = "query_expansion"

	// PromptRAGAnswer is the intent preamble of the grounded answer prompt.
	// This prompt has no format placeholders.
	PromptRAGAnswer = "rag_answer"

	// PromptAnalysisExtract asks for a JSON meeting analysis.
	// The template expects a %s placeholder for the transcript.
	PromptAnalysisExtract = "analysis_extract"
)

// DefaultPrompts holds the built-in template for every well-known prompt.
// Prompt stores seed user-editable files from it and fall back to it.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var DefaultPrompts = map[string]string{
	PromptQueryExpansion: `Rewrite the user's latest question into a single, specific search query for a meeting archive.
Resolve pronouns and vague references ("it", "that project", "they") using the conversation so far.
Keep names of people, projects, products and dates. Return ONLY the rewritten query on one line.

%s

Latest question: %s
Search query:`,

	PromptRAGAnswer: `You are Minutes, an assistant that answers questions about the user's past meetings.
Answer using only the retrieved meeting contexts below. Be concise and specific.`,

	PromptAnalysisExtract: `Analyse the following meeting transcript and respond with a single JSON object with these keys:
- "summary": a short paragraph summarising the meeting
- "topics": a list of strings naming the main topics
- "action_items": a list of objects with "task", "assignee" and optional "due_date"
- "decisions": a list of objects with "decision" and optional "rationale"
- "meeting_type": one of "standup", "planning", "review", "one_on_one", "interview", "other"
- "language": the ISO 639-1 code of the transcript language

Respond with JSON only.

Transcript:
%s`,
}
