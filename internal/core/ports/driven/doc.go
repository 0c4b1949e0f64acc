// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - HistoryStore: JSON-per-meeting analysis persistence
//   - AudioSpool: Temporary on-disk audio for live sessions
//   - ConfigStore: Application configuration
//   - PromptStore: LLM prompt templates
//   - SchedulerStore: Background task state
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Transcriber: Speech-to-text. Without it, live transcription and audio uploads are disabled.
//   - Diarizer: Speaker attribution. Without it, every word is labelled with the fallback speaker.
//   - EmbeddingService: Generates vector embeddings. Without it, indexing and semantic search are disabled.
//   - VectorStore: Vector storage/search. Without it, indexing and semantic search are disabled.
//   - LLMService: Language model operations. Without it, answering and analysis are disabled.
//   - AnalysisExtractor: Turns a transcript into a MeetingAnalysis.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
