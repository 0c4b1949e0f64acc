// Package services implements the driving port interfaces.
//
// The live transcription pipeline, meeting indexing, semantic search and
// retrieval-augmented answering live here. Services depend only on driven
// ports; model runtimes, stores and providers are injected by the caller.
package services
