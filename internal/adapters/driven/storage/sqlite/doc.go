// Package sqlite stores meeting embeddings and scheduler state in a single
// SQLite database using modernc.org/sqlite, a pure Go driver.
//
// Store exposes two driven ports over one connection pool:
//
//   - VectorStore: embeddings as little-endian float32 BLOBs, ranked by cosine distance
//   - SchedulerStore: background task state and run history
//
// # Schema
//
// The schema is versioned by the files in migrations/. Applied versions are
// recorded in schema_migrations, so reopening a database only runs new files.
//
// # Data Location
//
// The database lives at <data dir>/minutes.db (by default ~/.minutes/data).
package sqlite
