// Package queue persists re-voicing jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-job recovery, and status transitions that
// mirror the public workflow enum. Alongside the coarse scheduling status each
// job carries a per-stage status ledger (download, transcription sources,
// enhancement, scripting, synthesis, assembly) that records when each stage
// ran, whether it finished, and what it produced, so interrupted jobs can be
// resumed from the first incomplete stage instead of from scratch.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or stage fields, update schema.sql and bump
// schemaVersion.
package queue
