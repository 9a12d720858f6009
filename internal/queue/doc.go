// Package queue persists subtitling jobs in an in-memory SQLite database and
// exposes helpers for driving their lifecycle.
//
// The Store manages the database connection, schema initialization, status
// transitions, heartbeat tracking, and the atomic pending-claim used by the
// workflow workers. Jobs capture chat and file identifiers, workspace
// artifact paths, transcript and timing payloads, and failure classification
// so stages can coordinate without additional state.
//
// The database is intentionally transient: it lives only as long as the
// daemon process, starts empty on every boot, and is never written to disk.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or job fields, update schema.sql and bump schemaVersion.
package queue
