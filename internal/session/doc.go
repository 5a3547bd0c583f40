// Package session persists pipeline runs and their stage artifacts in SQLite.
//
// The stage_artifacts table is write-once per (session, stage) and serves as
// the authoritative recovery source: when the orchestrator's live event
// capture misses a stage's final output, it reconciles from here. Sessions
// carry the status lifecycle the CLI reports on.
package session
