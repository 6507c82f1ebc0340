// Package jobstore persists upscaling job history in SQLite.
//
// The store implements partition.Recorder so the orchestrator can report
// state changes as they happen, and backs the `upscaler jobs` listing. The
// database lives at <log_dir>/jobs.db in WAL mode; writes retry briefly when
// another process holds the lock.
package jobstore
