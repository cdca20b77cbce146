// Package queue persists jobs, their append-only event log, and per-job
// artifacts in SQLite. The store is the single durable source of truth for
// the pipeline; all job mutation flows through the jobs service, which
// serializes updates per job.
package queue
