// Package services holds cross-cutting support for pipeline stages: the
// job error taxonomy surfaced to users and context annotations used to
// correlate logs with queue work.
package services
