// Package logging constructs the daemon's slog loggers and provides typed
// attribute helpers plus context-derived field extraction so every log line
// carries job, stage, and correlation identifiers.
package logging
