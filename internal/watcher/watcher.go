// Package watcher ingests jobs from a watch folder. A video file dropped
// into the folder becomes a job; a same-stem audio file dropped alongside it
// is attached as the replacement track.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"trimsync/internal/logging"
)

// Handler receives a detected video and its optional replacement audio.
type Handler func(ctx context.Context, videoPath, audioPath string) error

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".webm": {}, ".m4v": {},
}

var audioExtensions = []string{".wav", ".m4a", ".aac", ".mp3", ".flac", ".ogg"}

// Option configures the watcher.
type Option func(*Watcher)

// WithSettleDelay overrides how long the watcher waits after a create event
// before treating the file as fully written.
func WithSettleDelay(delay time.Duration) Option {
	return func(w *Watcher) {
		if delay > 0 {
			w.settleDelay = delay
		}
	}
}

// Watcher monitors one directory for new source files.
type Watcher struct {
	dir         string
	handler     Handler
	logger      *slog.Logger
	fsw         *fsnotify.Watcher
	settleDelay time.Duration

	mu        sync.Mutex
	processed map[string]struct{}
}

// New creates a watcher over dir. The directory must already exist.
func New(dir string, handler Handler, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watcher: handler required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:         dir,
		handler:     handler,
		logger:      logger.With(logging.String(logging.FieldComponent, "watcher")),
		fsw:         fsw,
		settleDelay: 500 * time.Millisecond,
		processed:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes filesystem events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watch-folder ingest started", logging.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !IsVideoFile(event.Name) {
				continue
			}
			if !w.markProcessed(event.Name) {
				continue
			}
			w.logger.Info("new video detected", logging.String("path", event.Name))

			// Give the producer time to finish writing before probing.
			select {
			case <-time.After(w.settleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}

			audioPath := ReplacementAudioFor(event.Name)
			if err := w.handler(ctx, event.Name, audioPath); err != nil {
				w.logger.Error("ingest failed",
					logging.String("path", event.Name),
					logging.Error(err))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watch error", logging.Error(err))
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) markProcessed(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, seen := w.processed[path]; seen {
		return false
	}
	w.processed[path] = struct{}{}
	return true
}

// IsVideoFile reports whether the path carries a supported video extension.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ReplacementAudioFor looks for an audio file sharing the video's stem in
// the same directory and returns its path, or empty when none exists.
func ReplacementAudioFor(videoPath string) string {
	stem := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	for _, ext := range audioExtensions {
		candidate := stem + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
