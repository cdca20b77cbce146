package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"trimsync/internal/config"
	"trimsync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, mutate func(*queue.Job)) *queue.Job {
	t.Helper()

	job := &queue.Job{
		ID:                uuid.NewString(),
		Status:            queue.StatusQueued,
		VideoPath:         "/tmp/source.mp4",
		VideoDurationSec:  10,
		TargetDurationSec: 8,
		DeltaSec:          2,
	}
	if mutate != nil {
		mutate(job)
	}
	if err := store.Insert(context.Background(), job); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}
